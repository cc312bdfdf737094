package threads

import "nachos-go/internal/kernel/interrupt"

// Semaphore is C2: a non-negative counter plus a FIFO of threads blocked
// waiting for it to become positive (§3, §4.C2).
type Semaphore struct {
	name  string
	value int
	queue []*Thread
	sched *Scheduler
	gate  *interrupt.Gate
}

// NewSemaphore creates a semaphore with the given debug name and initial
// value.
func NewSemaphore(name string, initial int, sched *Scheduler, gate *interrupt.Gate) *Semaphore {
	if initial < 0 {
		panic("threads: semaphore initial value must be non-negative")
	}
	return &Semaphore{name: name, value: initial, sched: sched, gate: gate}
}

// Name returns the semaphore's debug name.
func (s *Semaphore) Name() string { return s.name }

// P waits until value > 0, then decrements it. Blocks the current thread
// (via Sleep) while value is 0 (§4.C2).
func (s *Semaphore) P() {
	s.gate.Atomically(func() {
		for s.value == 0 {
			s.queue = append(s.queue, s.sched.Current())
			s.sched.Current().Sleep()
		}
		s.value--
	})
}

// V increments value, waking the longest-waiting thread if any (§4.C2).
func (s *Semaphore) V() {
	s.gate.Atomically(func() {
		if len(s.queue) > 0 {
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.sched.ReadyToRun(next)
		}
		s.value++
	})
}
