package threads

import "nachos-go/internal/kernel/interrupt"

// Scheduler is C6: a fixed-priority multilevel ready queue plus the
// machine-dependent dispatch routine. Every operation here assumes
// interrupts are already disabled by the caller (§4.C6) — the cooperative
// turn-handoff protocol in Run is itself the "single mutex" the Design
// Notes (§9) say may stand in for a raw context switch, so no additional
// locking is used inside the scheduler.
type Scheduler struct {
	ready     [MaxPriority + 1][]*Thread
	current   *Thread
	toDestroy *Thread
	gate      *interrupt.Gate
}

// NewScheduler creates an empty scheduler bound to the given interrupt
// gate.
func NewScheduler(gate *interrupt.Gate) *Scheduler {
	return &Scheduler{gate: gate}
}

// NewMainThread registers the calling goroutine itself as the initial
// kernel thread, bypassing Fork's goroutine trampoline (there is no prior
// thread to switch away from at boot, §9 "global singletons... a
// well-defined bootstrap phase").
func (s *Scheduler) NewMainThread(name string) *Thread {
	t := newThread(name, 0, false, s, s.gate)
	t.status = Running
	s.current = t
	return t
}

// Fork creates a new thread at the given priority and schedules it (§4.C7).
// joinable threads additionally get a Lock/Condition/Semaphore triple for
// Join.
func (s *Scheduler) Fork(name string, priority int, joinable bool, fn func()) *Thread {
	t := newThread(name, priority, joinable, s, s.gate)
	go t.runBody(fn)

	old := s.gate.SetLevel(interrupt.Off)
	s.ReadyToRun(t)
	s.gate.SetLevel(old)
	return t
}

// Current returns the thread presently occupying the CPU.
func (s *Scheduler) Current() *Thread { return s.current }

// ReadyToRun marks a thread Ready and appends it to its priority's FIFO
// (§4.C6). Assumes interrupts are disabled.
func (s *Scheduler) ReadyToRun(t *Thread) {
	t.status = Ready
	s.ready[t.priority] = append(s.ready[t.priority], t)
	s.gate.Wake()
}

// FindNextToRun removes and returns the head of the highest nonempty
// priority queue, or nil if every queue is empty (§4.C6).
func (s *Scheduler) FindNextToRun() *Thread {
	for p := MaxPriority; p >= 0; p-- {
		if len(s.ready[p]) > 0 {
			t := s.ready[p][0]
			s.ready[p] = s.ready[p][1:]
			return t
		}
	}
	return nil
}

// RemoveFromList pops the head of the priority-p ready queue. Used only by
// Lock.Acquire's priority-donation walk (§4.C3, §4.C6).
func (s *Scheduler) RemoveFromList(priority int) *Thread {
	if len(s.ready[priority]) == 0 {
		return nil
	}
	t := s.ready[priority][0]
	s.ready[priority] = s.ready[priority][1:]
	return t
}

// Run dispatches the CPU to next (§4.C6). Saves the outgoing thread's
// user-mode address-space state, verifies its stack fencepost, hands the
// turn channel to next, and blocks until the outgoing thread is itself
// rescheduled — except when the outgoing thread is mid-Finish, in which
// case its goroutine exits for good instead of blocking forever.
func (s *Scheduler) Run(next *Thread) {
	old := s.current
	if old.space != nil {
		old.space.SaveState()
	}
	old.checkOverflow()

	s.current = next
	next.status = Running

	next.turn <- struct{}{}
	old.goexitIfFinishing()
	<-old.turn

	if s.toDestroy != nil {
		s.toDestroy.destroy()
		s.toDestroy = nil
	}
	if s.current.space != nil {
		s.current.space.RestoreState()
	}
}
