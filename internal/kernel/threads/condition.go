package threads

import "nachos-go/internal/kernel/interrupt"

// Condition is C4: a Mesa-style condition variable bound to a Lock (§3,
// §4.C4). Every operation requires the calling thread to already hold the
// associated Lock.
type Condition struct {
	name    string
	lock    *Lock
	waiters []*Semaphore
	sched   *Scheduler
	gate    *interrupt.Gate
}

// NewCondition creates a condition variable associated with lock.
func NewCondition(name string, lock *Lock, sched *Scheduler, gate *interrupt.Gate) *Condition {
	return &Condition{name: name, lock: lock, sched: sched, gate: gate}
}

// Name returns the condition variable's debug name.
func (c *Condition) Name() string { return c.name }

// Wait releases the associated lock and blocks the caller until Signal or
// Broadcast wakes it, then reacquires the lock before returning (§4.C4).
// Mesa semantics: the woken thread re-contends for the lock rather than
// receiving it directly, so callers must re-check their predicate in a
// loop (as Thread.Join does around t.finished).
func (c *Condition) Wait() {
	if !c.lock.IsHeldByCurrentThread() {
		panic("threads: Condition.Wait called without holding the lock")
	}

	waiterSem := NewSemaphore(c.name+".waiter", 0, c.sched, c.gate)

	c.gate.Atomically(func() {
		c.waiters = append(c.waiters, waiterSem)
		c.lock.Release()
		waiterSem.P()
	})

	c.lock.Acquire()
}

// Signal wakes the longest-waiting thread, if any (§4.C4).
func (c *Condition) Signal() {
	if !c.lock.IsHeldByCurrentThread() {
		panic("threads: Condition.Signal called without holding the lock")
	}
	if len(c.waiters) == 0 {
		return
	}
	w := c.waiters[0]
	c.waiters = c.waiters[1:]
	w.V()
}

// Broadcast wakes every waiting thread (§4.C4).
func (c *Condition) Broadcast() {
	if !c.lock.IsHeldByCurrentThread() {
		panic("threads: Condition.Broadcast called without holding the lock")
	}
	for len(c.waiters) > 0 {
		c.Signal()
	}
}
