package threads

import "nachos-go/internal/kernel/interrupt"

// Lock is C3: mutual exclusion with priority donation, built on a binary
// semaphore (§3, §4.C3).
type Lock struct {
	name  string
	owner *Thread
	sem   *Semaphore
	sched *Scheduler
}

// NewLock creates a free lock.
func NewLock(name string, sched *Scheduler, gate *interrupt.Gate) *Lock {
	return &Lock{name: name, sem: NewSemaphore(name+".sem", 1, sched, gate), sched: sched}
}

// Name returns the lock's debug name.
func (l *Lock) Name() string { return l.name }

// IsHeldByCurrentThread reports whether the current thread owns the lock.
func (l *Lock) IsHeldByCurrentThread() bool {
	return l.owner == l.sched.Current()
}

// Acquire waits for the lock to become free and marks the calling thread as
// owner. If the lock is currently held by a lower-priority thread, that
// thread's priority is donated up to the caller's for the duration of the
// hold (§4.C3).
func (l *Lock) Acquire() {
	caller := l.sched.Current()
	if l.owner == caller {
		panic("threads: Lock.Acquire called by the current owner")
	}

	if l.owner != nil {
		ownerPriority := l.owner.priority
		if ownerPriority < caller.priority {
			l.owner.priority = caller.priority
			if l.owner.status == Ready {
				aux := l.sched.RemoveFromList(ownerPriority)
				for aux != l.owner {
					l.sched.ReadyToRun(aux)
					aux = l.sched.RemoveFromList(ownerPriority)
				}
				l.sched.ReadyToRun(aux)
			}
		}
	}

	l.sem.P()
	l.owner = caller
}

// Release frees the lock, waking a waiting Acquire if any, and resets the
// releasing thread's priority to its initial priority (§4.C3; see
// DESIGN.md for the "releasing thread, not the former owner" wart this
// preserves from the original kernel).
func (l *Lock) Release() {
	caller := l.sched.Current()
	if l.owner != caller {
		panic("threads: Lock.Release called by a non-owner")
	}
	l.owner = nil
	l.sem.V()
	caller.priority = caller.initialPriority
}
