// Package threads implements the kernel's thread-management core: TCBs,
// the priority scheduler, and the synchronization primitives built on top
// of interrupt masking (C2-C7 of the design). They share one package the
// way the original kernel keeps thread.cc, scheduler.cc, synch.cc and
// port.cc all under a single "threads" module — Lock and Semaphore hold
// non-owning references to Thread and vice versa (join primitives), and
// splitting that cycle across package boundaries would only obscure it.
package threads

import (
	"fmt"
	"runtime"

	"nachos-go/internal/kernel/interrupt"
	"nachos-go/internal/machine"
)

// MaxPriority is the highest priority a thread may hold; priority 0 is the
// lowest. The ready set has one FIFO per level (§3 "Ready set").
const MaxPriority = 7

// stackFencepost is written at the base of a thread's simulated stack and
// checked on every dispatch, standing in for the real fencepost sentinel a
// native-stack kernel plants to catch overflow (§3 TCB invariants).
const stackFencepost = 0xdeadbeef

// Status is a TCB's lifecycle state (§3, §4 thread state machine).
type Status int

const (
	JustCreated Status = iota
	Running
	Ready
	Blocked
)

func (s Status) String() string {
	switch s {
	case JustCreated:
		return "JustCreated"
	case Running:
		return "Running"
	case Ready:
		return "Ready"
	case Blocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

// AddressSpace is the subset of a process's address space the scheduler
// needs to hook into a context switch. internal/kernel/vm.AddressSpace
// implements this; threads never imports vm, so the dependency runs one
// way only (§9 "cyclic references... as non-owning references").
type AddressSpace interface {
	SaveState()
	RestoreState()
}

// joinState holds the three synchronization primitives a joinable thread
// needs for the Finish/Join rendezvous (§3, §4.C7). Owned by the Thread
// and kept for its whole lifetime; Join does not release it.
type joinState struct {
	lock *Lock
	cond *Condition
	sem  *Semaphore
}

// Thread is a thread control block (§3).
type Thread struct {
	name            string
	priority        int
	initialPriority int
	status          Status
	space           AddressSpace

	UserRegisters   machine.Registers
	KernelRegisters machine.Registers

	stack []uint32 // simulated stack; only stack[0] (the fencepost) is load-bearing

	joinable bool
	join     *joinState
	finished bool

	sched *Scheduler
	gate  *interrupt.Gate

	// turn is this thread's half of the cooperative context-switch handoff
	// (§9 "coroutines via saved stacks" — substituted here by one goroutine
	// per TCB gated by a rendezvous channel instead of a raw stack swap).
	turn chan struct{}

	// finishing marks that this Run() call will never be resumed: the
	// goroutine backing it is about to exit for good (Thread.Finish).
	finishing bool
}

// Name returns the thread's debug name.
func (t *Thread) Name() string { return t.name }

// Priority returns the thread's current (possibly donated) priority.
func (t *Thread) Priority() int { return t.priority }

// InitialPriority returns the priority the thread was created with.
func (t *Thread) InitialPriority() int { return t.initialPriority }

// Status returns the thread's current lifecycle state.
func (t *Thread) Status() Status { return t.status }

// Space returns the thread's owned address space, or nil for a kernel-only
// thread.
func (t *Thread) Space() AddressSpace { return t.space }

// SetSpace attaches an address space to the thread (used by Exec, §4.C12).
func (t *Thread) SetSpace(space AddressSpace) { t.space = space }

// Joinable reports whether the thread supports Join.
func (t *Thread) Joinable() bool { return t.joinable }

func newThread(name string, priority int, joinable bool, sched *Scheduler, gate *interrupt.Gate) *Thread {
	if priority < 0 || priority > MaxPriority {
		panic(fmt.Sprintf("threads: priority %d out of range [0,%d]", priority, MaxPriority))
	}
	t := &Thread{
		name:            name,
		priority:        priority,
		initialPriority: priority,
		status:          JustCreated,
		joinable:        joinable,
		sched:           sched,
		gate:            gate,
		stack:           []uint32{stackFencepost},
		turn:            make(chan struct{}),
	}
	if joinable {
		lock := NewLock(name+".join.lock", sched, gate)
		t.join = &joinState{
			lock: lock,
			cond: NewCondition(name+".join.cond", lock, sched, gate),
			sem:  NewSemaphore(name+".join.sem", 0, sched, gate),
		}
	}
	return t
}

// checkOverflow verifies the fencepost at the base of the simulated stack,
// the homage to Thread::CheckOverflow (§3 invariants, §7 fatal assertions).
func (t *Thread) checkOverflow() {
	if len(t.stack) > 0 && t.stack[0] != stackFencepost {
		panic(fmt.Sprintf("threads: stack overflow detected in thread %q", t.name))
	}
}

// destroy releases whatever the dead thread was still holding onto. Called
// lazily by the next thread the scheduler dispatches (§3 "destroyed lazily
// by the next scheduled thread", §9 "self-destructing TCBs").
func (t *Thread) destroy() {
	t.stack = nil
}

// Yield relinquishes the CPU to the head of the highest-priority nonempty
// ready queue, whatever that thread's priority relative to the caller, and
// puts the caller back on its own ready queue; if no other thread is ready
// it returns immediately without switching (§4.C7).
func (t *Thread) Yield() {
	old := t.gate.SetLevel(interrupt.Off)
	if t.sched.Current() != t {
		panic("threads: Yield called by a thread that is not current")
	}
	next := t.sched.FindNextToRun()
	if next != nil {
		t.sched.ReadyToRun(t)
		t.sched.Run(next)
	}
	t.gate.SetLevel(old)
}

// Sleep relinquishes the CPU because the thread is blocked waiting on a
// synchronization primitive. Requires interrupts already disabled (§4.C7).
func (t *Thread) Sleep() {
	if t.gate.GetLevel() != interrupt.Off {
		panic("threads: Sleep called with interrupts enabled")
	}
	if t.sched.Current() != t {
		panic("threads: Sleep called by a thread that is not current")
	}
	t.status = Blocked
	var next *Thread
	for {
		next = t.sched.FindNextToRun()
		if next != nil {
			break
		}
		t.gate.Idle()
	}
	t.sched.Run(next)
}

// Finish is called once, either by the trampoline wrapping the thread's
// forked function when that function returns, or from inside that function
// by the Exit syscall. It never returns (§4.C7).
func (t *Thread) Finish() {
	t.gate.SetLevel(interrupt.Off)
	if t.sched.Current() != t {
		panic("threads: Finish called by a thread that is not current")
	}

	if t.joinable {
		// Blocks here until some Join has registered (joinSem.V), exactly
		// as the thread being joined blocks in the original kernel.
		t.join.sem.P()
		t.join.lock.Acquire()
		t.join.cond.Broadcast()
		t.join.lock.Release()
	}

	t.finished = true
	t.sched.toDestroy = t
	t.finishing = true
	t.Sleep()
	panic("threads: Finish returned")
}

// Join blocks the calling thread until this thread finishes (§4.C7).
// Tolerates being called before or after the target's Finish.
func (t *Thread) Join() int {
	if !t.joinable {
		panic("threads: Join on a non-joinable thread")
	}
	t.join.lock.Acquire()
	t.join.sem.V()
	for !t.finished {
		t.join.cond.Wait()
	}
	t.join.lock.Release()
	return 0
}

// runBody is the goroutine trampoline every forked thread starts in: it
// blocks for its first turn, enables interrupts (mirroring ThreadRoot's
// "enable interrupts" step), runs the forked function, then finishes.
// Never returns normally.
func (t *Thread) runBody(fn func()) {
	<-t.turn
	t.gate.SetLevel(interrupt.On)
	fn()
	t.Finish()
}

// goexitIfFinishing lets Scheduler.Run terminate the outgoing goroutine for
// good once its thread has finished, instead of blocking it forever on a
// turn it will never receive again.
func (t *Thread) goexitIfFinishing() {
	if t.finishing {
		runtime.Goexit()
	}
}
