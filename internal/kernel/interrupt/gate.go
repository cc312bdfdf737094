// Package interrupt implements C1: the kernel's global interrupt mask and
// the atomic-region primitive every other kernel subsystem is built on.
// Masking interrupts is how this single-CPU kernel gets atomicity (§1,
// §4.C1) — there is no other lock beneath it.
package interrupt

import "sync"

// Level is the simulated machine's interrupt-enabled flag.
type Level bool

const (
	Off Level = false
	On  Level = true
)

// Gate is the process-wide interrupt mask. It also doubles as the rendezvous
// point idle threads wait on: anything that can make a blocked thread
// runnable (ReadyToRun, an I/O completion callback) calls Wake, and Idle
// parks until the next Wake instead of hot-spinning the host CPU the way a
// real busy-poll over simulated ticks would (§4.C7 Sleep, §5).
type Gate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	enabled bool
	halted  bool
	ticks   uint64
}

// New returns a Gate with interrupts enabled, matching the machine's reset
// state before any thread is forked.
func New() *Gate {
	g := &Gate{enabled: true}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// SetLevel sets the interrupt level and returns the previous one. Callers
// restore the previous level rather than unconditionally re-enabling, so
// nested atomic regions compose correctly (§4.C1).
func (g *Gate) SetLevel(level Level) Level {
	g.mu.Lock()
	prev := g.enabled
	g.enabled = bool(level)
	g.mu.Unlock()
	if level == On {
		g.cond.Broadcast()
	}
	return Level(prev)
}

// GetLevel reports the current interrupt level.
func (g *Gate) GetLevel() Level {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Level(g.enabled)
}

// Atomically disables interrupts for the duration of fn and restores
// whatever level was in effect beforehand. Semaphore.P/V and
// Condition.Wait — the primitives every other synchronization type in
// C3-C5 is built on — use this directly; Lock and Port inherit its
// atomicity through them rather than disabling interrupts a second time.
func (g *Gate) Atomically(fn func()) {
	old := g.SetLevel(Off)
	defer g.SetLevel(old)
	fn()
}

// Wake notifies any thread parked in Idle that kernel state changed and it
// should re-check for runnable work. Called by Scheduler.ReadyToRun and by
// asynchronous I/O completion callbacks (console, disk).
func (g *Gate) Wake() {
	g.mu.Lock()
	g.ticks++
	g.mu.Unlock()
	g.cond.Broadcast()
}

// Idle parks the calling goroutine until Wake is called or the machine
// halts. It models "advance simulated time until an interrupt wakes
// something" (§4.C7) without spinning: a single waiting goroutine blocked on
// a condition variable is the idiomatic Go substitute for a busy poll over a
// simulated clock.
func (g *Gate) Idle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.halted {
		return
	}
	start := g.ticks
	for g.ticks == start && !g.halted {
		g.cond.Wait()
	}
}

// Halt marks the machine as shutting down and releases anything parked in
// Idle so it can unwind.
func (g *Gate) Halt() {
	g.mu.Lock()
	g.halted = true
	g.mu.Unlock()
	g.cond.Broadcast()
}

// Halted reports whether Halt has been called.
func (g *Gate) Halted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.halted
}
