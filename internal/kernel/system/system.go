// Package system wires together the process-wide singletons every other
// kernel package is handed a reference to rather than reaching for a
// global: the scheduler, interrupt gate, machine state, and the C9–C11
// tables. Grounded on threads/system.cc, which performs exactly this role
// for the original kernel ("Initialize" constructs scheduler, interrupt,
// stats, timer, and — in userprog builds — fileSystem, synchConsole,
// fileDescTable, processTable").
package system

import (
	"nachos-go/internal/kernel/console"
	"nachos-go/internal/kernel/fdtable"
	"nachos-go/internal/kernel/fs"
	"nachos-go/internal/kernel/interrupt"
	"nachos-go/internal/kernel/process"
	"nachos-go/internal/kernel/threads"
	"nachos-go/internal/kernel/vm"
	"nachos-go/internal/machine"
)

// Config bundles the sizing knobs the bootstrapper reads from
// command-line flags (internal/config.Flags).
type Config struct {
	MemorySize  uint32
	TLBSize     int
	NumFileDesc int
	MaxProcs    int
}

// System is every process-wide singleton (§9: "currentThread,
// threadToBeDestroyed, scheduler, interrupt, stats, timer, machine,
// fileSystem, synchConsole, fileDescTable, processTable, memoryBitMap").
// threadToBeDestroyed and currentThread live inside Scheduler; stats and
// timer are out of the core's scope (§1) and not modeled.
type System struct {
	Gate       *interrupt.Gate
	Scheduler  *threads.Scheduler
	Memory     *machine.Memory
	TLB        *machine.TLB
	TLBHandler *vm.TLBHandler
	Frames     *vm.FrameAllocator
	FDTable    *fdtable.Table
	Processes  *process.Table
	Console    *console.SynchConsole
	Files      *fs.FileSystem

	// Runner executes a user program's instructions given its initial
	// register image and address space. The instruction interpreter
	// itself is out of scope for this kernel (§1: "the simulated
	// machine (instruction interpreter...)"), so Runner is nil unless a
	// caller wires one in; RunProcess degrades to setting up the
	// registers and returning (the thread immediately falls through to
	// Finish), which is enough to exercise Fork/Exec/Join end to end
	// without a CPU.
	Runner Runner
}

// Runner executes a user program to completion (or until it traps back
// into the kernel via a syscall the dispatcher already handles inline).
type Runner interface {
	Run(regs *machine.Registers, space *vm.AddressSpace)
}

// New constructs every singleton and registers the calling goroutine as
// the kernel's main thread, mirroring threads/system.cc's Initialize plus
// the root Thread("main") bootstrap described in §9's Design Notes.
func New(cfg Config, filesDir string) (*System, error) {
	gate := interrupt.New()
	sched := threads.NewScheduler(gate)
	sched.NewMainThread("main")

	mem := machine.NewMemory(cfg.MemorySize)
	tlb := machine.NewTLB(cfg.TLBSize)

	numFrames := int(mem.Size() / machine.PageSize)

	files, err := fs.New(filesDir)
	if err != nil {
		return nil, err
	}

	synchConsole, err := console.NewSynchConsole(sched, gate)
	if err != nil {
		return nil, err
	}

	return &System{
		Gate:       gate,
		Scheduler:  sched,
		Memory:     mem,
		TLB:        tlb,
		TLBHandler: vm.NewTLBHandler(tlb),
		Frames:     vm.NewFrameAllocator(numFrames),
		FDTable:    fdtable.New(cfg.NumFileDesc),
		Processes:  process.New(cfg.MaxProcs),
		Console:    synchConsole,
		Files:      files,
	}, nil
}

// Shutdown tears down singletons that own real OS resources, in the
// reverse order they were built (§9: "torn down on Halt in LIFO order").
func (s *System) Shutdown() {
	s.Console.Close()
}
