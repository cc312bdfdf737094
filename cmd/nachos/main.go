// Command nachos boots the kernel: it parses flags, brings up the
// process-wide singletons, optionally forks an initial user program, and
// runs the cooperative scheduler until a user program calls Halt.
package main

import (
	"fmt"
	"log"

	"nachos-go/internal/config"
	"nachos-go/internal/kernel/syscall"
	"nachos-go/internal/kernel/system"
	"nachos-go/internal/kernel/vm"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("nachos: %v", err)
	}

	sys, err := system.New(system.Config{
		MemorySize:  cfg.MemorySize,
		TLBSize:     cfg.TLBSize,
		NumFileDesc: cfg.NumFileDesc,
		MaxProcs:    cfg.MaxProcs,
	}, cfg.FilesDir)
	if err != nil {
		log.Fatalf("nachos: initializing kernel: %v", err)
	}
	defer sys.Shutdown()

	if cfg.Exec != "" {
		if err := launch(sys, cfg.Exec, cfg.Verbose); err != nil {
			log.Fatalf("nachos: %v", err)
		}
	}

	// Spin the main thread through the scheduler until some thread calls
	// Halt, standing in for the original main loop's eventual longjmp out
	// of interrupt->Halt() (threads/system.cc).
	for !sys.Gate.Halted() {
		sys.Scheduler.Current().Yield()
	}

	if cfg.Verbose {
		log.Println("nachos: halted")
	}
}

// launch opens path, builds its address space, and forks it as the first
// user process — the same sequence Syscall_Exec runs for every subsequent
// one (userprog/exception.cc).
func launch(sys *system.System, path string, verbose bool) error {
	file := sys.Files.Open(path)
	if file == nil {
		return fmt.Errorf("opening executable %q", path)
	}
	defer file.Close()

	space, err := vm.NewAddressSpace(file, sys.Memory, sys.Frames, sys.TLB)
	if err != nil {
		return fmt.Errorf("loading executable %q: %w", path, err)
	}

	thread := sys.Scheduler.Fork(path, 1, true, func() {
		syscall.RunProcess(sys, space)
	})
	thread.SetSpace(space)

	if sys.Processes.Attach(thread) < 0 {
		return fmt.Errorf("process table full")
	}

	if verbose {
		log.Printf("nachos: forked initial process %q", path)
	}
	return nil
}
