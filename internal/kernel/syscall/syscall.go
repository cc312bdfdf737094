// Package syscall is C12: the trap handler user programs reach through
// SyscallException, decoding the call number and arguments out of the
// register file, dispatching to the kernel service that handles it, and
// writing any result back. Grounded on userprog/exception.cc.
package syscall

import (
	"strings"

	"nachos-go/internal/kernel/system"
	"nachos-go/internal/kernel/threads"
	"nachos-go/internal/kernel/vm"
	"nachos-go/internal/machine"
)

// Call numbers, matching the conventional Nachos syscall.h assignment.
const (
	Halt = iota
	Exit
	Exec
	Join
	Create
	Open
	Read
	Write
	Close
)

// Well-known file descriptors reserved in the fd table (§4.C9).
const (
	ConsoleInput  = 0
	ConsoleOutput = 1
)

// NewFileSize is the size Create allocates for a brand new file
// (exception.cc: "NEW_FILE_SIZE").
const NewFileSize = 1024

// MaxArgs bounds the number of arguments Exec will parse out of a command
// string (exception.cc: "MAX_ARGS").
const MaxArgs = 10

// Dispatcher decodes and executes syscalls on behalf of a running
// process's thread.
type Dispatcher struct {
	sys *system.System
}

// New creates a dispatcher bound to the kernel singletons in sys.
func New(sys *system.System) *Dispatcher {
	return &Dispatcher{sys: sys}
}

// Dispatch decodes the call number from regs[ResultReg] and the up-to-four
// arguments from regs[Arg1Reg..Arg4Reg], executes the call, and advances
// the program counter unless the call terminated the thread
// (exception.cc: "ExceptionHandler", the SyscallException branch).
func (d *Dispatcher) Dispatch(regs *machine.Registers, space *vm.AddressSpace, self *threads.Thread) {
	call := regs[machine.ResultReg]

	switch call {
	case Halt:
		d.sys.Gate.Halt()
		return
	case Exit:
		d.doExit(regs, self)
		return
	case Create:
		d.doCreate(regs, space)
	case Open:
		d.doOpen(regs, space, self)
	case Close:
		d.doClose(regs, self)
	case Read:
		d.doRead(regs, space, self)
	case Write:
		d.doWrite(regs, space, self)
	case Join:
		d.doJoin(regs)
	case Exec:
		d.doExec(regs, space, self)
	default:
		panic("syscall: unexpected call number")
	}

	regs.AdvancePC()
}

func (d *Dispatcher) readString(regs *machine.Registers, space *vm.AddressSpace, reg int) (string, error) {
	return vm.ReadStringUser(d.sys.Memory, d.sys.TLB, d.sys.TLBHandler, space, regs[reg])
}

// doCreate implements Syscall_Create (exception.cc): read the filename
// from user memory and ask the filesystem to create it.
func (d *Dispatcher) doCreate(regs *machine.Registers, space *vm.AddressSpace) {
	name, err := d.readString(regs, space, machine.Arg1Reg)
	if err != nil || !d.sys.Files.Create(name, NewFileSize) {
		regs[machine.ResultReg] = negOne
		return
	}
	regs[machine.ResultReg] = 0
}

// doOpen implements Syscall_Open: open the named file and attach it to a
// fresh descriptor owned by self.
func (d *Dispatcher) doOpen(regs *machine.Registers, space *vm.AddressSpace, self *threads.Thread) {
	name, err := d.readString(regs, space, machine.Arg1Reg)
	if err != nil {
		regs[machine.ResultReg] = negOne
		return
	}
	file := d.sys.Files.Open(name)
	if file == nil {
		regs[machine.ResultReg] = negOne
		return
	}
	id := d.sys.FDTable.Attach(file, self)
	if id < 0 {
		file.Close()
	}
	regs[machine.ResultReg] = uint32(int32(id))
}

// doClose implements Syscall_Close.
func (d *Dispatcher) doClose(regs *machine.Registers, self *threads.Thread) {
	id := int(int32(regs[machine.Arg1Reg]))
	file, ok := d.sys.FDTable.Get(id, self)
	if !ok {
		regs[machine.ResultReg] = negOne
		return
	}
	d.sys.FDTable.Detach(id, self)
	file.Close()
	regs[machine.ResultReg] = 0
}

// doRead implements Syscall_Read: routes ConsoleInput through C11 and any
// other descriptor through C9 and the open file, refusing a read from
// ConsoleOutput.
func (d *Dispatcher) doRead(regs *machine.Registers, space *vm.AddressSpace, self *threads.Thread) {
	usrBuffAddr := regs[machine.Arg1Reg]
	size := int(regs[machine.Arg2Reg])
	fd := int(int32(regs[machine.Arg3Reg]))

	switch {
	case fd == ConsoleOutput:
		regs[machine.ResultReg] = negOne
	case fd == ConsoleInput:
		buf := d.sys.Console.GetBuffer(size)
		if err := vm.WriteBufferUser(d.sys.Memory, d.sys.TLB, d.sys.TLBHandler, space, usrBuffAddr, buf); err != nil {
			regs[machine.ResultReg] = negOne
			return
		}
		regs[machine.ResultReg] = uint32(size)
	default:
		file, ok := d.sys.FDTable.Get(fd, self)
		if !ok {
			regs[machine.ResultReg] = negOne
			return
		}
		buf := make([]byte, size)
		n, _ := file.Read(buf)
		if err := vm.WriteBufferUser(d.sys.Memory, d.sys.TLB, d.sys.TLBHandler, space, usrBuffAddr, buf[:n]); err != nil {
			regs[machine.ResultReg] = negOne
			return
		}
		regs[machine.ResultReg] = uint32(n)
	}
}

// doWrite implements Syscall_Write: routes ConsoleOutput through C11 and
// any other descriptor through C9 and the open file, refusing a write to
// ConsoleInput.
func (d *Dispatcher) doWrite(regs *machine.Registers, space *vm.AddressSpace, self *threads.Thread) {
	usrBuffAddr := regs[machine.Arg1Reg]
	size := int(regs[machine.Arg2Reg])
	fd := int(int32(regs[machine.Arg3Reg]))

	switch {
	case fd == ConsoleInput:
		regs[machine.ResultReg] = negOne
	case fd == ConsoleOutput:
		buf, err := vm.ReadBufferUser(d.sys.Memory, d.sys.TLB, d.sys.TLBHandler, space, usrBuffAddr, size)
		if err != nil {
			regs[machine.ResultReg] = negOne
			return
		}
		d.sys.Console.PutBuffer(buf)
		regs[machine.ResultReg] = 0
	default:
		file, ok := d.sys.FDTable.Get(fd, self)
		if !ok {
			regs[machine.ResultReg] = negOne
			return
		}
		buf, err := vm.ReadBufferUser(d.sys.Memory, d.sys.TLB, d.sys.TLBHandler, space, usrBuffAddr, size)
		if err != nil {
			regs[machine.ResultReg] = negOne
			return
		}
		file.Write(buf)
		regs[machine.ResultReg] = 0
	}
}

// doExit implements Syscall_Exit: record the exit value in the process
// table and finish the calling thread. Finish never returns to Dispatch,
// so the PC is never advanced (matching Halt).
func (d *Dispatcher) doExit(regs *machine.Registers, self *threads.Thread) {
	exitValue := int(int32(regs[machine.Arg1Reg]))
	if id := d.sys.Processes.SpaceID(self); id >= 0 {
		d.sys.Processes.Detach(id, exitValue)
	}
	self.Finish()
}

// doJoin implements Syscall_Join: block on the target thread's Join, then
// retrieve its exit value from the process table.
func (d *Dispatcher) doJoin(regs *machine.Registers) {
	id := int(int32(regs[machine.Arg1Reg]))
	target := d.sys.Processes.Thread(id)
	if target == nil {
		regs[machine.ResultReg] = negOne
		return
	}

	target.(*threads.Thread).Join()

	exitValue, ok := d.sys.Processes.ExitValue(id)
	if !ok {
		regs[machine.ResultReg] = negOne
		return
	}
	regs[machine.ResultReg] = uint32(int32(exitValue))
}

// doExec implements Syscall_ExecWithArgs: parse a "path arg1 arg2 ..."
// command string, open the executable, build its address space, attach
// argv, fork a joinable thread running RunProcess, and register it in the
// process table.
func (d *Dispatcher) doExec(regs *machine.Registers, space *vm.AddressSpace, self *threads.Thread) {
	cmd, err := d.readString(regs, space, machine.Arg1Reg)
	if err != nil {
		regs[machine.ResultReg] = negOne
		return
	}

	fields := strings.Fields(cmd)
	if len(fields) == 0 || len(fields)-1 > MaxArgs {
		regs[machine.ResultReg] = negOne
		return
	}
	filePath, argv := fields[0], fields[1:]

	execFile := d.sys.Files.Open(filePath)
	if execFile == nil {
		regs[machine.ResultReg] = negOne
		return
	}

	childSpace, err := vm.NewAddressSpace(execFile, d.sys.Memory, d.sys.Frames, d.sys.TLB)
	execFile.Close()
	if err != nil {
		regs[machine.ResultReg] = negOne
		return
	}
	childSpace.SetArguments(argv)

	// Attach before Fork, so a full table leaves nothing forked to clean
	// up (exception.cc: "Syscall_ExecWithArgs" attaches before forking
	// and deletes the address space and thread on failure).
	id := d.sys.Processes.Attach(nil)
	if id < 0 {
		childSpace.Close()
		regs[machine.ResultReg] = negOne
		return
	}

	child := d.sys.Scheduler.Fork(filePath, self.Priority(), true, func() {
		RunProcess(d.sys, childSpace)
	})
	child.SetSpace(childSpace)
	d.sys.Processes.SetThread(id, child)

	regs[machine.ResultReg] = uint32(id)
}

// RunProcess is the trampoline a newly forked user thread starts in
// (exception.cc: "RunProcess"): load the page table, set the initial
// registers, and hand off to the instruction interpreter if one is wired.
// Exported so the bootstrapper can start the very first user process the
// same way Exec starts every subsequent one.
func RunProcess(sys *system.System, space *vm.AddressSpace) {
	space.RestoreState()

	var regs machine.Registers
	if err := space.InitRegisters(&regs); err != nil {
		return
	}

	if sys.Runner != nil {
		sys.Runner.Run(&regs, space)
	}
}

const negOne = uint32(0xFFFFFFFF)
