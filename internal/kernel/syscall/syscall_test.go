package syscall

import (
	"bytes"
	"encoding/binary"
	"testing"

	"nachos-go/internal/kernel/fdtable"
	"nachos-go/internal/kernel/fs"
	"nachos-go/internal/kernel/interrupt"
	"nachos-go/internal/kernel/process"
	"nachos-go/internal/kernel/system"
	"nachos-go/internal/kernel/threads"
	"nachos-go/internal/kernel/vm"
	"nachos-go/internal/machine"
	"nachos-go/internal/noff"
)

func hostOrder() binary.ByteOrder {
	if binary.BigEndian.Uint16([]byte{0x12, 0x34}) == 0x1234 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func buildNOFF(code []byte) []byte {
	buf := make([]byte, noff.HeaderSize+len(code))
	order := hostOrder()
	words := []uint32{noff.Magic, 0, noff.HeaderSize, uint32(len(code)), 0, 0, 0, 0, 0, 0}
	for i, w := range words {
		order.PutUint32(buf[i*4:i*4+4], w)
	}
	copy(buf[noff.HeaderSize:], code)
	return buf
}

// newFixture builds a System without a Console (the syscall paths under
// test here never touch it) and an AddressSpace with room to stash
// filenames and buffers for the read/write paths to exercise.
func newFixture(t *testing.T) (*system.System, *threads.Scheduler, *vm.AddressSpace) {
	t.Helper()
	gate := interrupt.New()
	sched := threads.NewScheduler(gate)
	sched.NewMainThread("main")

	// 32 frames: the fixture's own space takes 9, leaving room for a second
	// 9-page executable so Exec can get past address-space construction.
	mem := machine.NewMemory(32 * machine.PageSize)
	tlb := machine.NewTLB(machine.DefaultTLBSize)
	frames := vm.NewFrameAllocator(32)

	space, err := vm.NewAddressSpace(bytes.NewReader(buildNOFF([]byte("code"))), mem, frames, tlb)
	if err != nil {
		t.Fatalf("NewAddressSpace: %v", err)
	}

	files, err := fs.New(t.TempDir())
	if err != nil {
		t.Fatalf("fs.New: %v", err)
	}

	sys := &system.System{
		Gate:       gate,
		Scheduler:  sched,
		Memory:     mem,
		TLB:        tlb,
		TLBHandler: vm.NewTLBHandler(tlb),
		Frames:     frames,
		FDTable:    fdtable.New(fdtable.DefaultSize),
		Processes:  process.New(process.DefaultMaxProcesses),
		Files:      files,
	}
	return sys, sched, space
}

func writeUserString(t *testing.T, sys *system.System, space *vm.AddressSpace, vaddr uint32, s string) {
	t.Helper()
	if err := vm.WriteStringUser(sys.Memory, sys.TLB, sys.TLBHandler, space, vaddr, s); err != nil {
		t.Fatalf("WriteStringUser: %v", err)
	}
}

func TestCreateOpenWriteReadClose(t *testing.T) {
	sys, _, space := newFixture(t)
	d := New(sys)

	const nameAddr = 0
	const bufAddr = 32
	writeUserString(t, sys, space, nameAddr, "greeting.txt")

	var self *threads.Thread // fd ownership key; nil is fine as long as it's used consistently

	var regs machine.Registers
	regs[machine.ResultReg] = Create
	regs[machine.Arg1Reg] = nameAddr
	d.Dispatch(&regs, space, self)
	if regs[machine.ResultReg] != 0 {
		t.Fatalf("Create result = %d, want 0", int32(regs[machine.ResultReg]))
	}

	regs = machine.Registers{}
	regs[machine.ResultReg] = Open
	regs[machine.Arg1Reg] = nameAddr
	d.Dispatch(&regs, space, self)
	fd := int32(regs[machine.ResultReg])
	if fd < 2 {
		t.Fatalf("Open result = %d, want >= 2", fd)
	}

	if err := vm.WriteBufferUser(sys.Memory, sys.TLB, sys.TLBHandler, space, bufAddr, []byte("hello")); err != nil {
		t.Fatalf("WriteBufferUser: %v", err)
	}
	regs = machine.Registers{}
	regs[machine.ResultReg] = Write
	regs[machine.Arg1Reg] = bufAddr
	regs[machine.Arg2Reg] = 5
	regs[machine.Arg3Reg] = uint32(fd)
	d.Dispatch(&regs, space, self)
	if regs[machine.ResultReg] != 0 {
		t.Fatalf("Write result = %d, want 0", int32(regs[machine.ResultReg]))
	}

	regs = machine.Registers{}
	regs[machine.ResultReg] = Close
	regs[machine.Arg1Reg] = uint32(fd)
	d.Dispatch(&regs, space, self)
	if regs[machine.ResultReg] != 0 {
		t.Fatalf("Close result = %d, want 0", int32(regs[machine.ResultReg]))
	}

	// Reopen to get a fresh read offset and check the bytes round-tripped.
	regs = machine.Registers{}
	regs[machine.ResultReg] = Open
	regs[machine.Arg1Reg] = nameAddr
	d.Dispatch(&regs, space, self)
	fd2 := int32(regs[machine.ResultReg])

	const readAddr = 48
	regs = machine.Registers{}
	regs[machine.ResultReg] = Read
	regs[machine.Arg1Reg] = readAddr
	regs[machine.Arg2Reg] = 5
	regs[machine.Arg3Reg] = uint32(fd2)
	d.Dispatch(&regs, space, self)
	if int32(regs[machine.ResultReg]) != 5 {
		t.Fatalf("Read result = %d, want 5", int32(regs[machine.ResultReg]))
	}

	got, err := vm.ReadBufferUser(sys.Memory, sys.TLB, sys.TLBHandler, space, readAddr, 5)
	if err != nil {
		t.Fatalf("ReadBufferUser: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("round-tripped bytes = %q, want %q", got, "hello")
	}
}

func TestDispatchExitRecordsValueAndJoinRetrievesIt(t *testing.T) {
	sys, sched, _ := newFixture(t)
	d := New(sys)

	var childRegs machine.Registers
	childRegs[machine.ResultReg] = Exit
	childRegs[machine.Arg1Reg] = 7

	var child *threads.Thread
	child = sched.Fork("child", 1, true, func() {
		d.Dispatch(&childRegs, nil, child)
	})
	id := sys.Processes.Attach(child)
	if id < 0 {
		t.Fatal("Processes.Attach failed")
	}

	var joinerRegs machine.Registers
	joinerRegs[machine.ResultReg] = Join
	joinerRegs[machine.Arg1Reg] = uint32(id)

	var joiner *threads.Thread
	joiner = sched.Fork("joiner", 1, true, func() {
		d.Dispatch(&joinerRegs, nil, joiner)
	})
	joiner.Join()

	if int32(joinerRegs[machine.ResultReg]) != 7 {
		t.Errorf("Join result = %d, want 7", int32(joinerRegs[machine.ResultReg]))
	}
}

func TestDispatchExecRollsBackOnFullProcessTable(t *testing.T) {
	sys, _, space := newFixture(t)
	d := New(sys)

	if !sys.Files.Create("child.noff", 0) {
		t.Fatal("Files.Create failed")
	}
	f := sys.Files.Open("child.noff")
	if _, err := f.Write(buildNOFF([]byte("c"))); err != nil {
		t.Fatalf("writing child executable: %v", err)
	}
	f.Close()

	const pathAddr = 64
	writeUserString(t, sys, space, pathAddr, "child.noff")

	for i := 0; i < sys.Processes.Size(); i++ {
		if id := sys.Processes.Attach(nil); id < 0 {
			t.Fatalf("Attach #%d failed filling the table", i)
		}
	}
	freeBefore := sys.Frames.NumClear()

	var self *threads.Thread
	var regs machine.Registers
	regs[machine.ResultReg] = Exec
	regs[machine.Arg1Reg] = pathAddr
	d.Dispatch(&regs, space, self)

	if regs[machine.ResultReg] != negOne {
		t.Fatalf("Exec result = %d, want -1 on a full process table", int32(regs[machine.ResultReg]))
	}
	if got := sys.Frames.NumClear(); got != freeBefore {
		t.Errorf("Exec leaked frames on rollback: NumClear = %d, want %d", got, freeBefore)
	}
}
