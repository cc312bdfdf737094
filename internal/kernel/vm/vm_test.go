package vm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"nachos-go/internal/machine"
	"nachos-go/internal/noff"
)

// hostOrder matches the detection noff.ParseHeader uses internally, so the
// headers built here decode without triggering the byte-swap path.
func hostOrder() binary.ByteOrder {
	if binary.BigEndian.Uint16([]byte{0x12, 0x34}) == 0x1234 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// buildNOFF assembles a minimal valid NOFF image: a header followed
// immediately by the code segment bytes, with empty data segments.
func buildNOFF(code []byte) []byte {
	buf := make([]byte, noff.HeaderSize+len(code))
	order := hostOrder()
	words := []uint32{
		noff.Magic,
		0, noff.HeaderSize, uint32(len(code)), // code: vaddr, infile, size
		0, 0, 0, // initdata
		0, 0, 0, // uninitdata
	}
	for i, w := range words {
		order.PutUint32(buf[i*4:i*4+4], w)
	}
	copy(buf[noff.HeaderSize:], code)
	return buf
}

func newAddrSpaceFixture(t *testing.T, code []byte, numFrames int) (*AddressSpace, *machine.Memory, *FrameAllocator, *machine.TLB) {
	t.Helper()
	mem := machine.NewMemory(uint32(numFrames) * machine.PageSize)
	frames := NewFrameAllocator(numFrames)
	tlb := machine.NewTLB(machine.DefaultTLBSize)

	space, err := NewAddressSpace(bytes.NewReader(buildNOFF(code)), mem, frames, tlb)
	if err != nil {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	return space, mem, frames, tlb
}

func TestNewAddressSpaceLoadsCodeSegment(t *testing.T) {
	code := []byte("hello, nachos")
	space, mem, _, _ := newAddrSpaceFixture(t, code, 16)

	pte, ok := space.GetPage(0)
	if !ok {
		t.Fatal("GetPage(0) not found")
	}

	base := pte.PhysicalPage * machine.PageSize
	for i, want := range code {
		got, err := mem.ReadByte(base + uint32(i))
		if err != nil {
			t.Fatalf("ReadByte(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("byte %d = %#x, want %#x", i, got, want)
		}
	}
}

func TestNewAddressSpaceFrameExhaustion(t *testing.T) {
	mem := machine.NewMemory(machine.PageSize)
	frames := NewFrameAllocator(1)
	tlb := machine.NewTLB(machine.DefaultTLBSize)

	_, err := NewAddressSpace(bytes.NewReader(buildNOFF([]byte("x"))), mem, frames, tlb)
	if err == nil {
		t.Fatal("expected an error when the address space needs more frames than exist")
	}
}

func TestAddressSpaceCloseFreesFrames(t *testing.T) {
	space, _, frames, _ := newAddrSpaceFixture(t, []byte("abc"), 16)

	before := frames.NumClear()
	space.Close()
	after := frames.NumClear()

	if after <= before {
		t.Errorf("NumClear after Close = %d, want more than %d", after, before)
	}
	if after != 16 {
		t.Errorf("NumClear after Close = %d, want 16 (all frames freed)", after)
	}
}

func TestInitRegistersWithArguments(t *testing.T) {
	space, _, _, _ := newAddrSpaceFixture(t, []byte("abc"), 16)
	space.SetArguments([]string{"prog", "arg1"})

	var regs machine.Registers
	if err := space.InitRegisters(&regs); err != nil {
		t.Fatalf("InitRegisters: %v", err)
	}

	if regs[machine.PCReg] != 0 || regs[machine.NextPCReg] != machine.InstructionSize {
		t.Errorf("PC/NextPC = %d/%d, want 0/%d", regs[machine.PCReg], regs[machine.NextPCReg], machine.InstructionSize)
	}
	if regs[machine.Arg1Reg] != 2 {
		t.Errorf("argc = %d, want 2", regs[machine.Arg1Reg])
	}
	if regs[machine.Arg2Reg] == 0 {
		t.Error("argv pointer (Arg2Reg) left at zero")
	}
	if regs[machine.StackReg] >= regs[machine.Arg2Reg] {
		t.Errorf("StackReg = %#x should sit below argv at %#x", regs[machine.StackReg], regs[machine.Arg2Reg])
	}
}

func TestInitRegistersWithoutArguments(t *testing.T) {
	space, _, _, _ := newAddrSpaceFixture(t, []byte("abc"), 16)

	var regs machine.Registers
	if err := space.InitRegisters(&regs); err != nil {
		t.Fatalf("InitRegisters: %v", err)
	}
	wantSP := space.NumPages()*machine.PageSize - 16
	if regs[machine.StackReg] != wantSP {
		t.Errorf("StackReg = %#x, want %#x", regs[machine.StackReg], wantSP)
	}
}

func TestSaveStateAndRestoreState(t *testing.T) {
	space, _, _, tlb := newAddrSpaceFixture(t, []byte("abc"), 16)

	tlb.Entries[0] = machine.TLBEntry{VirtualPage: 0, PhysicalPage: 99, Valid: true, Use: true, Dirty: true}
	space.SaveState()

	pte, _ := space.GetPage(0)
	if !pte.Use || !pte.Dirty {
		t.Errorf("page 0 use/dirty = %v/%v, want true/true after SaveState", pte.Use, pte.Dirty)
	}

	space.RestoreState()
	for _, e := range tlb.Entries {
		if e.Valid {
			t.Error("RestoreState left a valid TLB entry behind")
		}
	}
}

func TestTLBHandlerRefillsOnMiss(t *testing.T) {
	space, mem, _, tlb := newAddrSpaceFixture(t, []byte("abcdef"), 16)
	handler := NewTLBHandler(tlb)

	b, err := ReadByteUser(mem, tlb, handler, space, 2)
	if err != nil {
		t.Fatalf("ReadByteUser: %v", err)
	}
	if b != 'c' {
		t.Errorf("ReadByteUser(2) = %q, want 'c'", b)
	}

	e, ok := tlb.Lookup(0)
	if !ok {
		t.Fatal("TLB was not refilled after the miss")
	}
	if !e.Use {
		t.Error("refilled TLB entry should be marked used after the read")
	}
}

func TestReadWriteStringUser(t *testing.T) {
	space, mem, _, tlb := newAddrSpaceFixture(t, []byte("12345678"), 16)
	handler := NewTLBHandler(tlb)

	// Somewhere past the loaded code, inside the same first page.
	const addr = 64
	if err := WriteStringUser(mem, tlb, handler, space, addr, "hi"); err != nil {
		t.Fatalf("WriteStringUser: %v", err)
	}
	got, err := ReadStringUser(mem, tlb, handler, space, addr)
	if err != nil {
		t.Fatalf("ReadStringUser: %v", err)
	}
	if got != "hi" {
		t.Errorf("ReadStringUser = %q, want %q", got, "hi")
	}
}

func TestFrameAllocatorFindAndClear(t *testing.T) {
	a := NewFrameAllocator(2)
	f1 := a.Find()
	f2 := a.Find()
	if f1 < 0 || f2 < 0 || f1 == f2 {
		t.Fatalf("Find returned %d, %d, want two distinct non-negative frames", f1, f2)
	}
	if a.Find() != -1 {
		t.Error("Find should return -1 once every frame is taken")
	}
	a.Clear(f1)
	if a.NumClear() != 1 {
		t.Errorf("NumClear after one Clear = %d, want 1", a.NumClear())
	}
}
