package vm

import (
	"fmt"
	"io"

	"nachos-go/internal/machine"
	"nachos-go/internal/noff"
)

// UserStackSize is the number of bytes reserved above a program's data
// segments for its user-mode stack (addrspace.h: "Increase this as
// necessary!").
const UserStackSize = 1024

func divRoundUp(n, d uint32) uint32 {
	return (n + d - 1) / d
}

// AddressSpace is C8: the per-process page table plus the bookkeeping
// needed to load a NOFF executable into physical frames, seed its initial
// registers, and save/restore its share of the hardware TLB across context
// switches. It implements threads.AddressSpace.
type AddressSpace struct {
	pageTable []PageTableEntry
	numPages  uint32

	mem    *machine.Memory
	frames *FrameAllocator
	tlb    *machine.TLB

	hasArguments bool
	argv         []string
}

// Executable is the subset of *os.File an address space needs to load a
// program image; any io.ReaderAt (including an in-memory fake) satisfies it.
type Executable = io.ReaderAt

// NewAddressSpace loads a NOFF executable into freshly allocated physical
// frames, following the original AddrSpace constructor: parse and
// byte-swap the header, size the virtual address space, allocate one frame
// per page, zero each frame, then copy the code and initialized-data
// segments in (addrspace.cc).
func NewAddressSpace(executable Executable, mem *machine.Memory, frames *FrameAllocator, tlb *machine.TLB) (*AddressSpace, error) {
	hdr := make([]byte, noff.HeaderSize)
	if _, err := executable.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("vm: reading NOFF header: %w", err)
	}
	header, err := noff.ParseHeader(hdr)
	if err != nil {
		return nil, err
	}

	size := header.Code.Size + header.InitData.Size + header.UninitData.Size + UserStackSize
	numPages := divRoundUp(size, machine.PageSize)
	if int(numPages) > frames.NumClear() {
		return nil, fmt.Errorf("vm: address space requires %d pages, only %d free", numPages, frames.NumClear())
	}

	space := &AddressSpace{
		pageTable: make([]PageTableEntry, numPages),
		numPages:  numPages,
		mem:       mem,
		frames:    frames,
		tlb:       tlb,
	}

	for i := uint32(0); i < numPages; i++ {
		frame := frames.Find()
		if frame < 0 {
			return nil, fmt.Errorf("vm: frame allocator exhausted at page %d", i)
		}
		space.pageTable[i] = PageTableEntry{
			VirtualPage:  i,
			PhysicalPage: uint32(frame),
			Valid:        true,
		}
		if err := mem.ZeroRange(uint32(frame)*machine.PageSize, machine.PageSize); err != nil {
			return nil, err
		}
	}

	if err := space.copySegment(header.Code, executable); err != nil {
		return nil, err
	}
	if err := space.copySegment(header.InitData, executable); err != nil {
		return nil, err
	}

	return space, nil
}

// copySegment copies one NOFF segment from the executable file into the
// address space's physical frames, one page-aligned chunk at a time since
// consecutive virtual pages need not land in contiguous physical frames
// (addrspace.cc: "CopySegment").
func (s *AddressSpace) copySegment(seg noff.Segment, executable Executable) error {
	if seg.Size == 0 {
		return nil
	}
	buf := make([]byte, seg.Size)
	if _, err := executable.ReadAt(buf, int64(seg.InFileAddr)); err != nil {
		return fmt.Errorf("vm: reading segment at %#x: %w", seg.InFileAddr, err)
	}

	for off := uint32(0); off < uint32(len(buf)); {
		vaddr := seg.VirtualAddr + off
		paddr, err := s.translate(vaddr)
		if err != nil {
			return err
		}
		chunk := machine.PageSize - vaddr%machine.PageSize
		if remaining := uint32(len(buf)) - off; chunk > remaining {
			chunk = remaining
		}
		if err := s.mem.CopyIn(paddr, buf[off:off+chunk]); err != nil {
			return err
		}
		off += chunk
	}
	return nil
}

// translate resolves a virtual address to a physical one using this
// address space's own page table, independent of the hardware TLB
// (addrspace.cc: "TranslateMem"). Used only while loading the executable
// and pushing the argument stack, before the thread ever runs.
func (s *AddressSpace) translate(vaddr uint32) (uint32, error) {
	vpage := vaddr / machine.PageSize
	if int(vpage) >= len(s.pageTable) {
		return 0, fmt.Errorf("vm: virtual address %#x outside address space", vaddr)
	}
	offset := vaddr % machine.PageSize
	return s.pageTable[vpage].PhysicalPage*machine.PageSize + offset, nil
}

func (s *AddressSpace) writeByte(vaddr uint32, b byte) error {
	paddr, err := s.translate(vaddr)
	if err != nil {
		return err
	}
	return s.mem.WriteByte(paddr, b)
}

// writeWord writes a word-aligned 32-bit value. vaddr is always a multiple
// of 4 at every call site (argv pointer table entries), and PageSize is
// itself a multiple of 4, so the word never straddles a page boundary and
// a single translate+WriteWord suffices.
func (s *AddressSpace) writeWord(vaddr uint32, w uint32) error {
	paddr, err := s.translate(vaddr)
	if err != nil {
		return err
	}
	return s.mem.WriteWord(paddr, w)
}

// NumPages returns the number of virtual pages in this address space.
func (s *AddressSpace) NumPages() uint32 { return s.numPages }

// GetPage returns the page-table entry for a virtual page, used by the TLB
// miss handler to refill the hardware TLB (vm/tlbhandler.cc:
// "currentThread->space->GetPage").
func (s *AddressSpace) GetPage(virtualPage uint32) (*PageTableEntry, bool) {
	if int(virtualPage) >= len(s.pageTable) {
		return nil, false
	}
	return &s.pageTable[virtualPage], true
}

// SetArguments records argv to be pushed onto the user stack the next time
// InitRegisters runs, used by the Exec-with-arguments syscall path
// (addrspace.cc: "SetArguments").
func (s *AddressSpace) SetArguments(argv []string) {
	s.hasArguments = true
	s.argv = argv
}

// Arguments returns the argv this address space was created with.
func (s *AddressSpace) Arguments() []string { return s.argv }

// pushArgsOnStack copies argv onto the top of the user stack in reverse
// order, followed by a NULL-terminated, word-aligned array of pointers to
// them, and returns the resulting stack pointer (addrspace.cc:
// "PushArgsOnStack").
func (s *AddressSpace) pushArgsOnStack(sp uint32, argv []string) (uint32, error) {
	ptrs := make([]uint32, len(argv))
	cur := sp
	for i := len(argv) - 1; i >= 0; i-- {
		arg := argv[i]
		cur -= uint32(len(arg) + 1)
		for j := 0; j < len(arg); j++ {
			if err := s.writeByte(cur+uint32(j), arg[j]); err != nil {
				return 0, err
			}
		}
		if err := s.writeByte(cur+uint32(len(arg)), 0); err != nil {
			return 0, err
		}
		ptrs[i] = cur
	}

	cur -= cur % 4
	cur -= uint32(len(argv)+1) * 4
	argvBase := cur

	for i, p := range ptrs {
		if err := s.writeWord(argvBase+uint32(i*4), p); err != nil {
			return 0, err
		}
	}
	if err := s.writeWord(argvBase+uint32(len(argv)*4), 0); err != nil {
		return 0, err
	}
	return argvBase, nil
}

// InitRegisters sets a thread's user-mode registers to the entry point of
// this address space, pushing argv onto the stack first if SetArguments
// was called (addrspace.cc: "InitRegisters").
func (s *AddressSpace) InitRegisters(regs *machine.Registers) error {
	*regs = machine.Registers{}
	regs[machine.PCReg] = 0
	regs[machine.NextPCReg] = machine.InstructionSize

	sp := s.numPages * machine.PageSize
	if s.hasArguments {
		newSP, err := s.pushArgsOnStack(sp, s.argv)
		if err != nil {
			return err
		}
		regs[machine.Arg1Reg] = uint32(len(s.argv))
		regs[machine.Arg2Reg] = newSP
		sp = newSP
	}
	regs[machine.StackReg] = sp - 16
	return nil
}

// SaveState writes the use/dirty bits of every valid TLB entry back into
// this address space's page table before the hardware TLB is handed to
// another address space (addrspace.cc: "SaveState", #ifdef USE_TLB branch).
func (s *AddressSpace) SaveState() {
	for i := range s.tlb.Entries {
		e := &s.tlb.Entries[i]
		if e.Valid && int(e.VirtualPage) < len(s.pageTable) {
			pte := &s.pageTable[e.VirtualPage]
			pte.Use = e.Use
			pte.Dirty = e.Dirty
		}
	}
}

// RestoreState invalidates the hardware TLB so the next memory reference
// from this address space takes a clean page fault and refills from its
// own page table (addrspace.cc: "RestoreState", #ifdef USE_TLB branch).
func (s *AddressSpace) RestoreState() {
	s.tlb.InvalidateAll()
}

// Close releases every physical frame owned by this address space
// (addrspace.cc: "~AddrSpace", the memoryBitMap->Clear loop).
func (s *AddressSpace) Close() {
	for _, pte := range s.pageTable {
		s.frames.Clear(int(pte.PhysicalPage))
	}
}
