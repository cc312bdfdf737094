package vm

import (
	"fmt"

	"nachos-go/internal/machine"
)

// translateThroughTLB resolves a virtual address via the hardware TLB,
// refilling it once from space's page table on a miss before giving up
// (§4.C12's "retry once after a TLB miss", §4.C13's UpdateTLB).
func translateThroughTLB(mem *machine.Memory, tlb *machine.TLB, handler *TLBHandler, space *AddressSpace, vaddr uint32) (physAddr uint32, entry *machine.TLBEntry, err error) {
	vpage := vaddr / machine.PageSize
	offset := vaddr % machine.PageSize

	e, ok := tlb.Lookup(vpage)
	if !ok {
		if err := handler.UpdateTLB(space, vpage); err != nil {
			return 0, nil, err
		}
		e, ok = tlb.Lookup(vpage)
		if !ok {
			return 0, nil, fmt.Errorf("vm: unresolvable page fault at virtual address %#x", vaddr)
		}
	}
	return e.PhysicalPage*machine.PageSize + offset, e, nil
}

// ReadByteUser reads one byte from a process's virtual address space
// (mem_tools.cc: "readBuffFromUsr", one iteration of its loop).
func ReadByteUser(mem *machine.Memory, tlb *machine.TLB, handler *TLBHandler, space *AddressSpace, vaddr uint32) (byte, error) {
	paddr, entry, err := translateThroughTLB(mem, tlb, handler, space, vaddr)
	if err != nil {
		return 0, err
	}
	entry.Use = true
	return mem.ReadByte(paddr)
}

// WriteByteUser writes one byte into a process's virtual address space
// (mem_tools.cc: "writeBuffToUsr", one iteration of its loop).
func WriteByteUser(mem *machine.Memory, tlb *machine.TLB, handler *TLBHandler, space *AddressSpace, vaddr uint32, b byte) error {
	paddr, entry, err := translateThroughTLB(mem, tlb, handler, space, vaddr)
	if err != nil {
		return err
	}
	if entry.ReadOnly {
		return fmt.Errorf("vm: write to read-only page at virtual address %#x", vaddr)
	}
	entry.Use = true
	entry.Dirty = true
	return mem.WriteByte(paddr, b)
}

// ReadBufferUser reads byteCount bytes starting at a virtual address
// (mem_tools.cc: "readBuffFromUsr").
func ReadBufferUser(mem *machine.Memory, tlb *machine.TLB, handler *TLBHandler, space *AddressSpace, vaddr uint32, byteCount int) ([]byte, error) {
	out := make([]byte, byteCount)
	for i := 0; i < byteCount; i++ {
		b, err := ReadByteUser(mem, tlb, handler, space, vaddr+uint32(i))
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// WriteBufferUser writes buf into a process's virtual address space
// starting at vaddr (mem_tools.cc: "writeBuffToUsr").
func WriteBufferUser(mem *machine.Memory, tlb *machine.TLB, handler *TLBHandler, space *AddressSpace, vaddr uint32, buf []byte) error {
	for i, b := range buf {
		if err := WriteByteUser(mem, tlb, handler, space, vaddr+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}

// ReadStringUser reads a NUL-terminated string starting at vaddr
// (mem_tools.cc: "readStrFromUsr").
func ReadStringUser(mem *machine.Memory, tlb *machine.TLB, handler *TLBHandler, space *AddressSpace, vaddr uint32) (string, error) {
	var buf []byte
	for i := uint32(0); ; i++ {
		b, err := ReadByteUser(mem, tlb, handler, space, vaddr+i)
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

// WriteStringUser writes s followed by a NUL terminator starting at vaddr
// (mem_tools.cc: "writeStrToUsr").
func WriteStringUser(mem *machine.Memory, tlb *machine.TLB, handler *TLBHandler, space *AddressSpace, vaddr uint32, s string) error {
	if err := WriteBufferUser(mem, tlb, handler, space, vaddr, []byte(s)); err != nil {
		return err
	}
	return WriteByteUser(mem, tlb, handler, space, vaddr+uint32(len(s)), 0)
}
