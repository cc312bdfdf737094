package vm

import (
	"fmt"
	"math/rand"

	"nachos-go/internal/machine"
)

// TLBHandler picks a TLB slot to evict and refills it from a process's
// page table on a page fault (§4.C13, vm/tlbhandler.cc).
type TLBHandler struct {
	tlb *machine.TLB
}

// NewTLBHandler binds a handler to the machine's hardware TLB.
func NewTLBHandler(tlb *machine.TLB) *TLBHandler {
	return &TLBHandler{tlb: tlb}
}

// choiceEntryToReplace picks a victim TLB slot: the first invalid one, or
// a uniformly random slot if every entry is already valid
// (tlbhandler.cc: "ChoiceEntryToReplace").
func (h *TLBHandler) choiceEntryToReplace() int {
	for i, e := range h.tlb.Entries {
		if !e.Valid {
			return i
		}
	}
	return rand.Intn(len(h.tlb.Entries))
}

// UpdateTLB installs the mapping for virtualPage from space's page table
// into a (possibly evicted) TLB slot (tlbhandler.cc: "UpdateTLB").
func (h *TLBHandler) UpdateTLB(space *AddressSpace, virtualPage uint32) error {
	pte, ok := space.GetPage(virtualPage)
	if !ok {
		return fmt.Errorf("vm: virtual page %d has no translation", virtualPage)
	}

	index := h.choiceEntryToReplace()
	h.tlb.Entries[index] = machine.TLBEntry{
		VirtualPage:  pte.VirtualPage,
		PhysicalPage: pte.PhysicalPage,
		Valid:        true,
		ReadOnly:     pte.ReadOnly,
		Use:          pte.Use,
		Dirty:        pte.Dirty,
	}
	return nil
}
