package machine

// PageSize is the granularity of virtual-to-physical translation, matching
// the original Nachos machine's page size (also its disk sector size).
const PageSize = 128

// DefaultTLBSize is the number of hardware TLB entries when the caller
// doesn't override it via configuration (§4.C13).
const DefaultTLBSize = 4

// TLBEntry is one software-managed TLB slot (§4.C13), modeled as a single
// page mapping rather than the teacher's two-page-per-entry COP0.TLBEntry
// (internal/mips.TLBEntry) since this kernel's page table is one entry per
// page, not per even/odd pair.
type TLBEntry struct {
	VirtualPage  uint32
	PhysicalPage uint32
	Valid        bool
	ReadOnly     bool
	Use          bool
	Dirty        bool
}

// TLB is the hardware translation cache consulted by the kernel's
// user-memory accessors (vm.ReadByteUser/WriteByteUser) before they fall
// back to a TLB refill.
type TLB struct {
	Entries []TLBEntry
}

// NewTLB allocates an all-invalid TLB with the given number of entries.
func NewTLB(size int) *TLB {
	return &TLB{Entries: make([]TLBEntry, size)}
}

// Size returns the number of TLB slots.
func (t *TLB) Size() int { return len(t.Entries) }

// Lookup translates a virtual page to a physical page using the TLB,
// reporting ok=false on a miss (invalid or absent entry) so the caller can
// raise a page-fault exception (§4.C13).
func (t *TLB) Lookup(virtualPage uint32) (entry *TLBEntry, ok bool) {
	for i := range t.Entries {
		e := &t.Entries[i]
		if e.Valid && e.VirtualPage == virtualPage {
			return e, true
		}
	}
	return nil, false
}

// InvalidateAll marks every TLB entry invalid, used on RestoreState when an
// address space doesn't own the TLB's current contents (§4.C8).
func (t *TLB) InvalidateAll() {
	for i := range t.Entries {
		t.Entries[i].Valid = false
	}
}
