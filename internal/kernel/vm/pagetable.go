// Package vm is C8 + C13: per-process address spaces, the physical frame
// allocator backing them, and the software TLB-miss handler that refills
// the machine's hardware TLB from a process's page table. Grounded on
// userprog/addrspace.cc and vm/tlbhandler.cc from the original kernel.
package vm

// PageTableEntry is one virtual-to-physical mapping, mirroring the
// original's TranslationEntry (addrspace.h) and the teacher's
// internal/mips.TLBEntry, cut down to one page per entry.
type PageTableEntry struct {
	VirtualPage  uint32
	PhysicalPage uint32
	Valid        bool
	ReadOnly     bool
	Use          bool
	Dirty        bool
}

// FrameAllocator hands out physical page frames by bit, grounded on the
// original's BitMap-backed memoryBitMap (addrspace.cc: "Find()" / "Clear()"
// per freed page).
type FrameAllocator struct {
	used []bool
}

// NewFrameAllocator creates an allocator over numFrames physical frames,
// all initially free.
func NewFrameAllocator(numFrames int) *FrameAllocator {
	return &FrameAllocator{used: make([]bool, numFrames)}
}

// NumClear reports how many frames are still free.
func (a *FrameAllocator) NumClear() int {
	n := 0
	for _, b := range a.used {
		if !b {
			n++
		}
	}
	return n
}

// Find allocates and returns the index of a free frame, or -1 if none
// remain (addrspace.cc: "memoryBitMap->Find()").
func (a *FrameAllocator) Find() int {
	for i, b := range a.used {
		if !b {
			a.used[i] = true
			return i
		}
	}
	return -1
}

// Clear frees a previously allocated frame.
func (a *FrameAllocator) Clear(frame int) {
	a.used[frame] = false
}
