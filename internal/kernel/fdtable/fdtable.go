// Package fdtable is C9: a fixed-size file-descriptor table shared by
// every running process, with ownership tracked per slot so one process
// can't read or close a descriptor it didn't open. Grounded on
// userprog/fdtable.cc/.h.
package fdtable

import "nachos-go/internal/kernel/fs"

// DefaultSize is the table size New uses absent a -nfiledesc override,
// matching the original's FDT_SIZE. Slots 0 and 1 are reserved for the
// console (ConsoleInput, ConsoleOutput) and are never handed out by
// Attach.
const DefaultSize = 128

// File is the open-file handle a descriptor slot tracks; an alias for
// fs.OpenFile so callers can Read/Write/Close the value Get returns
// without a type assertion at every call site.
type File = fs.OpenFile

// Owner identifies the thread a descriptor was attached under; the
// threads.Thread pointer satisfies it via reference identity.
type Owner interface{}

type slot struct {
	file  File
	owner Owner
}

// Table is the shared file-descriptor table.
type Table struct {
	slots []slot
}

// New creates an empty table with size descriptor slots, sized from the
// bootstrapper's -nfiledesc flag (internal/config.Flags.NumFileDesc).
func New(size int) *Table {
	return &Table{slots: make([]slot, size)}
}

// Size returns the number of descriptor slots in the table.
func (t *Table) Size() int { return len(t.slots) }

// Attach installs f in the first free slot at or after index 2 and
// records owner as its owner, returning the slot index or -1 if the table
// is full (fdtable.cc: "attachFile").
func (t *Table) Attach(f File, owner Owner) int {
	for i := 2; i < len(t.slots); i++ {
		if t.slots[i].file == nil {
			t.slots[i] = slot{file: f, owner: owner}
			return i
		}
	}
	return -1
}

// Get returns the file attached to id, rejecting an out-of-range id, a
// free slot, or a caller that isn't the owner (fdtable.cc: "getFile").
func (t *Table) Get(id int, caller Owner) (File, bool) {
	if id < 2 || id >= len(t.slots) || t.slots[id].file == nil || t.slots[id].owner != caller {
		return nil, false
	}
	return t.slots[id].file, true
}

// Detach frees id, rejecting the same conditions as Get
// (fdtable.cc: "detachFile").
func (t *Table) Detach(id int, caller Owner) bool {
	if id < 2 || id >= len(t.slots) || t.slots[id].file == nil || t.slots[id].owner != caller {
		return false
	}
	t.slots[id] = slot{}
	return true
}
