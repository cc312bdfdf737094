// Package config parses the command-line flags the bootstrapper needs,
// following the teacher's cmd/mipsvm flag layout (-v, -memory) extended
// with the knobs this kernel's tables need sized up front.
package config

import (
	"flag"
	"fmt"
	"math"
)

// Flags holds every value the bootstrapper reads off the command line.
type Flags struct {
	Verbose     bool
	MemorySize  uint32
	TLBSize     int
	NumFileDesc int
	MaxProcs    int
	Exec        string
	FilesDir    string
}

// Parse reads os.Args (via the flag package's default FlagSet) into Flags,
// validating that -memory fits a uint32 the way cmd/mipsvm does.
func Parse() (Flags, error) {
	verbose := flag.Bool("v", false, "enable verbose logging")
	memory := flag.Uint64("memory", 1<<20, "physical memory size in bytes (max 4294967295)")
	tlbSize := flag.Int("tlbsize", 4, "number of hardware TLB entries")
	numFileDesc := flag.Int("nfiledesc", 128, "file descriptor table size")
	maxProcs := flag.Int("maxprocs", 128, "maximum simultaneous processes")
	exec := flag.String("exec", "", "path of the initial executable to run")
	filesDir := flag.String("filesdir", "nachos-files", "directory backing the simulated filesystem")
	flag.Parse()

	if *memory > uint64(math.MaxUint32) {
		return Flags{}, fmt.Errorf("config: memory size %d exceeds max uint32 %d", *memory, uint32(math.MaxUint32))
	}

	return Flags{
		Verbose:     *verbose,
		MemorySize:  uint32(*memory),
		TLBSize:     *tlbSize,
		NumFileDesc: *numFileDesc,
		MaxProcs:    *maxProcs,
		Exec:        *exec,
		FilesDir:    *filesDir,
	}, nil
}
