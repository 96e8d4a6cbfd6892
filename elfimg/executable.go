package elfimg

import (
	"debug/elf"
	"fmt"
)

// Executable holds everything the image builder needs from one ELF file.
// All byte slices are owned copies; the file can be closed once NewFile
// returns.
type Executable struct {
	// Name identifies the file in errors and logs
	Name string

	// Machine is the ELF target architecture
	Machine elf.Machine

	// Entry is the ELF entry point
	Entry uint64

	// Segments are the PT_LOAD program segments with file content,
	// in program header order
	Segments []Segment

	// Sections are the allocated sections with file content,
	// in section header order
	Sections []Section

	// Relocations lists the names of SHT_REL and SHT_RELA sections
	Relocations []string

	symbols []Symbol
}

// Segment is one loadable program segment.
type Segment struct {
	// Index is the program header index
	Index int

	// PhysAddr is the load (flash) address
	PhysAddr uint64

	// VirtAddr is the run-time address
	VirtAddr uint64

	// MemSize is the size in memory, including any zero-initialized tail
	MemSize uint64

	// Data is the file-backed content (p_filesz bytes)
	Data []byte
}

// Section is one allocated, file-backed section.
type Section struct {
	Name string
	Addr uint64
	Data []byte
}

// Symbol is a symbol table entry.
type Symbol struct {
	Name    string
	Value   uint64
	Type    elf.SymType
	Defined bool
}

// Region is a named address range that was copied into a Binary.
type Region struct {
	Name string
	Addr uint32
	Size int
}

// Binary is the contiguous content of a window: offset 0 corresponds to
// Base, gaps are zero-filled and the length is a multiple of 4.
type Binary struct {
	// Base is the window start address
	Base uint32

	// Data is the extracted content
	Data []byte

	// Regions lists the segments (or sections) that were included,
	// sorted by address
	Regions []Region
}

// Len returns the length of the extracted content in bytes.
func (b *Binary) Len() int {
	return len(b.Data)
}

// End returns the address one past the last extracted byte.
func (b *Binary) End() uint64 {
	return uint64(b.Base) + uint64(len(b.Data))
}

// Window is a physical address range [Start, End).
type Window struct {
	Start uint32
	End   uint32
}

// Contains reports whether addr lies within the window.
func (w Window) Contains(addr uint64) bool {
	return addr >= uint64(w.Start) && addr < uint64(w.End)
}

// Size returns the size of the window in bytes.
func (w Window) Size() uint32 {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

func (w Window) String() string {
	return fmt.Sprintf("[0x%08X, 0x%08X)", w.Start, w.End)
}

// Validate returns an AddressRangeError for an empty or inverted window.
func (w Window) Validate() error {
	if w.End <= w.Start {
		return &AddressRangeError{
			Window: w,
			Reason: "window end must be greater than window start",
		}
	}
	return nil
}
