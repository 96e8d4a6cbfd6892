// Package elfimg extracts flash content and symbol addresses from compiled
// ELF executables.
//
// # Extraction
//
// An executable is read once with NewFile. Its loadable segments are then
// cut out for a physical address window:
//
//	exe, err := elfimg.NewFile(f, "vario.elf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	bin, err := exe.Extract(elfimg.Window{Start: 0x08000000, End: 0x08080000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d bytes at 0x%08X\n", bin.Len(), bin.Base)
//
// The extracted Binary:
//   - starts at the window start, not at the lowest segment
//   - ends at the highest segment end inside the window, padded with zeros
//     to a multiple of 4 bytes
//   - has all gaps between segments filled with zeros
//
// Segments are selected by their load address (p_paddr), so initialized
// data that runs from RAM but is stored in flash is included at its flash
// location. The legacy section-based layout is available through
// ExtractMode with ModeSections.
//
// # Symbols
//
// Resolve returns the value of a named symbol:
//
//	entry, err := exe.Resolve("main")
//
// # Error Handling
//
//   - ParseError: the file is not a readable ELF executable, or it
//     carries relocation sections
//   - SymbolNotFoundError: the named symbol does not exist
//   - AddressRangeError: a segment crosses the window end, segments
//     overlap, or the window itself is empty
package elfimg
