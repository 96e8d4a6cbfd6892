package elfimg

import (
	"fmt"
)

// ParseError indicates a malformed executable, or content the extractor
// refuses to handle such as relocation sections.
type ParseError struct {
	File   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.File, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SymbolNotFoundError indicates that a named symbol is missing from the
// symbol table.
type SymbolNotFoundError struct {
	File string
	Name string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol %q not found in %s", e.Name, e.File)
}

// AddressRangeError indicates that an address range does not fit the
// window or address space it has to live in.
type AddressRangeError struct {
	Window Window
	Addr   uint64
	Size   uint64
	Reason string
}

func (e *AddressRangeError) Error() string {
	if e.Addr == 0 && e.Size == 0 {
		return fmt.Sprintf("address range error: %s, window %s", e.Reason, e.Window)
	}
	return fmt.Sprintf("address range error: %s: 0x%08X+0x%X, window %s",
		e.Reason, e.Addr, e.Size, e.Window)
}
