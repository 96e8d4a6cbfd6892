package elfimg

import "math"

// Symbols returns the symbol table entries in file order.
func (e *Executable) Symbols() []Symbol {
	return e.symbols
}

// Resolve returns the address of the named symbol.
//
// Defined symbols win over undefined references of the same name; among
// defined symbols the first one in the table is used. For Thumb code the
// returned address keeps the interworking bit, which is what a branch to
// the routine needs.
func (e *Executable) Resolve(name string) (uint32, error) {
	var (
		found bool
		value uint64
	)
	for _, sym := range e.symbols {
		if sym.Name != name {
			continue
		}
		if sym.Defined {
			found, value = true, sym.Value
			break
		}
		if !found {
			found, value = true, sym.Value
		}
	}
	if !found {
		return 0, &SymbolNotFoundError{File: e.Name, Name: name}
	}
	if value > math.MaxUint32 {
		return 0, &AddressRangeError{
			Addr:   value,
			Reason: "symbol " + name + " lies outside the 32-bit address space",
		}
	}
	return uint32(value), nil
}
