package elfimg

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
)

// NewFile reads an ELF executable from r. The name is only used in errors.
//
// Segment, section and symbol data is copied into memory, so r is not
// referenced after NewFile returns.
//
// Example:
//
//	f, err := os.Open("app.elf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	exe, err := elfimg.NewFile(f, "app.elf")
//	f.Close()
func NewFile(r io.ReaderAt, name string) (*Executable, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, &ParseError{File: name, Reason: "invalid ELF file", Err: err}
	}
	defer func() { _ = f.Close() }()

	exe := &Executable{
		Name:    name,
		Machine: f.Machine,
		Entry:   f.Entry,
	}

	for i, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(prog.Open(), data); err != nil {
			return nil, &ParseError{
				File:   name,
				Reason: fmt.Sprintf("failed to read segment %d", i),
				Err:    err,
			}
		}
		exe.Segments = append(exe.Segments, Segment{
			Index:    i,
			PhysAddr: prog.Paddr,
			VirtAddr: prog.Vaddr,
			MemSize:  prog.Memsz,
			Data:     data,
		})
	}

	for _, sec := range f.Sections {
		switch sec.Type {
		case elf.SHT_REL, elf.SHT_RELA:
			exe.Relocations = append(exe.Relocations, sec.Name)
			continue
		case elf.SHT_NOBITS:
			continue
		}
		if sec.Flags&elf.SHF_ALLOC == 0 || sec.Size == 0 {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, &ParseError{
				File:   name,
				Reason: fmt.Sprintf("failed to read section %s", sec.Name),
				Err:    err,
			}
		}
		exe.Sections = append(exe.Sections, Section{
			Name: sec.Name,
			Addr: sec.Addr,
			Data: data,
		})
	}

	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, &ParseError{File: name, Reason: "failed to read symbol table", Err: err}
	}
	for _, sym := range syms {
		exe.symbols = append(exe.symbols, Symbol{
			Name:    sym.Name,
			Value:   sym.Value,
			Type:    elf.ST_TYPE(sym.Info),
			Defined: sym.Section != elf.SHN_UNDEF,
		})
	}

	return exe, nil
}
