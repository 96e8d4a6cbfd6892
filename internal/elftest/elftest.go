// Package elftest writes small, fully deterministic ELF32 little-endian ARM
// executables for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

const (
	headerSize  = 52
	progSize    = 32
	sectionSize = 40
	symSize     = 16
	relSize     = 8
)

// Segment is one PT_LOAD program header plus the PROGBITS section that
// covers it. The section address is VAddr, the load address is PAddr.
type Segment struct {
	Name  string
	PAddr uint32
	VAddr uint32
	Data  []byte

	// MemSize defaults to len(Data); larger values model a .bss tail.
	MemSize uint32
}

// Symbol is a global function symbol defined in the first segment section.
type Symbol struct {
	Name  string
	Value uint32
}

// Section is an extra, non-loaded section (e.g. .comment).
type Section struct {
	Name string
	Data []byte
}

// File describes an executable to be written.
type File struct {
	Entry    uint32
	Segments []Segment
	Symbols  []Symbol
	Extra    []Section

	// Relocations adds an SHT_REL section for the first segment section.
	Relocations bool

	// NoSymtab omits .symtab and .strtab.
	NoSymtab bool
}

type strtab struct {
	buf bytes.Buffer
}

func newStrtab() *strtab {
	s := &strtab{}
	s.buf.WriteByte(0)
	return s
}

func (s *strtab) add(name string) uint32 {
	off := uint32(s.buf.Len())
	s.buf.WriteString(name)
	s.buf.WriteByte(0)
	return off
}

// Bytes renders the executable.
func (f File) Bytes() []byte {
	var (
		data     bytes.Buffer
		sections []elf.Section32
		shstr    = newStrtab()
	)

	dataStart := uint32(headerSize + progSize*len(f.Segments))
	place := func(b []byte) uint32 {
		off := dataStart + uint32(data.Len())
		data.Write(b)
		return off
	}

	sections = append(sections, elf.Section32{})

	progs := make([]elf.Prog32, 0, len(f.Segments))
	for i, seg := range f.Segments {
		off := place(seg.Data)
		memsz := seg.MemSize
		if memsz < uint32(len(seg.Data)) {
			memsz = uint32(len(seg.Data))
		}
		progs = append(progs, elf.Prog32{
			Type:   uint32(elf.PT_LOAD),
			Off:    off,
			Vaddr:  seg.VAddr,
			Paddr:  seg.PAddr,
			Filesz: uint32(len(seg.Data)),
			Memsz:  memsz,
			Flags:  uint32(elf.PF_R | elf.PF_X),
			Align:  4,
		})

		name := seg.Name
		if name == "" {
			name = ".seg" + string(rune('0'+i))
		}
		sections = append(sections, elf.Section32{
			Name:      shstr.add(name),
			Type:      uint32(elf.SHT_PROGBITS),
			Flags:     uint32(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Addr:      seg.VAddr,
			Off:       off,
			Size:      uint32(len(seg.Data)),
			Addralign: 4,
		})
	}

	for _, extra := range f.Extra {
		off := place(extra.Data)
		sections = append(sections, elf.Section32{
			Name:      shstr.add(extra.Name),
			Type:      uint32(elf.SHT_PROGBITS),
			Off:       off,
			Size:      uint32(len(extra.Data)),
			Addralign: 1,
		})
	}

	symtabIndex := uint32(0)
	if !f.NoSymtab {
		str := newStrtab()
		var syms bytes.Buffer
		_ = binary.Write(&syms, binary.LittleEndian, elf.Sym32{})
		shndx := uint16(elf.SHN_ABS)
		if len(f.Segments) > 0 {
			shndx = 1
		}
		for _, sym := range f.Symbols {
			_ = binary.Write(&syms, binary.LittleEndian, elf.Sym32{
				Name:  str.add(sym.Name),
				Value: sym.Value,
				Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
				Shndx: shndx,
			})
		}

		symOff := place(syms.Bytes())
		symtabIndex = uint32(len(sections))
		sections = append(sections, elf.Section32{
			Name:      shstr.add(".symtab"),
			Type:      uint32(elf.SHT_SYMTAB),
			Off:       symOff,
			Size:      uint32(syms.Len()),
			Link:      symtabIndex + 1,
			Info:      1,
			Addralign: 4,
			Entsize:   symSize,
		})
		strOff := place(str.buf.Bytes())
		sections = append(sections, elf.Section32{
			Name:      shstr.add(".strtab"),
			Type:      uint32(elf.SHT_STRTAB),
			Off:       strOff,
			Size:      uint32(str.buf.Len()),
			Addralign: 1,
		})
	}

	if f.Relocations {
		rel := make([]byte, relSize)
		off := place(rel)
		sections = append(sections, elf.Section32{
			Name:      shstr.add(".rel.text"),
			Type:      uint32(elf.SHT_REL),
			Off:       off,
			Size:      relSize,
			Link:      symtabIndex,
			Info:      1,
			Addralign: 4,
			Entsize:   relSize,
		})
	}

	shstrIndex := uint16(len(sections))
	nameOff := shstr.add(".shstrtab")
	shstrOff := place(shstr.buf.Bytes())
	sections = append(sections, elf.Section32{
		Name:      nameOff,
		Type:      uint32(elf.SHT_STRTAB),
		Off:       shstrOff,
		Size:      uint32(shstr.buf.Len()),
		Addralign: 1,
	})

	for data.Len()%4 != 0 {
		data.WriteByte(0)
	}
	shoff := dataStart + uint32(data.Len())

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	phoff := uint32(0)
	if len(progs) > 0 {
		phoff = headerSize
	}
	hdr := elf.Header32{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_ARM),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     f.Entry,
		Phoff:     phoff,
		Shoff:     shoff,
		Ehsize:    headerSize,
		Phentsize: progSize,
		Phnum:     uint16(len(progs)),
		Shentsize: sectionSize,
		Shnum:     uint16(len(sections)),
		Shstrndx:  shstrIndex,
	}

	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, hdr)
	for _, p := range progs {
		_ = binary.Write(&out, binary.LittleEndian, p)
	}
	out.Write(data.Bytes())
	for _, s := range sections {
		_ = binary.Write(&out, binary.LittleEndian, s)
	}
	return out.Bytes()
}

// Pattern returns n bytes counting up from seed, handy for recognisable
// segment content.
func Pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}
