package elfimg

import (
	"fmt"
	"sort"
	"strings"
)

// ExtractMode selects which parts of an executable make up a Binary.
type ExtractMode int

const (
	// ModeSegments selects PT_LOAD segments by physical (load) address.
	// This is the layout the metadata version 1 bootloader expects.
	ModeSegments ExtractMode = iota

	// ModeSections selects allocated sections by section address, the
	// layout produced by the first image packer. Sections whose run-time
	// address differs from their load address (initialized data copied
	// to RAM) are therefore not part of the image in this mode.
	ModeSections
)

// Alignment is the granularity of extracted binaries. The CRC unit and
// the flash programming both work on 32-bit words.
const Alignment = 4

func (m ExtractMode) String() string {
	switch m {
	case ModeSegments:
		return "segments"
	case ModeSections:
		return "sections"
	default:
		return fmt.Sprintf("ExtractMode(%d)", int(m))
	}
}

// ParseExtractMode converts "segments" or "sections" to an ExtractMode.
func ParseExtractMode(s string) (ExtractMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "segments":
		return ModeSegments, nil
	case "sections":
		return ModeSections, nil
	default:
		return 0, fmt.Errorf("unknown extraction mode %q (must be segments or sections)", s)
	}
}

type chunk struct {
	name string
	addr uint64
	data []byte
}

// Extract returns the content of all loadable segments whose physical
// address lies within w.
//
// The result starts at w.Start and ends at the highest segment end,
// rounded up to a multiple of Alignment. Gaps and padding are zero. A
// window without any segment yields an empty Binary and no error.
//
// Example:
//
//	bin, err := exe.Extract(elfimg.Window{Start: 0x08000000, End: 0x08080000})
func (e *Executable) Extract(w Window) (*Binary, error) {
	return e.ExtractMode(w, ModeSegments)
}

// ExtractMode is Extract with an explicit selection of segments or
// sections.
func (e *Executable) ExtractMode(w Window, mode ExtractMode) (*Binary, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	if len(e.Relocations) > 0 {
		return nil, &ParseError{
			File: e.Name,
			Reason: fmt.Sprintf("relocation section %s found: relocatable content is not supported",
				e.Relocations[0]),
		}
	}

	var chunks []chunk
	switch mode {
	case ModeSegments:
		for _, seg := range e.Segments {
			if !w.Contains(seg.PhysAddr) {
				continue
			}
			chunks = append(chunks, chunk{
				name: fmt.Sprintf("segment %d", seg.Index),
				addr: seg.PhysAddr,
				data: seg.Data,
			})
		}
	case ModeSections:
		for _, sec := range e.Sections {
			if !w.Contains(sec.Addr) {
				continue
			}
			chunks = append(chunks, chunk{
				name: sec.Name,
				addr: sec.Addr,
				data: sec.Data,
			})
		}
	default:
		return nil, fmt.Errorf("unsupported extraction mode %v", mode)
	}

	return layout(w, chunks)
}

// layout places the chunks into one zero-filled buffer based at w.Start.
func layout(w Window, chunks []chunk) (*Binary, error) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].addr < chunks[j].addr
	})

	bin := &Binary{
		Base:    w.Start,
		Regions: make([]Region, 0, len(chunks)),
	}

	var last uint64
	for i, c := range chunks {
		end := c.addr + uint64(len(c.data))
		if end > uint64(w.End) {
			return nil, &AddressRangeError{
				Window: w,
				Addr:   c.addr,
				Size:   uint64(len(c.data)),
				Reason: c.name + " extends past the window end",
			}
		}
		if i > 0 && c.addr < last {
			return nil, &AddressRangeError{
				Window: w,
				Addr:   c.addr,
				Size:   uint64(len(c.data)),
				Reason: c.name + " overlaps " + chunks[i-1].name,
			}
		}
		last = end
		bin.Regions = append(bin.Regions, Region{
			Name: c.name,
			Addr: uint32(c.addr),
			Size: len(c.data),
		})
	}

	if len(chunks) == 0 {
		bin.Data = []byte{}
		return bin, nil
	}

	size := alignUp(last-uint64(w.Start), Alignment)
	bin.Data = make([]byte, size)
	for _, c := range chunks {
		copy(bin.Data[c.addr-uint64(w.Start):], c.data)
	}

	return bin, nil
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}
