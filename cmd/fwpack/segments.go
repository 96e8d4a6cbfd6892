package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/moffa90/go-fwpack/elfimg"
)

type segmentsParams struct {
	path  string
	start address
	end   address
	mode  string
}

func addSegmentsParams(cmd commander) *segmentsParams {
	params := &segmentsParams{}

	cmd.Arg("elf", "Executable to list.").Required().StringVar(&params.path)
	cmd.Flag("start", "Window start; with --end, mark and extract what the window selects.").SetValue(&params.start)
	cmd.Flag("end", "Window end, exclusive.").SetValue(&params.end)
	cmd.Flag("mode", "Extraction mode: segments or sections.").Default("segments").EnumVar(&params.mode, "segments", "sections")
	return params
}

func openExecutable(fs afero.Fs, path string) (*elfimg.Executable, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open executable")
	}
	defer f.Close()

	return elfimg.NewFile(f, path)
}

func segments(ctx context.Context, params *segmentsParams) error {
	mode, err := elfimg.ParseExtractMode(params.mode)
	if err != nil {
		return err
	}
	if params.start.set != params.end.set {
		return errors.New("--start and --end must be given together")
	}

	exe, err := openExecutable(filesystem(ctx), params.path)
	if err != nil {
		return err
	}

	var window *elfimg.Window
	if params.start.set {
		window = &elfimg.Window{Start: params.start.value, End: params.end.value}
	}
	inWindow := func(addr uint64) string {
		switch {
		case window == nil:
			return "-"
		case window.Contains(addr):
			return "yes"
		default:
			return "no"
		}
	}

	out := output(ctx)
	fmt.Fprintf(out, "%s: %s, entry 0x%08X\n", exe.Name, exe.Machine, exe.Entry)

	switch mode {
	case elfimg.ModeSections:
		table := newTable(out, "Section", "Address", "Size", "In window")
		for _, sec := range exe.Sections {
			table.Append([]string{
				sec.Name,
				fmt.Sprintf("0x%08X", sec.Addr),
				humanize.IBytes(uint64(len(sec.Data))),
				inWindow(sec.Addr),
			})
		}
		table.Render()
	default:
		table := newTable(out, "Segment", "Load address", "Run address", "File size", "Mem size", "In window")
		for _, seg := range exe.Segments {
			table.Append([]string{
				strconv.Itoa(seg.Index),
				fmt.Sprintf("0x%08X", seg.PhysAddr),
				fmt.Sprintf("0x%08X", seg.VirtAddr),
				humanize.IBytes(uint64(len(seg.Data))),
				humanize.IBytes(seg.MemSize),
				inWindow(seg.PhysAddr),
			})
		}
		table.Render()
	}

	if len(exe.Relocations) > 0 {
		fmt.Fprintf(out, "%s relocation sections: %v\n", statusFail(), exe.Relocations)
	}

	if window == nil {
		return nil
	}
	bin, err := exe.ExtractMode(*window, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "window %s: %s from %d regions\n",
		window, humanize.IBytes(uint64(bin.Len())), len(bin.Regions))
	return nil
}
