package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"

	"github.com/moffa90/go-fwpack/builder"
)

type buildParams struct {
	configPath string
	flags      packConfig
}

func addBuildParams(cmd commander) *buildParams {
	params := &buildParams{}

	cmd.Flag("config", "YAML pack file. Flags override its values.").Short('c').Envar(envPrefix + "CONFIG").StringVar(&params.configPath)
	cmd.Flag("output", "Image file to write. (default: image.bin)").Short('o').StringVar(&params.flags.Output)
	cmd.Flag("copy-elf", "Copy routine executable.").StringVar(&params.flags.CopyRoutine.ELF)
	cmd.Flag("copy-start", "Copy routine window start; must be storage address + 0x1000. (default: 0x08081000)").SetValue(&params.flags.CopyRoutine.Start)
	cmd.Flag("copy-end", "Copy routine window end, exclusive. (default: 0x08085000)").SetValue(&params.flags.CopyRoutine.End)
	cmd.Flag("entry-symbol", "Copy routine entry point symbol. (default: main)").StringVar(&params.flags.CopyRoutine.EntrySymbol)
	cmd.Flag("app-elf", "Application executable.").StringVar(&params.flags.App.ELF)
	cmd.Flag("app-start", "Application window start, also its destination. (default: 0x08000000)").SetValue(&params.flags.App.Start)
	cmd.Flag("app-end", "Application window end, exclusive. (default: 0x08080000)").SetValue(&params.flags.App.End)
	cmd.Flag("storage", "Flash address the image is stored at. (default: 0x08080000)").SetValue(&params.flags.StorageAddress)
	cmd.Flag("hw-version", "Hardware version, as 1.2.3.4 or a raw word. (default: 0x01000000)").SetValue(&params.flags.HardwareVersion)
	cmd.Flag("sw-version", "Software version, as 1.2.3.4 or a raw word. (default: 0x02000000)").SetValue(&params.flags.SoftwareVersion)
	cmd.Flag("mode", "Extraction mode: segments or sections. (default: segments)").EnumVar(&params.flags.Extraction, "segments", "sections")
	return params
}

func build(ctx context.Context, params *buildParams) error {
	fs := filesystem(ctx)

	pc := &packConfig{}
	if params.configPath != "" {
		loaded, err := loadConfig(fs, params.configPath)
		if err != nil {
			return err
		}
		pc = loaded
	}
	pc.override(&params.flags)

	p, err := pc.params()
	if err != nil {
		return err
	}
	opts, err := pc.options()
	if err != nil {
		return err
	}
	opts = append(opts,
		builder.WithFs(fs),
		builder.WithLogger(logger),
		builder.WithProgressCallback(func(pr builder.Progress) {
			_ = level.Debug(logger).Log("msg", "stage", "stage", pr.Stage, "bytes", pr.Bytes, "elapsed", pr.ElapsedTime)
		}),
	)

	path := pc.outputPath()
	img, err := builder.New(opts...).BuildFile(p, path)
	if err != nil {
		return err
	}

	out := output(ctx)
	printBinary(out, "Copy routine "+p.CopyRoutine.Path, img.Copy)
	printBinary(out, "Application "+p.App.Path, img.App)
	printHeader(out, img.Header)
	fmt.Fprintf(out, "wrote %s (%s)\n", path, humanize.IBytes(uint64(img.Len())))
	return nil
}
