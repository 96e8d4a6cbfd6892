package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/moffa90/go-fwpack/builder"
	"github.com/moffa90/go-fwpack/metadata"
)

type inspectParams struct {
	path        string
	hardware    version
	installedSW version
}

func addInspectParams(cmd commander) *inspectParams {
	params := &inspectParams{}

	cmd.Arg("image", "Update image to inspect.").Required().StringVar(&params.path)
	cmd.Flag("hw", "Device hardware version; fail unless major and minor match.").SetValue(&params.hardware)
	cmd.Flag("installed-sw", "Installed software version; fail unless the image is newer.").SetValue(&params.installedSW)
	return params
}

func inspect(ctx context.Context, params *inspectParams) error {
	data, err := builder.ReadImage(filesystem(ctx), params.path)
	if err != nil {
		return err
	}

	hdr, err := metadata.Decode(data)
	if err != nil {
		return errors.Wrapf(err, "inspect %s", params.path)
	}

	out := output(ctx)
	printHeader(out, *hdr)

	var opts []builder.VerifyOption
	if params.hardware.set {
		opts = append(opts, builder.WithHardware(params.hardware.value))
	}
	if params.installedSW.set {
		opts = append(opts, builder.WithInstalledSoftware(params.installedSW.value))
	}

	report, err := builder.Verify(data, opts...)
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", statusFail(), err)
		return errors.Wrapf(err, "verify %s", params.path)
	}

	fmt.Fprintf(out, "%s %s: copy routine %s, application %s, total %s\n",
		statusOK(), params.path,
		humanize.IBytes(uint64(report.CopyLength)),
		humanize.IBytes(uint64(report.Header.NewAppLength)),
		humanize.IBytes(uint64(report.Size)),
	)
	return nil
}
