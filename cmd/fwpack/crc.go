package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/moffa90/go-fwpack/checksum"
	"github.com/moffa90/go-fwpack/metadata"
)

type crcParams struct {
	paths  []string
	offset int64
	image  bool
}

func addCRCParams(cmd commander) *crcParams {
	params := &crcParams{}

	cmd.Arg("file", "Files to checksum.").Required().StringsVar(&params.paths)
	cmd.Flag("offset", "Skip this many bytes before checksumming.").Default("0").Int64Var(&params.offset)
	cmd.Flag("image", "Checksum the range an image header CRC covers (same as --offset 12).").BoolVar(&params.image)
	return params
}

func crc(ctx context.Context, params *crcParams) error {
	offset := params.offset
	if params.image {
		offset = metadata.ChecksumStart
	}
	if offset < 0 {
		return errors.Errorf("negative offset %d", offset)
	}

	fs := filesystem(ctx)
	out := output(ctx)
	for _, path := range params.paths {
		sum, n, err := fileCRC(fs, path, offset)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "0x%08X  %s  (%s)\n", sum, path, humanize.IBytes(uint64(n)))
	}
	return nil
}

// fileCRC streams path from offset through the CRC engine.
func fileCRC(fs afero.Fs, path string, offset int64) (uint32, int64, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, 0, errors.Wrapf(err, "stat %s", path)
	}
	if offset > info.Size() {
		return 0, 0, errors.Errorf("offset %d is past the end of %s (%d bytes)", offset, path, info.Size())
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, 0, errors.Wrapf(err, "seek %s", path)
	}

	h := checksum.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "read %s", path)
	}
	return h.Sum32(), n, nil
}
