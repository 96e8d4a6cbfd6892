package builder

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/moffa90/go-fwpack/elfimg"
	"github.com/moffa90/go-fwpack/metadata"
)

// Image is an assembled update image.
type Image struct {
	// Header is the encoded header, including the final CRC
	Header metadata.Header

	// Copy is the copy routine content stored after the header
	Copy *elfimg.Binary

	// App is the application content stored after the copy routine
	App *elfimg.Binary

	data []byte
}

// Bytes returns the complete image. The slice must not be modified.
func (img *Image) Bytes() []byte {
	return img.data
}

// Len returns the image size in bytes.
func (img *Image) Len() int {
	return len(img.data)
}

// WriteTo writes the image to w.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	return bytes.NewReader(img.data).WriteTo(w)
}

// WriteFile writes the image to path on fs. The content goes to a temporary
// file in the same directory which is renamed over path once it is complete,
// so readers never observe a partial image.
func (img *Image) WriteFile(fs afero.Fs, path string) error {
	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	fail := func(op string, err error) error {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return &IOError{Op: op, Path: path, Err: err}
	}

	if _, err := img.WriteTo(tmp); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return &IOError{Op: "close", Path: path, Err: err}
	}
	if err := fs.Chmod(tmpName, 0o644); err != nil {
		_ = fs.Remove(tmpName)
		return &IOError{Op: "chmod", Path: path, Err: err}
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// ReadImage reads a complete image file from fs.
func ReadImage(fs afero.Fs, path string) ([]byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &IOError{Op: "open", Path: path, Err: err}
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}
