package builder

import (
	"fmt"

	"github.com/moffa90/go-fwpack/checksum"
	"github.com/moffa90/go-fwpack/elfimg"
	"github.com/moffa90/go-fwpack/metadata"
)

// Report describes an image that passed Verify.
type Report struct {
	Header metadata.Header

	// CopyLength is the size of the copy routine content
	CopyLength uint32

	// Size is the total image size
	Size int
}

type verifyConfig struct {
	hardware    *metadata.VersionWord
	minSoftware *metadata.VersionWord
}

// VerifyOption configures Verify.
type VerifyOption func(*verifyConfig)

// WithHardware makes Verify check that the image was built for hw: major
// and minor must be equal.
func WithHardware(hw metadata.VersionWord) VerifyOption {
	return func(c *verifyConfig) {
		c.hardware = &hw
	}
}

// WithInstalledSoftware makes Verify check that the image software version
// is strictly newer than installed, as the bootloader does before it
// accepts an update.
func WithInstalledSoftware(installed metadata.VersionWord) VerifyOption {
	return func(c *verifyConfig) {
		c.minSoftware = &installed
	}
}

// Verify checks an image the way the device bootloader does: header
// format, layout consistency, CRC and optionally the version rules.
//
// Example:
//
//	data, _ := os.ReadFile("update.bin")
//	report, err := builder.Verify(data, builder.WithHardware(metadata.NewVersion(1, 0, 0, 0)))
func Verify(data []byte, opts ...VerifyOption) (*Report, error) {
	var cfg verifyConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	hdr, err := metadata.Decode(data)
	if err != nil {
		return nil, err
	}

	copyBase := uint64(hdr.StorageAddress) + metadata.HeaderSize
	if uint64(hdr.NewAppAddress) < copyBase {
		return nil, &VerificationError{Reason: fmt.Sprintf(
			"new application address 0x%08X precedes copy routine at 0x%08X",
			hdr.NewAppAddress, copyBase)}
	}

	copyLen := uint64(hdr.NewAppAddress) - copyBase
	if copyLen == 0 {
		return nil, &VerificationError{Reason: "image has no copy routine"}
	}
	if hdr.NewAppLength == 0 {
		return nil, &VerificationError{Reason: "image has no application"}
	}
	if copyLen%elfimg.Alignment != 0 || uint64(hdr.NewAppLength)%elfimg.Alignment != 0 {
		return nil, &VerificationError{Reason: fmt.Sprintf(
			"content lengths 0x%X and 0x%X are not word aligned", copyLen, hdr.NewAppLength)}
	}

	entry := uint64(hdr.CopyEntryAddress &^ 1)
	if entry < copyBase || entry >= uint64(hdr.NewAppAddress) {
		return nil, &VerificationError{Reason: fmt.Sprintf(
			"copy entry 0x%08X lies outside the copy routine", hdr.CopyEntryAddress)}
	}

	size := metadata.HeaderSize + copyLen + uint64(hdr.NewAppLength)
	if uint64(len(data)) != size {
		return nil, &VerificationError{Reason: fmt.Sprintf(
			"image is %d bytes, header describes %d bytes", len(data), size)}
	}

	if actual := checksum.CRC32STM32(data[metadata.ChecksumStart:]); actual != hdr.CRC {
		return nil, &ChecksumMismatchError{Expected: hdr.CRC, Actual: actual}
	}

	if cfg.hardware != nil && !hdr.HardwareVersion.CompatibleWith(*cfg.hardware) {
		return nil, &VerificationError{Reason: fmt.Sprintf(
			"image is built for hardware %s, device is %s", hdr.HardwareVersion, *cfg.hardware)}
	}
	if cfg.minSoftware != nil && hdr.SoftwareVersion.Compare(*cfg.minSoftware) <= 0 {
		return nil, &VerificationError{Reason: fmt.Sprintf(
			"software %s is not newer than installed %s", hdr.SoftwareVersion, *cfg.minSoftware)}
	}

	return &Report{
		Header:     *hdr,
		CopyLength: uint32(copyLen),
		Size:       len(data),
	}, nil
}
