package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Header describes a combined update image. It is stored in the first
// HeaderSize bytes of the image.
type Header struct {
	// CRC is the checksum over the image from ChecksumStart to the end
	CRC uint32

	// StorageAddress is the flash address the image is stored at
	StorageAddress uint32

	// HardwareVersion is the hardware the image is built for
	HardwareVersion VersionWord

	// SoftwareVersion is the version of the new application
	SoftwareVersion VersionWord

	// CopyEntryAddress is the entry point of the copy routine
	CopyEntryAddress uint32

	// NewAppAddress is where the new application is stored within the image
	NewAppAddress uint32

	// NewAppLength is the length of the new application in bytes
	NewAppLength uint32

	// NewAppDestination is the flash address the copy routine moves the
	// new application to
	NewAppDestination uint32
}

// wireHeader is the on-flash field layout. Field order and widths are the
// format; do not reorder.
type wireHeader struct {
	Magic             uint64
	CRC               uint32
	MetadataVersion   uint32
	StorageAddress    uint32
	HardwareVersion   VersionWord
	SoftwareVersion   VersionWord
	CopyEntryAddress  uint32
	NewAppAddress     uint32
	NewAppLength      uint32
	NewAppDestination uint32
}

// Encode serializes h into a HeaderSize block. All fields are little-endian;
// the magic number and metadata version are always the package constants.
//
// Block layout:
//
//	[MAGIC(8)][CRC(4)][META_VER(4)][STORAGE(4)][HW(4)][SW(4)]
//	[COPY_ENTRY(4)][NEW_APP(4)][NEW_APP_LEN(4)][NEW_APP_DEST(4)][ZERO...]
func Encode(h Header) []byte {
	w := wireHeader{
		Magic:             Magic,
		CRC:               h.CRC,
		MetadataVersion:   Version,
		StorageAddress:    h.StorageAddress,
		HardwareVersion:   h.HardwareVersion,
		SoftwareVersion:   h.SoftwareVersion,
		CopyEntryAddress:  h.CopyEntryAddress,
		NewAppAddress:     h.NewAppAddress,
		NewAppLength:      h.NewAppLength,
		NewAppDestination: h.NewAppDestination,
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	// Writing a fixed-size struct into a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, &w)
	for buf.Len() < HeaderSize {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// Decode parses the header at the start of data. The magic number and
// metadata version must match; the CRC is not checked here.
func Decode(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, &FormatError{
			Reason: fmt.Sprintf("image too short: got %d bytes, header alone is %d", len(data), HeaderSize),
		}
	}

	var w wireHeader
	if err := binary.Read(bytes.NewReader(data[:FieldsSize]), binary.LittleEndian, &w); err != nil {
		return nil, &FormatError{Reason: "unreadable header", Err: err}
	}

	if w.Magic != Magic {
		return nil, &FormatError{
			Reason: fmt.Sprintf("invalid magic number: got 0x%016X, expected 0x%016X", w.Magic, Magic),
		}
	}
	if w.MetadataVersion != Version {
		return nil, &FormatError{
			Reason: fmt.Sprintf("unsupported metadata version: got %d, expected %d", w.MetadataVersion, Version),
		}
	}

	return &Header{
		CRC:               w.CRC,
		StorageAddress:    w.StorageAddress,
		HardwareVersion:   w.HardwareVersion,
		SoftwareVersion:   w.SoftwareVersion,
		CopyEntryAddress:  w.CopyEntryAddress,
		NewAppAddress:     w.NewAppAddress,
		NewAppLength:      w.NewAppLength,
		NewAppDestination: w.NewAppDestination,
	}, nil
}

// PutCRC stores crc into the CRC field of an encoded header or image.
func PutCRC(image []byte, crc uint32) {
	binary.LittleEndian.PutUint32(image[OffsetCRC:OffsetCRC+4], crc)
}

// CRC returns the CRC field of an encoded header or image.
func CRC(image []byte) uint32 {
	return binary.LittleEndian.Uint32(image[OffsetCRC : OffsetCRC+4])
}
