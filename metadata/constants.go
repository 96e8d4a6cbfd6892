package metadata

// Format contract constants shared with the device bootloader.
const (
	// Magic identifies an update image
	Magic uint64 = 0x1C8073AB20853579

	// Version is the metadata layout version written by this package
	Version uint32 = 1

	// HeaderSize is the size of the header block preceding the payload.
	// The copy routine starts at this offset.
	HeaderSize = 0x1000

	// FieldsSize is the size of the encoded fields; the rest of the header
	// block is zero
	FieldsSize = 0x2C

	// CRCPlaceholder is written into the CRC field before the checksum
	// over the finished image is known
	CRCPlaceholder uint32 = 0x12345678
)

// Field offsets within the header.
const (
	OffsetMagic             = 0x00
	OffsetCRC               = 0x08
	OffsetMetadataVersion   = 0x0C
	OffsetStorageAddress    = 0x10
	OffsetHardwareVersion   = 0x14
	OffsetSoftwareVersion   = 0x18
	OffsetCopyEntryAddress  = 0x1C
	OffsetNewAppAddress     = 0x20
	OffsetNewAppLength      = 0x24
	OffsetNewAppDestination = 0x28
)

// ChecksumStart is the first byte covered by the image CRC. The magic
// number and the CRC field itself are excluded.
const ChecksumStart = OffsetMetadataVersion
