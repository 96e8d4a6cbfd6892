// Package metadata encodes and decodes the header of a firmware update image.
//
// # Header Layout
//
// The header occupies the first 4096 bytes of an image. All integers are
// little-endian:
//
//	0x0000  u64  magic            0x1C8073AB20853579
//	0x0008  u32  crc32            over image[0x0C:]
//	0x000C  u32  metadata_version 1
//	0x0010  u32  storage_address
//	0x0014  u32  hardware_version
//	0x0018  u32  software_version
//	0x001C  u32  copy_entry_address
//	0x0020  u32  new_app_address
//	0x0024  u32  new_app_length
//	0x0028  u32  new_app_destination
//	0x002C  zero padding up to 0x1000
//
// Version words hold major, minor, patch and build index, one byte each,
// at increasing addresses.
//
// # Usage
//
//	hdr := metadata.Header{
//	    CRC:             metadata.CRCPlaceholder,
//	    StorageAddress:  0x08080000,
//	    HardwareVersion: metadata.NewVersion(1, 0, 0, 0),
//	    SoftwareVersion: metadata.NewVersion(2, 0, 0, 0),
//	    // ...
//	}
//	block := metadata.Encode(hdr) // always HeaderSize bytes
//
//	// once the checksum over the whole image is known
//	metadata.PutCRC(image, crc)
//
// Decode reverses Encode and validates the magic number and metadata
// version, returning a FormatError otherwise.
package metadata
