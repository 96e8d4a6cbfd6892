// Package checksum implements the CRC-32 variant computed by the STM32 CRC
// calculation unit.
//
// The device bootloader verifies an update image with the hardware unit
// before it overwrites its own flash, so the image builder has to produce
// exactly the value the unit produces. The unit differs from the common
// zlib/IEEE CRC-32:
//
//   - Polynomial 0x04C11DB7, processed MSB first (no reflection)
//   - Initial value 0xFFFFFFFF
//   - No final XOR
//   - Data is written as 32-bit words; since flash content is little-endian,
//     the four bytes of each word enter the shift register last byte first
//
// # Usage
//
//	crc := checksum.CRC32STM32(image[12:])
//
// or, streaming:
//
//	h := checksum.New()
//	_, _ = io.Copy(h, r)
//	crc := h.Sum32()
package checksum
