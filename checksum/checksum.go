package checksum

import (
	"encoding/binary"
	"hash"
)

// CRC algorithm constants of the STM32 CRC calculation unit.
const (
	// Polynomial is the CRC-32 (Ethernet) polynomial, MSB-first form
	Polynomial = 0x04C11DB7

	// InitialValue is the reset value of the CRC data register
	InitialValue = 0xFFFFFFFF

	// HighBitMask selects bit 31 of the register
	HighBitMask = 0x80000000

	// WordSize is the number of bytes the unit consumes per write
	WordSize = 4

	// BitsPerByte is the number of bits per byte
	BitsPerByte = 8
)

// Size is the size of the checksum in bytes.
const Size = 4

// CRC32STM32 computes the checksum the STM32 CRC unit produces when the
// data is written word by word into its data register.
//
// The input is split into little-endian 32-bit words. Each word is fed most
// significant byte first, so within a group of four bytes the last byte is
// processed first. There is no input or output reflection and no final XOR.
//
// A trailing group of fewer than WordSize bytes is not fed to the register.
func CRC32STM32(data []byte) uint32 {
	crc := uint32(InitialValue)
	for len(data) >= WordSize {
		crc = updateWord(crc, binary.LittleEndian.Uint32(data))
		data = data[WordSize:]
	}
	return crc
}

// updateWord feeds one data register write into the CRC.
func updateWord(crc uint32, word uint32) uint32 {
	for shift := 24; shift >= 0; shift -= BitsPerByte {
		crc = updateByte(crc, byte(word>>shift))
	}
	return crc
}

func updateByte(crc uint32, b byte) uint32 {
	crc ^= uint32(b) << 24
	for i := 0; i < BitsPerByte; i++ {
		if crc&HighBitMask != 0 {
			crc = (crc << 1) ^ Polynomial
		} else {
			crc <<= 1
		}
	}
	return crc
}

// digest is a streaming CRC32STM32 state. Bytes that do not yet form a
// complete word are held back until the next Write.
type digest struct {
	crc     uint32
	pending [WordSize]byte
	n       int
}

// New returns a hash.Hash32 computing CRC32STM32. Sum appends the checksum
// in little-endian order, the byte order it is stored in the image header.
func New() hash.Hash32 {
	d := &digest{}
	d.Reset()
	return d
}

func (d *digest) Reset() {
	d.crc = InitialValue
	d.n = 0
}

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return WordSize }

func (d *digest) Write(p []byte) (int, error) {
	written := len(p)
	if d.n > 0 {
		k := copy(d.pending[d.n:], p)
		d.n += k
		p = p[k:]
		if d.n < WordSize {
			return written, nil
		}
		d.crc = updateWord(d.crc, binary.LittleEndian.Uint32(d.pending[:]))
		d.n = 0
	}
	for len(p) >= WordSize {
		d.crc = updateWord(d.crc, binary.LittleEndian.Uint32(p))
		p = p[WordSize:]
	}
	d.n = copy(d.pending[:], p)
	return written, nil
}

func (d *digest) Sum32() uint32 { return d.crc }

func (d *digest) Sum(in []byte) []byte {
	return binary.LittleEndian.AppendUint32(in, d.crc)
}
