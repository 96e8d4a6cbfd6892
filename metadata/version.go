package metadata

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// VersionWord is a hardware or software version as stored in the header:
// major, minor, patch and build index, one byte each, in that order.
type VersionWord [4]byte

// NewVersion builds a VersionWord from its parts.
func NewVersion(major, minor, patch, build uint8) VersionWord {
	return VersionWord{major, minor, patch, build}
}

// VersionFromUint32 returns the VersionWord whose little-endian encoding
// is w.
func VersionFromUint32(w uint32) VersionWord {
	var v VersionWord
	binary.LittleEndian.PutUint32(v[:], w)
	return v
}

// ParseVersion accepts "major.minor.patch.build", "major.minor.patch"
// (build 0), or a raw 32-bit number such as "0x01000000" that is stored
// unchanged.
func ParseVersion(s string) (VersionWord, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return VersionWord{}, fmt.Errorf("empty version")
	}

	parts := strings.Split(s, ".")
	if len(parts) == 1 {
		w, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return VersionWord{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		return VersionFromUint32(uint32(w)), nil
	}

	if len(parts) != 3 && len(parts) != 4 {
		return VersionWord{}, fmt.Errorf("invalid version %q: expected major.minor.patch[.build]", s)
	}

	var v VersionWord
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return VersionWord{}, fmt.Errorf("invalid version %q: component %d: %w", s, i, err)
		}
		v[i] = uint8(n)
	}
	return v, nil
}

func (v VersionWord) Major() uint8      { return v[0] }
func (v VersionWord) Minor() uint8      { return v[1] }
func (v VersionWord) Patch() uint8      { return v[2] }
func (v VersionWord) BuildIndex() uint8 { return v[3] }

// Uint32 returns the header word.
func (v VersionWord) Uint32() uint32 {
	return binary.LittleEndian.Uint32(v[:])
}

func (v VersionWord) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
}

// CompatibleWith reports whether an image built for hardware v runs on
// hardware other: major and minor must match.
func (v VersionWord) CompatibleWith(other VersionWord) bool {
	return v.Major() == other.Major() && v.Minor() == other.Minor()
}

// Compare orders software versions by major, minor, patch, then build.
// It returns -1, 0 or +1.
func (v VersionWord) Compare(other VersionWord) int {
	for i := range v {
		switch {
		case v[i] < other[i]:
			return -1
		case v[i] > other[i]:
			return 1
		}
	}
	return 0
}
