package uint256

import (
	"bytes"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Size is the number of bytes in a Uint256.
const Size = 32

// HexLength is the number of characters in the hexadecimal form of a Uint256.
const HexLength = Size * 2

// Uint256 is a 256-bit value, used to identify blocks and game states. It is
// a plain value type: assignment copies it and == compares it byte for byte.
type Uint256 struct {
	data [Size]byte
}

// FromBytes constructs a Uint256 from a slice of exactly Size bytes.
func FromBytes(data []byte) (Uint256, error) {
	if len(data) != Size {
		return Uint256{}, errors.Errorf("invalid uint256 length, want %d bytes, got %d",
			Size, len(data))
	}
	var u Uint256
	copy(u.data[:], data)
	return u, nil
}

// FromHex constructs a Uint256 from its hexadecimal form. The input must be
// exactly HexLength valid hex digits; both upper and lower case are accepted.
func FromHex(s string) (Uint256, error) {
	if len(s) != HexLength {
		return Uint256{}, errors.Errorf("invalid uint256 hex length, want %d characters, got %d",
			HexLength, len(s))
	}
	var u Uint256
	_, err := hex.Decode(u.data[:], []byte(s))
	if err != nil {
		return Uint256{}, errors.Wrap(err, "invalid uint256 hex string")
	}
	return u, nil
}

// Hex returns the lowercase hexadecimal form, most significant byte first.
func (u Uint256) Hex() string {
	return hex.EncodeToString(u.data[:])
}

// String returns the same form as Hex.
func (u Uint256) String() string {
	return u.Hex()
}

// CloneBytes returns a copy of the raw bytes, most significant byte first.
func (u Uint256) CloneBytes() []byte {
	clone := make([]byte, Size)
	copy(clone, u.data[:])
	return clone
}

// Cmp compares two values as unsigned 256-bit big-endian integers. It returns
// -1 if u < other, 0 if they are equal and 1 if u > other.
func (u Uint256) Cmp(other Uint256) int {
	return bytes.Compare(u.data[:], other.data[:])
}

// Less reports whether u orders before other.
func (u Uint256) Less(other Uint256) bool {
	return u.Cmp(other) < 0
}
