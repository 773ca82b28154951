package database

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash is a 256-bit identifier stored in internal (little-endian) byte
// order, the order produced by sha256d over serialized data.
type Hash [32]byte

// ZeroHash is the null hash value.
var ZeroHash Hash

// Sha256d computes the double SHA-256 of the data.
func Sha256d(data []byte) Hash {
	first := sha256.Sum256(data)
	return Hash(sha256.Sum256(first[:]))
}

// IsZero reports whether the hash is the null value.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Hex returns the display form of the hash: byte-reversed hex, the
// convention for block and transaction identifiers.
func (h Hash) Hex() string {
	var rev [32]byte
	for i := range h {
		rev[31-i] = h[i]
	}
	return hex.EncodeToString(rev[:])
}

// BigHex returns the hash as straight big-endian hex, the convention for
// ethash seal hashes, mix digests and boundaries.
func (h Hash) BigHex() string {
	return hex.EncodeToString(h[:])
}

// String implements fmt.Stringer using the display form.
func (h Hash) String() string {
	return h.Hex()
}

// HashFromHex parses a display-form (byte-reversed) hex hash.
func HashFromHex(s string) (Hash, error) {
	b, err := decodeHash32(s)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	for i := range b {
		h[31-i] = b[i]
	}
	return h, nil
}

// HashFromBigHex parses a straight big-endian hex hash.
func HashFromBigHex(s string) (Hash, error) {
	b, err := decodeHash32(s)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func decodeHash32(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("invalid hash length %d", len(b))
	}
	return b, nil
}
