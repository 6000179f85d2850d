// Package hash provides the 32-byte digest type used throughout the
// blockchain as block hashes, transaction hashes and Merkle nodes.
package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Size is the length in bytes of an H256 digest.
const Size = 32

// Zero is the canonical all-zero digest. It is used as the genesis block's
// parent hash and as the Merkle root of an empty set of leaves.
var Zero = H256{}

// H256 is a SHA-256 digest. The zero value is the all-zero hash.
type H256 [Size]byte

// FromBytes hashes data with SHA-256 and returns the resulting digest.
func FromBytes(data []byte) H256 {
	return H256(sha256.Sum256(data))
}

// FromSlice copies up to Size bytes of b into an H256. It does not hash b;
// use FromBytes for that. Useful when b is already a digest (e.g. decoded
// off the wire).
func FromSlice(b []byte) H256 {
	var h H256
	copy(h[:], b)
	return h
}

// Bytes returns the digest as a byte slice.
func (h H256) Bytes() []byte {
	return h[:]
}

// IsZero reports whether h is the all-zero digest.
func (h H256) IsZero() bool {
	return h == Zero
}

// Cmp performs a big-endian, byte-lexicographic comparison of two digests,
// returning -1, 0 or 1. This is the ordering used to compare a block hash
// against a difficulty target.
func (h H256) Cmp(other H256) int {
	return bytes.Compare(h[:], other[:])
}

// LessOrEqual reports whether h, interpreted as a big-endian integer, is
// less than or equal to target. This is the proof-of-work acceptance test.
func (h H256) LessOrEqual(target H256) bool {
	return h.Cmp(target) <= 0
}

// String renders the digest as a 0x-prefixed hex string.
func (h H256) String() string {
	return hexutil.Encode(h[:])
}

// Hex is an alias for String, matching the naming used by the HTTP control
// API for hash fields.
func (h H256) Hex() string {
	return h.String()
}

// FromHex parses a 0x-prefixed hex string into an H256.
func FromHex(s string) (H256, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return H256{}, fmt.Errorf("decode hash: %w", err)
	}
	if len(b) != Size {
		return H256{}, fmt.Errorf("decode hash: want %d bytes, got %d", Size, len(b))
	}
	return FromSlice(b), nil
}

// MarshalJSON renders the digest as a hex string for API responses.
func (h H256) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON parses a hex string into the digest.
func (h *H256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := FromHex(s)
	if err != nil {
		return err
	}
	*h = v
	return nil
}
