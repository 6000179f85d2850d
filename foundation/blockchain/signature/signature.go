// Package signature wraps the Ed25519 keypair/sign/verify primitives and
// the canonical address derivation. spec.md marks these cryptographic
// primitives as external, replaceable collaborators; this package is the
// one fixed implementation the rest of the node depends on.
package signature

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressSize is the length in bytes of an account Address.
const AddressSize = 20

// Address is a 20-byte account identifier.
type Address [AddressSize]byte

// ZeroAddress is the all-zero address, used as a sentinel.
var ZeroAddress = Address{}

// String renders the address as a 0x-prefixed hex string.
func (a Address) String() string {
	return hexutil.Encode(a[:])
}

// AddressFromHex parses a 0x-prefixed hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}
	if len(b) != AddressSize {
		return Address{}, fmt.Errorf("decode address: want %d bytes, got %d", AddressSize, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// MarshalJSON renders the address as a hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses a hex string into the address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := AddressFromHex(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalText implements encoding.TextMarshaler so an Address can be used
// as a JSON object key (e.g. map[Address]AccountState), not just a value.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, the map-key
// counterpart to MarshalText.
func (a *Address) UnmarshalText(text []byte) error {
	v, err := AddressFromHex(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// FromPublicKey derives the canonical Address for an Ed25519 public key:
// the last 20 bytes of SHA-256(pubkey). This fixes spec.md §9's Open
// Question 3 to a single documented convention.
func FromPublicKey(pub ed25519.PublicKey) Address {
	digest := sha256.Sum256(pub)
	var addr Address
	copy(addr[:], digest[len(digest)-AddressSize:])
	return addr
}

// GenerateKey deterministically derives an Ed25519 keypair from 32 bytes of
// seed material (used for the fixed ICO identities; see foundation/blockchain/genesis).
func GenerateKey(seed []byte) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, nil, fmt.Errorf("signature: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), priv, nil
}

// Sign signs the already-canonicalized message bytes (the caller is
// responsible for producing a deterministic encoding, e.g. via RLP).
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify reports whether sig is a valid Ed25519 signature by pub over msg.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// PublicKeyFromBytes validates and wraps raw public key bytes carried on the
// wire or in a SignedTransaction.
func PublicKeyFromBytes(b []byte) (ed25519.PublicKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signature: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}
