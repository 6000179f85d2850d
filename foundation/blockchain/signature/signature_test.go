package signature_test

import (
	"encoding/json"
	"testing"

	"github.com/coreledger/node/foundation/blockchain/signature"
	"github.com/stretchr/testify/require"
)

func seed(b byte) []byte {
	s := make([]byte, 32)
	for i := range s {
		s[i] = b
	}
	return s
}

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := signature.GenerateKey(seed(7))
	require.NoError(t, err)

	msg := []byte("transfer 100 to bob")
	sig := signature.Sign(priv, msg)

	require.True(t, signature.Verify(pub, msg, sig))
	require.False(t, signature.Verify(pub, []byte("transfer 200 to bob"), sig))
}

func TestFromPublicKeyDeterministic(t *testing.T) {
	pub, _, err := signature.GenerateKey(seed(1))
	require.NoError(t, err)

	a := signature.FromPublicKey(pub)
	b := signature.FromPublicKey(pub)
	require.Equal(t, a, b)
	require.Equal(t, signature.AddressSize, len(a))
}

func TestGenerateKeyDeterministicFromSeed(t *testing.T) {
	pub1, _, err := signature.GenerateKey(seed(3))
	require.NoError(t, err)
	pub2, _, err := signature.GenerateKey(seed(3))
	require.NoError(t, err)

	require.Equal(t, pub1, pub2)
}

func TestGenerateKeyBadSeedLength(t *testing.T) {
	_, _, err := signature.GenerateKey([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestAddressHexRoundTrip(t *testing.T) {
	pub, _, err := signature.GenerateKey(seed(9))
	require.NoError(t, err)
	addr := signature.FromPublicKey(pub)

	back, err := signature.AddressFromHex(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, back)
}

func TestAddressJSONRoundTrip(t *testing.T) {
	pub, _, err := signature.GenerateKey(seed(2))
	require.NoError(t, err)
	addr := signature.FromPublicKey(pub)

	b, err := json.Marshal(addr)
	require.NoError(t, err)

	var back signature.Address
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, addr, back)
}

func TestAddressAsMapKeyMarshalsText(t *testing.T) {
	pub, _, err := signature.GenerateKey(seed(4))
	require.NoError(t, err)
	addr := signature.FromPublicKey(pub)

	m := map[signature.Address]int{addr: 1}
	b, err := json.Marshal(m)
	require.NoError(t, err)

	var back map[signature.Address]int
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, 1, back[addr])
}

func TestPublicKeyFromBytesRejectsWrongLength(t *testing.T) {
	_, err := signature.PublicKeyFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}
