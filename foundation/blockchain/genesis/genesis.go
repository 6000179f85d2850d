// Package genesis builds the fixed genesis block and the initial coin
// offering (ICO) account allocation every node boots with, byte-identical
// across the network (spec.md §6 Genesis constants).
package genesis

import (
	"crypto/ed25519"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/coreledger/node/foundation/blockchain/merkle"
	"github.com/coreledger/node/foundation/blockchain/signature"
)

// Difficulty is the fixed proof-of-work target every block in the chain
// must meet. This chain never retargets (spec.md Non-goals).
var Difficulty = mustHash("0x00007fff" + repeatFF(28))

func repeatFF(n int) string {
	b := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		b[2*i], b[2*i+1] = 'f', 'f'
	}
	return string(b)
}

// ICOBalance is the balance credited to each of the three fixed ICO seed
// accounts.
const ICOBalance = 10_000_000

// Seeds are the three fixed 32-byte Ed25519 seeds used to derive the ICO
// accounts. A node selects its own operating identity as
// Seeds[p2pPort%len(Seeds)] (spec.md §6).
var Seeds = [3][ed25519.SeedSize]byte{
	fill(1),
	fill(2),
	fill(3),
}

func fill(b byte) [ed25519.SeedSize]byte {
	var s [ed25519.SeedSize]byte
	for i := range s {
		s[i] = b
	}
	return s
}

func mustHash(hexStr string) hash.H256 {
	h, err := hash.FromHex(hexStr)
	if err != nil {
		panic("genesis: bad difficulty constant: " + err.Error())
	}
	return h
}

// Identity is the keypair and address a node mines and signs under, along
// with the index into Seeds it was derived from.
type Identity struct {
	Index      int
	Address    signature.Address
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// SelectIdentity derives the node's own ICO identity from its P2P port, per
// spec.md §6: seeds[p2p_port mod 3].
func SelectIdentity(p2pPort int) (Identity, error) {
	idx := p2pPort % len(Seeds)
	seed := Seeds[idx]
	pub, priv, err := signature.GenerateKey(seed[:])
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		Index:      idx,
		Address:    signature.FromPublicKey(pub),
		PublicKey:  pub,
		PrivateKey: priv,
	}, nil
}

// Block constructs the fixed genesis block: zero parent, nonce 0, timestamp
// 0, the fixed Difficulty, and the Merkle root of empty content.
func Block() database.Block {
	tree, _ := merkle.NewTree[database.SignedTransaction](nil)

	return database.Block{
		Header: database.Header{
			Parent:     hash.Zero,
			Nonce:      0,
			Difficulty: Difficulty,
			Timestamp:  0,
			MerkleRoot: tree.Root(),
		},
		Content: database.Content{},
	}
}

// State constructs the initial account state: the three ICO seed accounts,
// each credited ICOBalance, at nonce 0.
func State() database.State {
	state := make(database.State, len(Seeds))
	for _, seed := range Seeds {
		pub, _, err := signature.GenerateKey(seed[:])
		if err != nil {
			panic("genesis: bad seed: " + err.Error())
		}
		addr := signature.FromPublicKey(pub)
		state[addr] = database.AccountState{Nonce: 0, Balance: ICOBalance}
	}
	return state
}
