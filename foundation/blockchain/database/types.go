// Package database holds the blockchain's core data model: accounts,
// transactions, blocks and the derived per-block state, along with the pure
// state-transition function and the block tree that applies it. It plays
// the role the teacher's foundation/blockchain/database package played for
// account bookkeeping, generalized to a tree of candidate blocks instead of
// a single linear chain.
package database

import (
	"time"

	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/coreledger/node/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/rlp"
)

// =============================================================================
// Accounts

// AccountState is the derived, per-block balance and nonce for one address.
// The zero value represents an account nobody has transacted with yet: zero
// balance, next expected transaction nonce 1 (spec.md §3 State).
type AccountState struct {
	Nonce   uint32 `json:"nonce"`
	Balance uint64 `json:"balance"`
}

// NextNonce returns the nonce a transaction from this account must carry to
// be accepted.
func (a AccountState) NextNonce() uint32 {
	return a.Nonce + 1
}

// =============================================================================
// Transactions

// Transaction is the unsigned instruction to move value between accounts.
// There is no explicit sender field: the sender is whoever signs it.
type Transaction struct {
	Receiver signature.Address `json:"receiver"`
	Value    uint64            `json:"value"`
	Nonce    uint32            `json:"nonce"`
}

// rlpTransaction mirrors Transaction for canonical encoding. RLP cannot
// encode fixed-size byte arrays directly inside a struct without a named
// conversion, so request this in terms of its byte slice.
type rlpTransaction struct {
	Receiver []byte
	Value    uint64
	Nonce    uint32
}

// Encode returns the deterministic RLP encoding of the transaction, the
// bytes that get signed and hashed.
func (t Transaction) Encode() []byte {
	b, err := rlp.EncodeToBytes(rlpTransaction{
		Receiver: t.Receiver[:],
		Value:    t.Value,
		Nonce:    t.Nonce,
	})
	if err != nil {
		// Transaction's fields are all fixed-size and RLP-safe; encoding
		// cannot fail for a well-formed value.
		panic("database: transaction encode: " + err.Error())
	}
	return b
}

// SignedTransaction pairs a Transaction with its Ed25519 signature and the
// signer's public key.
type SignedTransaction struct {
	Transaction Transaction `json:"transaction"`
	Signature   []byte      `json:"signature"`
	PublicKey   []byte      `json:"public_key"`
}

type rlpSignedTransaction struct {
	Transaction rlpTransaction
	Signature   []byte
	PublicKey   []byte
}

// Encode returns the deterministic RLP encoding of the signed transaction
// triple. Its hash is this encoding's SHA-256 digest (spec.md §3).
func (s SignedTransaction) Encode() []byte {
	b, err := rlp.EncodeToBytes(rlpSignedTransaction{
		Transaction: rlpTransaction{
			Receiver: s.Transaction.Receiver[:],
			Value:    s.Transaction.Value,
			Nonce:    s.Transaction.Nonce,
		},
		Signature: s.Signature,
		PublicKey: s.PublicKey,
	})
	if err != nil {
		panic("database: signed transaction encode: " + err.Error())
	}
	return b
}

// Hash returns the SignedTransaction's identity, used as its mempool and
// block-content uniqueness key.
func (s SignedTransaction) Hash() hash.H256 {
	return hash.FromBytes(s.Encode())
}

// Sender derives the account that signed this transaction, from its public
// key bytes. It does not verify the signature; callers must call
// VerifySignature first if that matters.
func (s SignedTransaction) Sender() (signature.Address, error) {
	pub, err := signature.PublicKeyFromBytes(s.PublicKey)
	if err != nil {
		return signature.Address{}, err
	}
	return signature.FromPublicKey(pub), nil
}

// VerifySignature reports whether Signature is a valid Ed25519 signature by
// PublicKey over the encoded inner Transaction.
func (s SignedTransaction) VerifySignature() bool {
	pub, err := signature.PublicKeyFromBytes(s.PublicKey)
	if err != nil {
		return false
	}
	return signature.Verify(pub, s.Transaction.Encode(), s.Signature)
}

// =============================================================================
// Blocks

// Header carries everything needed to compute a block's proof-of-work hash.
// The block body (Content) deliberately does not enter this hash, so a
// block's identity is fixed the moment its header is solved.
type Header struct {
	Parent     hash.H256 `json:"parent"`
	Nonce      uint32    `json:"nonce"`
	Difficulty hash.H256 `json:"difficulty"`
	Timestamp  uint64    `json:"timestamp"` // Unix milliseconds.
	MerkleRoot hash.H256 `json:"merkle_root"`
}

type rlpHeader struct {
	Parent     []byte
	Nonce      uint32
	Difficulty []byte
	Timestamp  uint64
	MerkleRoot []byte
}

// Encode returns the deterministic RLP encoding of the header — the bytes
// hashed for proof-of-work and for chain-of-custody identity.
func (h Header) Encode() []byte {
	b, err := rlp.EncodeToBytes(rlpHeader{
		Parent:     h.Parent[:],
		Nonce:      h.Nonce,
		Difficulty: h.Difficulty[:],
		Timestamp:  h.Timestamp,
		MerkleRoot: h.MerkleRoot[:],
	})
	if err != nil {
		panic("database: header encode: " + err.Error())
	}
	return b
}

// Hash returns the block's identity: SHA-256 of the encoded header.
func (h Header) Hash() hash.H256 {
	return hash.FromBytes(h.Encode())
}

// Content is the ordered set of signed transactions carried by a block.
type Content struct {
	Data []SignedTransaction `json:"data"`
}

// Block is a solved header paired with its content.
type Block struct {
	Header  Header  `json:"header"`
	Content Content `json:"content"`
}

// Hash returns the block's identity (its header's hash; the body is never
// hashed for proof-of-work).
func (b Block) Hash() hash.H256 {
	return b.Header.Hash()
}

// SatisfiesPoW reports whether the block's hash meets its own declared
// difficulty target.
func (b Block) SatisfiesPoW() bool {
	return b.Hash().LessOrEqual(b.Header.Difficulty)
}

// NowMillis returns the current wall-clock time in Unix milliseconds, the
// unit Header.Timestamp is carried in.
func NowMillis() uint64 {
	return uint64(time.Now().UTC().UnixMilli())
}
