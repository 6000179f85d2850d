// Package network implements the gossip protocol: message framing, the
// block/transaction ingestion pipeline, orphan-chain reconciliation and
// peer fan-out (spec.md §4.6, §6).
package network

import (
	"fmt"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/ethereum/go-ethereum/rlp"
)

// Kind tags a Message's payload, the wire message taxonomy of spec.md §4.6.
type Kind byte

const (
	KindPing Kind = iota + 1
	KindPong
	KindNewBlockHashes
	KindGetBlocks
	KindBlocks
	KindNewTransactionHashes
	KindGetTransactions
	KindTransactions
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	case KindNewBlockHashes:
		return "NewBlockHashes"
	case KindGetBlocks:
		return "GetBlocks"
	case KindBlocks:
		return "Blocks"
	case KindNewTransactionHashes:
		return "NewTransactionHashes"
	case KindGetTransactions:
		return "GetTransactions"
	case KindTransactions:
		return "Transactions"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Message is the tagged union every peer message is framed as: a one-byte
// kind tag followed by the RLP-encoded concrete payload. RLP already gives
// us the length-prefixed, deterministic, little-endian-free canonical
// encoding spec.md §6 calls for; Message fixes Kind as the discriminant
// both ends agree on.
type Message struct {
	Kind    Kind
	Payload []byte
}

// rlpMessage mirrors Message for encoding; Kind is carried as a plain byte
// since RLP has no notion of a named byte type.
type rlpMessage struct {
	Kind    byte
	Payload []byte
}

// Encode returns the deterministic RLP encoding of the message envelope.
func (m Message) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(rlpMessage{Kind: byte(m.Kind), Payload: m.Payload})
}

// DecodeMessage parses a Message envelope from the wire.
func DecodeMessage(b []byte) (Message, error) {
	var raw rlpMessage
	if err := rlp.DecodeBytes(b, &raw); err != nil {
		return Message{}, fmt.Errorf("network: decode message: %w", err)
	}
	return Message{Kind: Kind(raw.Kind), Payload: raw.Payload}, nil
}

// --- payload helpers -------------------------------------------------------

type pingPayload struct{ Nonce string }

// NewPing builds a Ping(nonce) message.
func NewPing(nonce string) Message { return encodePayload(KindPing, pingPayload{nonce}) }

// NewPong builds a Pong(nonce) message.
func NewPong(nonce string) Message { return encodePayload(KindPong, pingPayload{nonce}) }

// AsPingNonce decodes a Ping or Pong payload's nonce string.
func (m Message) AsPingNonce() (string, error) {
	var p pingPayload
	if err := decodePayload(m.Payload, &p); err != nil {
		return "", err
	}
	return p.Nonce, nil
}

type hashListPayload struct{ Hashes [][]byte }

func hashesToPayload(hashes []hash.H256) hashListPayload {
	p := hashListPayload{Hashes: make([][]byte, len(hashes))}
	for i, h := range hashes {
		p.Hashes[i] = h[:]
	}
	return p
}

func (p hashListPayload) toHashes() []hash.H256 {
	out := make([]hash.H256, len(p.Hashes))
	for i, b := range p.Hashes {
		out[i] = hash.FromSlice(b)
	}
	return out
}

// NewBlockHashesMsg builds a NewBlockHashes(hashes) inventory message.
func NewBlockHashesMsg(hashes []hash.H256) Message {
	return encodePayload(KindNewBlockHashes, hashesToPayload(hashes))
}

// NewGetBlocksMsg builds a GetBlocks(hashes) request message.
func NewGetBlocksMsg(hashes []hash.H256) Message {
	return encodePayload(KindGetBlocks, hashesToPayload(hashes))
}

// NewTransactionHashesMsg builds a NewTransactionHashes(hashes) inventory message.
func NewTransactionHashesMsg(hashes []hash.H256) Message {
	return encodePayload(KindNewTransactionHashes, hashesToPayload(hashes))
}

// NewGetTransactionsMsg builds a GetTransactions(hashes) request message.
func NewGetTransactionsMsg(hashes []hash.H256) Message {
	return encodePayload(KindGetTransactions, hashesToPayload(hashes))
}

// AsHashes decodes an inventory/request payload's hash list.
func (m Message) AsHashes() ([]hash.H256, error) {
	var p hashListPayload
	if err := decodePayload(m.Payload, &p); err != nil {
		return nil, err
	}
	return p.toHashes(), nil
}

type blocksPayload struct{ Blocks []database.Block }

// NewBlocksMsg builds a Blocks(blocks) response/push message.
func NewBlocksMsg(blocks []database.Block) Message {
	return encodePayload(KindBlocks, blocksPayload{blocks})
}

// AsBlocks decodes a Blocks payload.
func (m Message) AsBlocks() ([]database.Block, error) {
	var p blocksPayload
	if err := decodePayload(m.Payload, &p); err != nil {
		return nil, err
	}
	return p.Blocks, nil
}

type transactionsPayload struct{ Transactions []database.SignedTransaction }

// NewTransactionsMsg builds a Transactions(txs) response/push message.
func NewTransactionsMsg(txs []database.SignedTransaction) Message {
	return encodePayload(KindTransactions, transactionsPayload{txs})
}

// AsTransactions decodes a Transactions payload.
func (m Message) AsTransactions() ([]database.SignedTransaction, error) {
	var p transactionsPayload
	if err := decodePayload(m.Payload, &p); err != nil {
		return nil, err
	}
	return p.Transactions, nil
}

func encodePayload(kind Kind, v any) Message {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		panic("network: encode payload: " + err.Error())
	}
	return Message{Kind: kind, Payload: b}
}

func decodePayload(b []byte, v any) error {
	if err := rlp.DecodeBytes(b, v); err != nil {
		return fmt.Errorf("network: decode payload: %w", err)
	}
	return nil
}
