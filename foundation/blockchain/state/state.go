// Package state is the node's orchestration layer: it wires together the
// blockchain, mempool, miner, network worker, transaction generator and
// peer directory into the single object the HTTP handlers call into. It
// owns no locks of its own — every state mutation stays inside the
// component that already guards it (spec.md §5) — and exists only to give
// handlers one narrow surface instead of five constructor-injected ones.
package state

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sort"
	"time"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/genesis"
	"github.com/coreledger/node/foundation/blockchain/generator"
	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/coreledger/node/foundation/blockchain/mempool"
	"github.com/coreledger/node/foundation/blockchain/miner"
	"github.com/coreledger/node/foundation/blockchain/network"
	"github.com/coreledger/node/foundation/blockchain/peer"
	"go.uber.org/zap"
)

// Config is every dependency required to construct a node's State.
type Config struct {
	Log        *zap.SugaredLogger
	Identity   genesis.Identity
	Client     network.Client
	MempoolCap int
}

// State is the node: the blockchain, mempool, peer directory, miner,
// network worker and transaction generator, plus the node's own signing
// identity. Handlers and cmd/node both hold a *State.
type State struct {
	log      *zap.SugaredLogger
	identity genesis.Identity

	Chain     *database.Chain
	Mempool   *mempool.Mempool
	Peers     *peer.Set
	Worker    *network.Worker
	Miner     *miner.Miner
	Generator *generator.Generator
	Events    *Events
}

// New constructs a node's State, seeded at the fixed genesis block, and
// wires the generator's recipient pool with the other genesis identities
// so a freshly started node has somewhere to send its demo traffic.
func New(cfg Config) (*State, error) {
	if cfg.MempoolCap <= 0 {
		cfg.MempoolCap = mempool.DefaultBatchSize * 4
	}

	chain, err := database.New(genesis.Block(), genesis.State())
	if err != nil {
		return nil, err
	}

	pool := mempool.New(cfg.MempoolCap)
	peers := peer.NewSet()
	worker := network.New(chain, pool, peers, cfg.Client, cfg.Log)
	m := miner.New(chain, pool, cfg.Log)
	gen := generator.New(cfg.Identity.PublicKey, cfg.Identity.PrivateKey, worker, cfg.Log)

	for i := 0; i < len(genesis.Seeds); i++ {
		other, err := genesis.SelectIdentity(i)
		if err != nil {
			return nil, err
		}
		if other.Address != cfg.Identity.Address {
			gen.AddRecipient(other.Address)
		}
	}

	return &State{
		log:       cfg.Log,
		identity:  cfg.Identity,
		Chain:     chain,
		Mempool:   pool,
		Peers:     peers,
		Worker:    worker,
		Miner:     m,
		Generator: gen,
		Events:    newEvents(),
	}, nil
}

// Run starts the miner, its committer, the transaction generator and the
// tip-change event hub as long-lived goroutines bound to ctx, mirroring the
// teacher's convention of a single Run entry point owning every background
// worker.
func (s *State) Run(ctx context.Context) {
	go s.Miner.Run(ctx)
	go miner.RunCommitter(ctx, s.Miner.Results(), s.Worker, s.log)
	go s.Generator.Run(ctx)
	go s.Events.run(ctx, s.Chain.Tip, time.Second)
}

// Identity returns the node's own signing identity.
func (s *State) Identity() genesis.Identity {
	return s.identity
}

// PublicKey returns the node's signing public key, for handlers that build
// requests on the node's own behalf.
func (s *State) PublicKey() ed25519.PublicKey {
	return s.identity.PublicKey
}

// LongestChain returns every block hash on the current longest chain,
// genesis first (spec.md §6 `/blockchain/longest-chain`).
func (s *State) LongestChain() []hash.H256 {
	return s.Chain.AllBlocksInLongestChain()
}

// LongestChainTransactions returns, for each block on the longest chain,
// the hex hashes of its transactions in block order (spec.md §6
// `/blockchain/longest-chain-tx`).
func (s *State) LongestChainTransactions() [][]hash.H256 {
	blocks := s.LongestChain()
	out := make([][]hash.H256, len(blocks))
	for i, h := range blocks {
		b, ok := s.Chain.Block(h)
		if !ok {
			continue
		}
		txs := make([]hash.H256, len(b.Content.Data))
		for j, tx := range b.Content.Data {
			txs[j] = tx.Hash()
		}
		out[i] = txs
	}
	return out
}

// StateAt returns every account in the state as of block h, formatted as
// "(hex_addr, nonce, balance)" strings sorted by address, for spec.md §6
// `/blockchain/state`.
func (s *State) StateAt(h hash.H256) ([]string, bool) {
	st, ok := s.Chain.StateAt(h)
	if !ok {
		return nil, false
	}

	entries := make([]string, 0, len(st))
	for addr, acct := range st {
		entries = append(entries, fmt.Sprintf("(%s, %d, %d)", addr.String(), acct.Nonce, acct.Balance))
	}
	sort.Strings(entries)
	return entries, true
}

// BlockAtHeight returns the hash of the longest chain's block at height,
// used to resolve spec.md §6's `block=<u32>` height query against the
// canonical chain rather than an arbitrary known block.
func (s *State) BlockAtHeight(height uint64) (hash.H256, bool) {
	chain := s.LongestChain()
	if height >= uint64(len(chain)) {
		return hash.Zero, false
	}
	return chain[height], true
}
