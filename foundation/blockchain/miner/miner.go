// Package miner implements the proof-of-work mining loop: a single
// long-lived worker that snapshots the mempool and chain tip, searches for
// a nonce satisfying the fixed difficulty, and publishes solved blocks over
// a channel for a committer to insert and gossip (spec.md §4.5).
package miner

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/mempool"
	"github.com/coreledger/node/foundation/blockchain/merkle"
	"go.uber.org/zap"
)

// State is one of the miner's three control states (spec.md §4.5).
type State int

const (
	StatePaused State = iota
	StateRunning
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StateRunning:
		return "running"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

type signalKind int

const (
	signalStart signalKind = iota
	signalUpdate
	signalExit
)

type signal struct {
	kind   signalKind
	lambda time.Duration
}

// Miner is the single mining worker. Its control channel is buffered with
// capacity 8, not unbounded: Start and Exit block while it is full, and
// Update drops its signal instead. A closed control channel is treated as
// a fatal condition for the miner goroutine (spec.md §5 Cancellation &
// timeouts): Run simply returns, and the owning process is expected to
// treat that as fatal.
type Miner struct {
	chain *database.Chain
	pool  *mempool.Mempool
	log   *zap.SugaredLogger

	signals chan signal
	results chan database.Block

	mu     sync.RWMutex
	state  State
	lambda time.Duration
}

// New constructs a Miner over the shared chain and mempool.
func New(chain *database.Chain, pool *mempool.Mempool, log *zap.SugaredLogger) *Miner {
	return &Miner{
		chain:   chain,
		pool:    pool,
		log:     log,
		signals: make(chan signal, 8),
		results: make(chan database.Block, 8),
	}
}

// Results returns the channel of successfully mined blocks. The committer
// (see RunCommitter) is expected to be the sole consumer.
func (m *Miner) Results() <-chan database.Block {
	return m.results
}

// Start transitions the miner to Running(lambda). lambda is the inter-round
// throttle in microseconds; 0 means mine continuously with no pause.
func (m *Miner) Start(lambdaMicros uint64) {
	m.signals <- signal{kind: signalStart, lambda: time.Duration(lambdaMicros) * time.Microsecond}
}

// Update is a hint that the tip or mempool changed. This implementation
// re-snapshots both at the start of every round regardless, so Update is a
// no-op wakeup (spec.md §4.5: "implementations that re-snapshot every round
// may treat it as a no-op").
func (m *Miner) Update() {
	select {
	case m.signals <- signal{kind: signalUpdate}:
	default:
		// Non-blocking: a queued Update that never gets read changes nothing,
		// since every round re-snapshots anyway.
	}
}

// Exit transitions the miner to ShutDown. Run returns shortly after.
func (m *Miner) Exit() {
	m.signals <- signal{kind: signalExit}
}

// CurrentState reports the miner's control state and, if Running, its
// current lambda throttle.
func (m *Miner) CurrentState() (State, time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.lambda
}

// Run is the miner's single long-lived goroutine. It uses one selector —
// rather than a blocking-receive/try-receive pair — that waits for either
// the inter-round throttle or a control signal, per spec.md §9's
// control-flow simplification note. It returns when Exit is signalled, the
// signal channel is closed (a fatal condition), or ctx is cancelled.
func (m *Miner) Run(ctx context.Context) {
	defer close(m.results)

	state := StatePaused
	var lambda time.Duration

	for {
		switch state {
		case StateShutdown:
			return

		case StatePaused:
			select {
			case sig, ok := <-m.signals:
				if !ok {
					return
				}
				state, lambda = m.apply(sig, state, lambda)
			case <-ctx.Done():
				return
			}

		case StateRunning:
			select {
			case sig, ok := <-m.signals:
				if !ok {
					return
				}
				state, lambda = m.apply(sig, state, lambda)
				continue
			case <-ctx.Done():
				return
			default:
			}

			m.mineRound(ctx)

			if lambda <= 0 {
				continue
			}

			select {
			case <-time.After(lambda):
			case sig, ok := <-m.signals:
				if !ok {
					return
				}
				state, lambda = m.apply(sig, state, lambda)
			case <-ctx.Done():
				return
			}
		}
	}
}

func (m *Miner) apply(sig signal, state State, lambda time.Duration) (State, time.Duration) {
	switch sig.kind {
	case signalStart:
		state = StateRunning
		lambda = sig.lambda
	case signalUpdate:
		// No-op: every round re-snapshots the tip and mempool already.
	case signalExit:
		state = StateShutdown
	}

	m.mu.Lock()
	m.state = state
	m.lambda = lambda
	m.mu.Unlock()

	return state, lambda
}

// mineRound performs one mining round (spec.md §4.5): snapshot the mempool
// and tip, build a candidate header over a fixed-difficulty chain, and
// search random nonces until one satisfies the difficulty or ctx is
// cancelled. An empty mempool batch still produces a (empty) block —
// spec.md §9 Open Question 4, chosen to permit chain growth with no
// pending transactions.
func (m *Miner) mineRound(ctx context.Context) {
	batch := m.pool.Batch()

	tipHash := m.chain.Tip()
	tipBlock, ok := m.chain.Block(tipHash)
	if !ok {
		m.log.Errorw("miner: tip block missing from chain", "tip", tipHash.Hex())
		return
	}

	tree, err := merkle.NewTree(batch)
	if err != nil {
		m.log.Errorw("miner: build merkle tree", "error", err)
		return
	}

	header := database.Header{
		Parent:     tipHash,
		Difficulty: tipBlock.Header.Difficulty,
		Timestamp:  database.NowMillis(),
		MerkleRoot: tree.Root(),
	}
	content := database.Content{Data: batch}

	for attempts := 0; ; attempts++ {
		if ctx.Err() != nil {
			return
		}

		nonce, err := randomNonce()
		if err != nil {
			return
		}
		header.Nonce = nonce

		block := database.Block{Header: header, Content: content}
		if block.SatisfiesPoW() {
			m.log.Infow("miner: solved block", "hash", block.Hash().Hex(), "parent", tipHash.Hex(), "attempts", attempts+1, "txs", len(batch))

			// Remove the mined transactions immediately, before publishing,
			// so the very next round cannot re-include them (spec.md §5
			// ordering guarantee).
			m.pool.RemoveIncluded(batch)

			select {
			case m.results <- block:
			case <-ctx.Done():
			}
			return
		}
	}
}

// randomNonce draws a uniformly random uint32 for the header nonce search.
func randomNonce() (uint32, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(math.MaxUint32)+1))
	if err != nil {
		return 0, err
	}
	return uint32(n.Uint64()), nil
}
