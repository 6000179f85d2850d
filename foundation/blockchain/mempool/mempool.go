// Package mempool holds unconfirmed, signed transactions awaiting
// inclusion in a block (spec.md §4.4).
package mempool

import (
	"sync"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/hash"
)

// DefaultBatchSize is the default cap on how many transactions Batch
// returns to the miner in one round.
const DefaultBatchSize = 100

// Mempool is a deduplicated set of signed transactions, keyed by hash. It
// does not re-verify account state on insert: stateful validation happens
// where the caller already holds consistent locks — the network worker's
// tx-ingestion pipeline and the transaction generator (spec.md §4.4, §9
// Open Question 2). Mempool is the second and last of the node's two state
// mutexes (spec.md §5); it is never held at the same time as the
// blockchain's.
type Mempool struct {
	mu      sync.RWMutex
	txs     map[hash.H256]database.SignedTransaction
	order   []hash.H256 // insertion order, for stable batch selection
	maxSize int
}

// New constructs an empty mempool. maxSize <= 0 uses DefaultBatchSize.
func New(maxSize int) *Mempool {
	if maxSize <= 0 {
		maxSize = DefaultBatchSize
	}
	return &Mempool{
		txs:     make(map[hash.H256]database.SignedTransaction),
		maxSize: maxSize,
	}
}

// Insert stores tx if its hash is not already present, returning true if it
// was newly added and false if it was a duplicate (spec.md §7 Duplicate:
// silent drop).
func (m *Mempool) Insert(tx database.SignedTransaction) bool {
	h := tx.Hash()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.txs[h]; ok {
		return false
	}

	m.txs[h] = tx
	m.order = append(m.order, h)
	return true
}

// Contains reports whether h is currently in the mempool.
func (m *Mempool) Contains(h hash.H256) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txs[h]
	return ok
}

// Get returns the transaction for h, if present.
func (m *Mempool) Get(h hash.H256) (database.SignedTransaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[h]
	return tx, ok
}

// Batch returns up to the configured maximum number of pending
// transactions, in insertion order. The miner tolerates any order
// (spec.md §4.4).
func (m *Mempool) Batch() []database.SignedTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.order)
	if n > m.maxSize {
		n = m.maxSize
	}

	batch := make([]database.SignedTransaction, 0, n)
	for _, h := range m.order[:n] {
		if tx, ok := m.txs[h]; ok {
			batch = append(batch, tx)
		}
	}
	return batch
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}

// All returns every pending transaction, in insertion order.
func (m *Mempool) All() []database.SignedTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.SignedTransaction, 0, len(m.order))
	for _, h := range m.order {
		if tx, ok := m.txs[h]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// RemoveIncluded deletes each of txs' hashes from the mempool. Called after
// a block carrying them is accepted onto the chain (spec.md §4.4,
// invariant: a block's transactions must be removed from the mempool
// before its inventory is broadcast — see foundation/blockchain/network).
func (m *Mempool) RemoveIncluded(txs []database.SignedTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range txs {
		h := tx.Hash()
		if _, ok := m.txs[h]; ok {
			delete(m.txs, h)
			m.removeFromOrder(h)
		}
	}
}

// removeFromOrder deletes h from the order slice. Callers must hold mu.
func (m *Mempool) removeFromOrder(h hash.H256) {
	for i, v := range m.order {
		if v == h {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// Revalidate drops every pending transaction that would not apply cleanly,
// in order, against state, keeping only those that do. This is the
// cooperative full-chain eviction pass spec.md §4.4 permits "at well-defined
// points" — callers should invoke it only right after a new tip is adopted,
// to avoid thrashing.
func (m *Mempool) Revalidate(state database.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := state
	var kept []hash.H256
	keptTxs := make(map[hash.H256]database.SignedTransaction)

	for _, h := range m.order {
		tx, ok := m.txs[h]
		if !ok {
			continue
		}
		next, err := database.ApplyTx(current, tx)
		if err != nil {
			continue
		}
		current = next
		kept = append(kept, h)
		keptTxs[h] = tx
	}

	m.order = kept
	m.txs = keptTxs
}
