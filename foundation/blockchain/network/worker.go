package network

import (
	"context"
	"sync"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/coreledger/node/foundation/blockchain/mempool"
	"github.com/coreledger/node/foundation/blockchain/peer"
	"github.com/coreledger/node/foundation/blockchain/signature"
	"go.uber.org/zap"
)

// maxOrphans bounds the orphan buffer so an attacker (or a node that's
// simply far behind) cannot grow it without limit (spec.md §9).
const maxOrphans = 256

// Client is everything the network Worker needs from the wire transport:
// fetching blocks from a specific peer (used to resolve an orphan's missing
// antecedent) and fanning a message out to a peer set. Its implementation
// is an external collaborator per spec.md §1; app/services/node binds one
// over HTTP.
type Client interface {
	GetBlocks(ctx context.Context, peerHost string, hashes []hash.H256) ([]database.Block, error)
	Broadcast(ctx context.Context, peers []peer.Peer, msg Message)
}

type orphanKey struct {
	parent hash.H256
	child  hash.H256
}

// Worker is the network dispatcher: it owns the block/transaction
// ingestion pipelines, orphan-chain reconciliation and peer gossip
// (spec.md §4.6). It holds no lock of its own over the chain or mempool —
// those stay inside database.Chain and mempool.Mempool respectively — and
// never holds its orphan-buffer lock while calling into either (spec.md §5).
type Worker struct {
	chain  *database.Chain
	pool   *mempool.Mempool
	peers  *peer.Set
	client Client
	log    *zap.SugaredLogger

	orphanMu   sync.Mutex
	orphans    map[hash.H256][]database.Block
	orphanFIFO []orphanKey
}

// New constructs a network Worker over the given shared chain and mempool.
func New(chain *database.Chain, pool *mempool.Mempool, peers *peer.Set, client Client, log *zap.SugaredLogger) *Worker {
	return &Worker{
		chain:   chain,
		pool:    pool,
		peers:   peers,
		client:  client,
		log:     log,
		orphans: make(map[hash.H256][]database.Block),
	}
}

// HandleBlock runs the block ingestion pipeline of spec.md §4.6 for a
// single inbound block b received from peer from (the zero Peer if the
// block originated from orphan reconciliation or the local miner):
//
//  1. drop if already known,
//  2. buffer as an orphan and request its parent if the parent is unknown,
//  3. otherwise insert — which performs the PoW check, the
//     fixed-difficulty continuity check and the stateful state-transition
//     validation atomically under the chain's lock,
//  4. remove the block's transactions from the mempool and revalidate every
//     remaining pooled transaction against the new tip state, dropping any
//     that no longer apply (a tip change from a reorg can invalidate a
//     pooled transaction's nonce or balance even though its hash wasn't
//     included in this block),
//  5. broadcast NewBlockHashes,
//  6. reconcile any orphans that were waiting on this block.
func (w *Worker) HandleBlock(ctx context.Context, b database.Block, from peer.Peer) error {
	h := b.Hash()

	if w.chain.Has(h) {
		return ErrDuplicate
	}

	if !w.chain.Has(b.Header.Parent) {
		w.bufferOrphan(b)
		w.log.Infow("network: block orphaned", "hash", h.Hex(), "parent", b.Header.Parent.Hex())

		if from.Host != "" && w.client != nil {
			fetched, err := w.client.GetBlocks(ctx, from.Host, []hash.H256{b.Header.Parent})
			if err == nil {
				for _, ancestor := range fetched {
					_ = w.HandleBlock(ctx, ancestor, peer.Peer{})
				}
			}
		}

		return ErrOrphaned
	}

	if err := w.chain.Insert(b); err != nil {
		w.log.Warnw("network: block rejected", "hash", h.Hex(), "error", err)
		return err
	}

	w.pool.RemoveIncluded(b.Content.Data)
	w.pool.Revalidate(w.chain.TipState())

	w.broadcastNewBlockHashes(ctx, []hash.H256{h})

	w.reconcileOrphans(ctx, h)

	return nil
}

// reconcileOrphans pops every block that was waiting on parent and feeds it
// back through HandleBlock. Because HandleBlock itself calls
// reconcileOrphans on success, a whole buffered chain unwinds recursively
// (spec.md §4.6 step 9, E4).
func (w *Worker) reconcileOrphans(ctx context.Context, parent hash.H256) {
	for _, b := range w.popOrphans(parent) {
		_ = w.HandleBlock(ctx, b, peer.Peer{})
	}
}

func (w *Worker) bufferOrphan(b database.Block) {
	w.orphanMu.Lock()
	defer w.orphanMu.Unlock()

	parent := b.Header.Parent
	w.orphans[parent] = append(w.orphans[parent], b)
	w.orphanFIFO = append(w.orphanFIFO, orphanKey{parent: parent, child: b.Hash()})

	for len(w.orphanFIFO) > maxOrphans {
		oldest := w.orphanFIFO[0]
		w.orphanFIFO = w.orphanFIFO[1:]
		w.evictLocked(oldest)
	}
}

func (w *Worker) evictLocked(k orphanKey) {
	list := w.orphans[k.parent]
	for i, blk := range list {
		if blk.Hash() == k.child {
			w.orphans[k.parent] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(w.orphans[k.parent]) == 0 {
		delete(w.orphans, k.parent)
	}
}

func (w *Worker) popOrphans(parent hash.H256) []database.Block {
	w.orphanMu.Lock()
	defer w.orphanMu.Unlock()

	list := w.orphans[parent]
	delete(w.orphans, parent)

	if len(list) > 0 && len(w.orphanFIFO) > 0 {
		kept := w.orphanFIFO[:0:0]
		for _, k := range w.orphanFIFO {
			if k.parent != parent {
				kept = append(kept, k)
			}
		}
		w.orphanFIFO = kept
	}

	return list
}

// HandleTransaction runs the transaction ingestion pipeline of spec.md
// §4.6: signature and stateful validation against the tip's state, then a
// deduplicating mempool insert, then a NewTransactionHashes broadcast.
func (w *Worker) HandleTransaction(ctx context.Context, tx database.SignedTransaction) error {
	tipState := w.chain.TipState()

	if _, err := database.ApplyTx(tipState, tx); err != nil {
		return err
	}

	if !w.pool.Insert(tx) {
		return ErrDuplicate
	}

	w.broadcastNewTransactionHashes(ctx, []hash.H256{tx.Hash()})

	return nil
}

// TipStateAccount returns the AccountState for addr as of the current tip,
// for callers (e.g. the transaction generator) that need to compute a
// transaction's next nonce without reaching into the chain directly.
func (w *Worker) TipStateAccount(addr signature.Address) database.AccountState {
	return w.chain.TipState().Account(addr)
}

// HandleNewBlockHashes answers a NewBlockHashes inventory announcement with
// the subset of hashes not already known locally — the caller requests
// those via GetBlocks (spec.md §4.6 Inventory handling).
func (w *Worker) HandleNewBlockHashes(hashes []hash.H256) []hash.H256 {
	var unknown []hash.H256
	for _, h := range hashes {
		if !w.chain.Has(h) {
			unknown = append(unknown, h)
		}
	}
	return unknown
}

// HandleGetBlocks answers a GetBlocks request with every requested block
// that is known locally; unknown hashes are silently omitted.
func (w *Worker) HandleGetBlocks(hashes []hash.H256) []database.Block {
	var out []database.Block
	for _, h := range hashes {
		if b, ok := w.chain.Block(h); ok {
			out = append(out, b)
		}
	}
	return out
}

// HandleNewTransactionHashes answers a NewTransactionHashes inventory
// announcement with the subset not already known.
func (w *Worker) HandleNewTransactionHashes(hashes []hash.H256) []hash.H256 {
	var unknown []hash.H256
	for _, h := range hashes {
		if !w.pool.Contains(h) {
			unknown = append(unknown, h)
		}
	}
	return unknown
}

// HandleGetTransactions answers a GetTransactions request with every
// requested transaction known locally.
func (w *Worker) HandleGetTransactions(hashes []hash.H256) []database.SignedTransaction {
	var out []database.SignedTransaction
	for _, h := range hashes {
		if tx, ok := w.pool.Get(h); ok {
			out = append(out, tx)
		}
	}
	return out
}

// Peers returns the worker's known-peer directory.
func (w *Worker) Peers() *peer.Set {
	return w.peers
}

func (w *Worker) broadcastNewBlockHashes(ctx context.Context, hashes []hash.H256) {
	if w.client == nil {
		return
	}
	msg := NewBlockHashesMsg(hashes)
	go w.client.Broadcast(ctx, w.peers.All(), msg)
}

func (w *Worker) broadcastNewTransactionHashes(ctx context.Context, hashes []hash.H256) {
	if w.client == nil {
		return
	}
	msg := NewTransactionHashesMsg(hashes)
	go w.client.Broadcast(ctx, w.peers.All(), msg)
}

// BroadcastPing sends a liveness Ping to every known peer, for the
// /network/ping control endpoint (spec.md §6).
func (w *Worker) BroadcastPing(ctx context.Context, nonce string) {
	if w.client == nil {
		return
	}
	w.client.Broadcast(ctx, w.peers.All(), NewPing(nonce))
}
