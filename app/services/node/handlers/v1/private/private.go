// Package private maintains the group of handlers for node-to-node access:
// peer registration, status exchange, block/transaction ingestion and
// inventory exchange (SPEC_FULL.md §6 expansion).
package private

import (
	"context"
	"errors"
	"net/http"

	v1 "github.com/coreledger/node/business/web/v1"
	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/coreledger/node/foundation/blockchain/network"
	"github.com/coreledger/node/foundation/blockchain/peer"
	"github.com/coreledger/node/foundation/blockchain/state"
	"github.com/coreledger/node/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node-to-node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// SubmitPeer registers the caller as a known peer.
func (h Handlers) SubmitPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var p peer.Peer
	if err := web.Decode(r, &p); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	if h.State.Peers.Add(p) {
		h.Log.Infow("private: peer added", "traceid", v.TraceID, "host", p.Host)
	}

	return web.Respond(ctx, w, nil, http.StatusOK)
}

// Status returns the node's current chain position and known peers.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tip := h.State.Chain.Tip()
	height, _ := h.State.Chain.Height(tip)

	status := peer.Status{
		LatestBlockHash:   tip,
		LatestBlockHeight: height,
		KnownPeers:        h.State.Peers.All(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// ProposeBlock pushes a block received from a peer through the ingestion
// pipeline.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var block database.Block
	if err := web.Decode(r, &block); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	from := callerPeer(r)
	if err := h.State.Worker.HandleBlock(ctx, block, from); err != nil {
		if errors.Is(err, network.ErrDuplicate) || errors.Is(err, network.ErrOrphaned) {
			return web.Respond(ctx, w, web.Response{Success: true, Message: err.Error()}, http.StatusAccepted)
		}
		return v1.NewDomainError(err)
	}

	return web.Respond(ctx, w, web.Response{Success: true, Message: "accepted"}, http.StatusOK)
}

// SubmitNodeTransaction pushes a signed transaction received from a peer
// through transaction ingestion.
func (h Handlers) SubmitNodeTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var tx database.SignedTransaction
	if err := web.Decode(r, &tx); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	if err := h.State.Worker.HandleTransaction(ctx, tx); err != nil {
		if errors.Is(err, network.ErrDuplicate) {
			return web.Respond(ctx, w, web.Response{Success: true, Message: err.Error()}, http.StatusAccepted)
		}
		return v1.NewDomainError(err)
	}

	return web.Respond(ctx, w, web.Response{Success: true, Message: "accepted"}, http.StatusOK)
}

// BlockInventory answers a NewBlockHashes announcement with the subset this
// node doesn't already have.
func (h Handlers) BlockInventory(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var hashes []hash.H256
	if err := web.Decode(r, &hashes); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, h.State.Worker.HandleNewBlockHashes(hashes), http.StatusOK)
}

// GetBlocks answers a GetBlocks request with every requested block known
// locally.
func (h Handlers) GetBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var hashes []hash.H256
	if err := web.Decode(r, &hashes); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, h.State.Worker.HandleGetBlocks(hashes), http.StatusOK)
}

// TransactionInventory answers a NewTransactionHashes announcement with the
// subset this node doesn't already have.
func (h Handlers) TransactionInventory(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var hashes []hash.H256
	if err := web.Decode(r, &hashes); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, h.State.Worker.HandleNewTransactionHashes(hashes), http.StatusOK)
}

// GetTransactions answers a GetTransactions request with every requested
// transaction known locally.
func (h Handlers) GetTransactions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var hashes []hash.H256
	if err := web.Decode(r, &hashes); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, h.State.Worker.HandleGetTransactions(hashes), http.StatusOK)
}

// callerPeer resolves the peer that sent this request from its X-Peer-Host
// header, set by the HTTP network.Client transport on every outbound
// gossip request. Absent the header (a direct/manual call), the zero Peer
// is used and orphan resolution falls back to local reconciliation only.
func callerPeer(r *http.Request) peer.Peer {
	host := r.Header.Get("X-Peer-Host")
	return peer.Peer{Host: host}
}
