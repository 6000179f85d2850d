// Package public maintains the group of handlers for the node's control
// API: starting/retuning the miner and transaction generator, pinging the
// network, and querying the blockchain (spec.md §6).
package public

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	v1 "github.com/coreledger/node/business/web/v1"
	"github.com/coreledger/node/foundation/blockchain/state"
	"github.com/coreledger/node/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of control-API endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
}

// StartMining transitions the miner to Running(lambda), where lambda is an
// inter-round throttle in microseconds (spec.md §6 `/miner/start`).
func (h Handlers) StartMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	lambda, err := parseUint(r, "lambda")
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	h.State.Miner.Start(lambda)

	return web.Respond(ctx, w, web.Response{Success: true, Message: "mining started"}, http.StatusOK)
}

// StartGenerator starts the transaction generator producing roughly one
// transaction per theta milliseconds (spec.md §6 `/tx-generator/start`).
func (h Handlers) StartGenerator(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	theta, err := parseUint(r, "theta")
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	h.State.Generator.Start(time.Duration(theta) * time.Millisecond)

	return web.Respond(ctx, w, web.Response{Success: true, Message: "generator started"}, http.StatusOK)
}

// NetworkPing broadcasts a liveness Ping to every known peer (spec.md §6
// `/network/ping`).
func (h Handlers) NetworkPing(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.State.Worker.BroadcastPing(ctx, "Test ping")
	return web.Respond(ctx, w, web.Response{Success: true, Message: "ping broadcast"}, http.StatusOK)
}

// LongestChain returns the hex hashes of every block on the longest chain,
// genesis first (spec.md §6 `/blockchain/longest-chain`).
func (h Handlers) LongestChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.LongestChain(), http.StatusOK)
}

// LongestChainTransactions returns, per block on the longest chain, the hex
// hashes of its transactions (spec.md §6 `/blockchain/longest-chain-tx`).
func (h Handlers) LongestChainTransactions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.LongestChainTransactions(), http.StatusOK)
}

// BlockchainState returns every account's (address, nonce, balance) as of
// the block at the given height (spec.md §6 `/blockchain/state`).
func (h Handlers) BlockchainState(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	height, err := parseUint(r, "block")
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	blockHash, ok := h.State.BlockAtHeight(height)
	if !ok {
		return v1.NewRequestError(errUnknownHeight, http.StatusNotFound)
	}

	entries, ok := h.State.StateAt(blockHash)
	if !ok {
		return v1.NewRequestError(errUnknownHeight, http.StatusNotFound)
	}

	return web.Respond(ctx, w, entries, http.StatusOK)
}

// Events upgrades the connection to a websocket and pushes the new tip
// hash every time a block lands on the longest chain (spec.md §6
// `/blockchain/events`), with a periodic ping to keep idle connections
// alive.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch, cancel := h.State.Events.Subscribe()
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case tip, ok := <-ch:
			if !ok {
				return nil
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(tip.Hex())); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}

		case <-ctx.Done():
			return nil
		}
	}
}

var errUnknownHeight = errors.New("no block at that height")

func parseUint(r *http.Request, key string) (uint64, error) {
	return strconv.ParseUint(r.URL.Query().Get(key), 10, 64)
}
