// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/coreledger/node/app/services/node/handlers/v1/private"
	"github.com/coreledger/node/app/services/node/handlers/v1/public"
	"github.com/coreledger/node/foundation/blockchain/state"
	"github.com/coreledger/node/foundation/web"
	"github.com/gorilla/websocket"

	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// PublicRoutes binds all the version 1 control-API routes (spec.md §6).
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		WS:    websocket.Upgrader{},
	}

	app.Handle(http.MethodPost, version, "/miner/start", pbl.StartMining)
	app.Handle(http.MethodPost, version, "/tx-generator/start", pbl.StartGenerator)
	app.Handle(http.MethodPost, version, "/network/ping", pbl.NetworkPing)
	app.Handle(http.MethodGet, version, "/blockchain/longest-chain", pbl.LongestChain)
	app.Handle(http.MethodGet, version, "/blockchain/longest-chain-tx", pbl.LongestChainTransactions)
	app.Handle(http.MethodGet, version, "/blockchain/state", pbl.BlockchainState)
	app.Handle(http.MethodGet, version, "/blockchain/events", pbl.Events)
}

// PrivateRoutes binds all the version 1 node-to-node routes (SPEC_FULL.md
// §6 expansion).
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodPost, version, "/node/peers", prv.SubmitPeer)
	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodPost, version, "/node/block/propose", prv.ProposeBlock)
	app.Handle(http.MethodPost, version, "/node/tx/submit", prv.SubmitNodeTransaction)
	app.Handle(http.MethodPost, version, "/node/block/inv", prv.BlockInventory)
	app.Handle(http.MethodPost, version, "/node/block/get", prv.GetBlocks)
	app.Handle(http.MethodPost, version, "/node/tx/inv", prv.TransactionInventory)
	app.Handle(http.MethodPost, version, "/node/tx/get", prv.GetTransactions)
}
