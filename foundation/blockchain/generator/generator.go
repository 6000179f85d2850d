// Package generator implements the optional transaction generator worker:
// a demo/load tool that synthesizes signed transactions at roughly one per
// theta milliseconds and feeds them through the same edge-validation path
// an inbound peer transaction takes (SPEC_FULL.md §4.9).
package generator

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/network"
	"github.com/coreledger/node/foundation/blockchain/signature"
	"go.uber.org/zap"
)

// Generator periodically builds a signed transaction from the node's own
// account to a random known recipient and submits it through the network
// worker's transaction-ingestion pipeline. It never touches the mempool or
// blockchain directly — the same edge validation an untrusted peer's
// transaction receives also gates the generator's own output.
type Generator struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
	self signature.Address

	worker *network.Worker
	log    *zap.SugaredLogger

	mu         sync.Mutex
	recipients []signature.Address

	signals chan time.Duration
}

// New constructs a Generator that signs as identity (pub, priv) and submits
// through worker.
func New(pub ed25519.PublicKey, priv ed25519.PrivateKey, worker *network.Worker, log *zap.SugaredLogger) *Generator {
	self := signature.FromPublicKey(pub)
	return &Generator{
		pub:        pub,
		priv:       priv,
		self:       self,
		worker:     worker,
		log:        log,
		recipients: []signature.Address{self},
		signals:    make(chan time.Duration, 1),
	}
}

// AddRecipient registers another address as a possible transaction target.
// Nodes typically call this with the other ICO seed addresses at startup.
func (g *Generator) AddRecipient(addr signature.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recipients = append(g.recipients, addr)
}

// Start begins producing at roughly one transaction per theta. Calling
// Start again changes the rate.
func (g *Generator) Start(theta time.Duration) {
	select {
	case g.signals <- theta:
	default:
		// A pending rate change hasn't been picked up yet; overwrite it.
		select {
		case <-g.signals:
		default:
		}
		g.signals <- theta
	}
}

// Run blocks, producing transactions until ctx is cancelled. It starts
// paused (waiting on the first Start) exactly like the miner does.
func (g *Generator) Run(ctx context.Context) {
	var theta time.Duration
	var ticker *time.Ticker

	for {
		var tick <-chan time.Time
		if ticker != nil {
			tick = ticker.C
		}

		select {
		case theta = <-g.signals:
			if ticker != nil {
				ticker.Stop()
			}
			ticker = time.NewTicker(theta)

		case <-tick:
			g.produceOne(ctx)

		case <-ctx.Done():
			if ticker != nil {
				ticker.Stop()
			}
			return
		}
	}
}

func (g *Generator) produceOne(ctx context.Context) {
	g.mu.Lock()
	recipients := g.recipients
	g.mu.Unlock()

	recipient, err := randomAddress(recipients)
	if err != nil {
		g.log.Warnw("generator: pick recipient", "error", err)
		return
	}

	value, err := randomValue()
	if err != nil {
		g.log.Warnw("generator: pick value", "error", err)
		return
	}

	nonce := g.nextNonce()

	tx := database.Transaction{Receiver: recipient, Value: value, Nonce: nonce}
	signed := database.SignedTransaction{
		Transaction: tx,
		Signature:   signature.Sign(g.priv, tx.Encode()),
		PublicKey:   g.pub,
	}

	if err := g.worker.HandleTransaction(ctx, signed); err != nil {
		g.log.Debugw("generator: transaction rejected", "error", err)
		return
	}

	g.log.Infow("generator: transaction submitted", "hash", signed.Hash().Hex(), "to", recipient.String(), "value", value)
}

// nextNonce reads the generator's own account nonce from the current tip
// state and returns the next expected value. This mirrors the stateful
// check the network worker will itself perform.
func (g *Generator) nextNonce() uint32 {
	acct := g.worker.TipStateAccount(g.self)
	return acct.NextNonce()
}

func randomAddress(pool []signature.Address) (signature.Address, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return signature.Address{}, err
	}
	return pool[n.Int64()], nil
}

func randomValue() (uint64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return 0, err
	}
	return n.Uint64() + 1, nil
}
