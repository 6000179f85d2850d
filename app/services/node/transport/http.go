// Package transport binds the network worker's Client interface to a
// concrete HTTP transport over the same foundation/web routes the control
// API uses (SPEC_FULL.md §6 expansion, §9 point 6). It is the one place a
// raw socket listener would go if the "peer wire framing" Non-goal were
// ever lifted; everything else in foundation/blockchain/network stays
// transport-agnostic.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/coreledger/node/foundation/blockchain/network"
	"github.com/coreledger/node/foundation/blockchain/peer"
	"go.uber.org/zap"
)

// Client is the node's HTTP implementation of network.Client.
type Client struct {
	httpClient *http.Client
	selfHost   string
	worker     *network.Worker
	log        *zap.SugaredLogger
}

// New constructs an HTTP Client bound to selfHost, the address this node
// advertises to its peers.
func New(selfHost string, log *zap.SugaredLogger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		selfHost:   selfHost,
		log:        log,
	}
}

// BindWorker wires the network worker that fetched or pulled data is fed
// back through. Worker and Client are constructed in a cycle — the worker
// needs a Client at construction, this Client needs the worker once it
// exists — so this is called once, immediately after both are built.
func (c *Client) BindWorker(w *network.Worker) {
	c.worker = w
}

// GetBlocks fetches the requested blocks from a specific peer, used by the
// network worker to resolve an orphan's missing antecedent.
func (c *Client) GetBlocks(ctx context.Context, peerHost string, hashes []hash.H256) ([]database.Block, error) {
	var blocks []database.Block
	if err := c.postJSON(ctx, peerHost, "/v1/node/block/get", hashes, &blocks); err != nil {
		return nil, fmt.Errorf("transport: get blocks from %s: %w", peerHost, err)
	}
	return blocks, nil
}

// Broadcast fans msg out to every peer. For inventory announcements, it
// asks each peer which of the announced hashes it doesn't already have and
// pushes exactly those blocks or transactions, read from this node's own
// worker, to the peer's propose/submit route, where they run through the
// peer's ordinary ingestion pipeline. For Ping it just registers this node
// with the peer, standing in for a liveness probe.
func (c *Client) Broadcast(ctx context.Context, peers []peer.Peer, msg network.Message) {
	switch msg.Kind {
	case network.KindNewBlockHashes:
		hashes, err := msg.AsHashes()
		if err != nil {
			c.log.Warnw("transport: decode block hashes", "error", err)
			return
		}
		for _, p := range peers {
			c.pushBlockInventory(ctx, p, hashes)
		}

	case network.KindNewTransactionHashes:
		hashes, err := msg.AsHashes()
		if err != nil {
			c.log.Warnw("transport: decode tx hashes", "error", err)
			return
		}
		for _, p := range peers {
			c.pushTransactionInventory(ctx, p, hashes)
		}

	case network.KindPing:
		for _, p := range peers {
			c.announceSelf(ctx, p)
		}
	}
}

func (c *Client) pushBlockInventory(ctx context.Context, p peer.Peer, hashes []hash.H256) {
	var unknown []hash.H256
	if err := c.postJSON(ctx, p.Host, "/v1/node/block/inv", hashes, &unknown); err != nil {
		c.log.Debugw("transport: block inventory", "peer", p.Host, "error", err)
		return
	}
	if len(unknown) == 0 || c.worker == nil {
		return
	}

	for _, b := range c.worker.HandleGetBlocks(unknown) {
		if err := c.postJSON(ctx, p.Host, "/v1/node/block/propose", b, nil); err != nil {
			c.log.Debugw("transport: push block", "peer", p.Host, "error", err)
		}
	}
}

func (c *Client) pushTransactionInventory(ctx context.Context, p peer.Peer, hashes []hash.H256) {
	var unknown []hash.H256
	if err := c.postJSON(ctx, p.Host, "/v1/node/tx/inv", hashes, &unknown); err != nil {
		c.log.Debugw("transport: tx inventory", "peer", p.Host, "error", err)
		return
	}
	if len(unknown) == 0 || c.worker == nil {
		return
	}

	for _, tx := range c.worker.HandleGetTransactions(unknown) {
		if err := c.postJSON(ctx, p.Host, "/v1/node/tx/submit", tx, nil); err != nil {
			c.log.Debugw("transport: push transaction", "peer", p.Host, "error", err)
		}
	}
}

func (c *Client) announceSelf(ctx context.Context, p peer.Peer) {
	self := peer.Peer{Host: c.selfHost}
	if err := c.postJSON(ctx, p.Host, "/v1/node/peers", self, nil); err != nil {
		c.log.Debugw("transport: announce self", "peer", p.Host, "error", err)
	}
}

// postJSON POSTs body as JSON to host+path and, if out is non-nil, decodes
// the response body into it. It tags the request with X-Peer-Host so the
// receiving node's orphan-resolution logic knows who to ask for a missing
// ancestor.
func (c *Client) postJSON(ctx context.Context, host, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := "http://" + host + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Peer-Host", c.selfHost)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", http.MethodPost, url, resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
