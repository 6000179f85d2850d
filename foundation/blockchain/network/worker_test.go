package network_test

import (
	"context"
	"sync"
	"testing"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/coreledger/node/foundation/blockchain/mempool"
	"github.com/coreledger/node/foundation/blockchain/network"
	"github.com/coreledger/node/foundation/blockchain/peer"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var easyDifficulty = func() hash.H256 {
	var h hash.H256
	for i := range h {
		h[i] = 0xff
	}
	return h
}()

func mineBlock(t *testing.T, parent hash.H256, salt uint64) database.Block {
	t.Helper()
	header := database.Header{
		Parent:     parent,
		Difficulty: easyDifficulty,
		Timestamp:  salt,
		MerkleRoot: hash.Zero,
	}
	for nonce := uint32(0); ; nonce++ {
		header.Nonce = nonce
		b := database.Block{Header: header}
		if b.SatisfiesPoW() {
			return b
		}
		if nonce > 1_000_000 {
			t.Fatal("could not mine test block")
		}
	}
}

// fakeClient stands in for the HTTP transport: GetBlocks serves whatever
// the test preloaded for a given peer, Broadcast just records calls.
type fakeClient struct {
	mu        sync.Mutex
	blocksFor map[string][]database.Block
	broadcast []network.Message
}

func newFakeClient() *fakeClient {
	return &fakeClient{blocksFor: make(map[string][]database.Block)}
}

func (f *fakeClient) GetBlocks(ctx context.Context, peerHost string, hashes []hash.H256) ([]database.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocksFor[peerHost], nil
}

func (f *fakeClient) Broadcast(ctx context.Context, peers []peer.Peer, msg network.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, msg)
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func newTestChain(t *testing.T) (*database.Chain, hash.H256) {
	t.Helper()
	genesisBlock := database.Block{
		Header: database.Header{Parent: hash.Zero, Difficulty: easyDifficulty, MerkleRoot: hash.Zero},
	}
	chain, err := database.New(genesisBlock, database.State{})
	require.NoError(t, err)
	return chain, genesisBlock.Hash()
}

func TestHandleBlockRejectsDuplicate(t *testing.T) {
	chain, genesisHash := newTestChain(t)
	pool := mempool.New(10)
	client := newFakeClient()
	w := network.New(chain, pool, peer.NewSet(), client, testLogger())

	b1 := mineBlock(t, genesisHash, 1)
	require.NoError(t, w.HandleBlock(context.Background(), b1, peer.Peer{}))
	require.ErrorIs(t, w.HandleBlock(context.Background(), b1, peer.Peer{}), network.ErrDuplicate)
}

func TestHandleBlockReconcilesOrphanChain(t *testing.T) {
	chain, genesisHash := newTestChain(t)
	pool := mempool.New(10)
	client := newFakeClient()
	w := network.New(chain, pool, peer.NewSet(), client, testLogger())

	b1 := mineBlock(t, genesisHash, 1)
	b2 := mineBlock(t, b1.Hash(), 2)

	// Peer "remote" is preloaded to serve b1 when asked for it.
	client.blocksFor["remote"] = []database.Block{b1}

	err := w.HandleBlock(context.Background(), b2, peer.Peer{Host: "remote"})
	require.ErrorIs(t, err, network.ErrOrphaned)

	// The orphan-resolution recursion should have fetched and inserted b1,
	// then reconciled b2 on top of it.
	require.True(t, chain.Has(b1.Hash()))
	require.True(t, chain.Has(b2.Hash()))
	require.Equal(t, b2.Hash(), chain.Tip())
}

func TestHandleBlockWithoutPeerStaysOrphaned(t *testing.T) {
	chain, genesisHash := newTestChain(t)
	pool := mempool.New(10)
	client := newFakeClient()
	w := network.New(chain, pool, peer.NewSet(), client, testLogger())

	b1 := mineBlock(t, genesisHash, 1)
	b2 := mineBlock(t, b1.Hash(), 2)

	err := w.HandleBlock(context.Background(), b2, peer.Peer{})
	require.ErrorIs(t, err, network.ErrOrphaned)
	require.False(t, chain.Has(b2.Hash()))
}

func TestHandleNewBlockHashesReturnsOnlyUnknown(t *testing.T) {
	chain, genesisHash := newTestChain(t)
	pool := mempool.New(10)
	client := newFakeClient()
	w := network.New(chain, pool, peer.NewSet(), client, testLogger())

	b1 := mineBlock(t, genesisHash, 1)
	require.NoError(t, w.HandleBlock(context.Background(), b1, peer.Peer{}))

	unknown := hash.FromBytes([]byte("unknown block"))
	got := w.HandleNewBlockHashes([]hash.H256{genesisHash, b1.Hash(), unknown})
	require.Equal(t, []hash.H256{unknown}, got)
}

func TestHandleGetBlocksReturnsKnownOnly(t *testing.T) {
	chain, genesisHash := newTestChain(t)
	pool := mempool.New(10)
	client := newFakeClient()
	w := network.New(chain, pool, peer.NewSet(), client, testLogger())

	b1 := mineBlock(t, genesisHash, 1)
	require.NoError(t, w.HandleBlock(context.Background(), b1, peer.Peer{}))

	got := w.HandleGetBlocks([]hash.H256{b1.Hash(), hash.FromBytes([]byte("missing"))})
	require.Len(t, got, 1)
	require.Equal(t, b1.Hash(), got[0].Hash())
}
