package generator_test

import (
	"context"
	"testing"
	"time"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/generator"
	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/coreledger/node/foundation/blockchain/mempool"
	"github.com/coreledger/node/foundation/blockchain/network"
	"github.com/coreledger/node/foundation/blockchain/peer"
	"github.com/coreledger/node/foundation/blockchain/signature"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seed(b byte) []byte {
	s := make([]byte, 32)
	for i := range s {
		s[i] = b
	}
	return s
}

// stubClient discards every broadcast and never serves blocks; the
// generator never needs either, it only goes through HandleTransaction.
type stubClient struct{}

func (stubClient) GetBlocks(ctx context.Context, peerHost string, hashes []hash.H256) ([]database.Block, error) {
	return nil, nil
}

func (stubClient) Broadcast(ctx context.Context, peers []peer.Peer, msg network.Message) {}

func newTestWorker(t *testing.T, self, other signature.Address) *network.Worker {
	t.Helper()

	genesisState := database.State{
		self:  {Balance: 1_000_000},
		other: {Balance: 1_000_000},
	}
	genesisBlock := database.Block{
		Header: database.Header{Parent: hash.Zero, Difficulty: hash.H256{0xff}, MerkleRoot: hash.Zero},
	}
	chain, err := database.New(genesisBlock, genesisState)
	require.NoError(t, err)

	pool := mempool.New(10)
	return network.New(chain, pool, peer.NewSet(), stubClient{}, zap.NewNop().Sugar())
}

func TestGeneratorProducesAcceptedTransaction(t *testing.T) {
	selfPub, selfPriv, err := signature.GenerateKey(seed(1))
	require.NoError(t, err)
	otherPub, _, err := signature.GenerateKey(seed(2))
	require.NoError(t, err)

	self := signature.FromPublicKey(selfPub)
	other := signature.FromPublicKey(otherPub)

	worker := newTestWorker(t, self, other)
	log := zap.NewNop().Sugar()

	g := generator.New(selfPub, selfPriv, worker, log)
	g.AddRecipient(other)
	g.Start(2 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	deadline := time.After(150 * time.Millisecond)
	for {
		if worker.TipStateAccount(self).Nonce > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("generator never submitted an accepted transaction")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestGeneratorOnlyEverSignsForItsOwnIdentity(t *testing.T) {
	selfPub, selfPriv, err := signature.GenerateKey(seed(3))
	require.NoError(t, err)
	otherPub, _, err := signature.GenerateKey(seed(4))
	require.NoError(t, err)

	self := signature.FromPublicKey(selfPub)
	other := signature.FromPublicKey(otherPub)

	worker := newTestWorker(t, self, other)
	log := zap.NewNop().Sugar()

	g := generator.New(selfPub, selfPriv, worker, log)
	g.AddRecipient(other)
	g.Start(time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	g.Run(ctx)

	// Every generated transaction must have advanced self's nonce, never
	// other's, since self is the only signer the generator holds keys for.
	require.Equal(t, uint32(0), worker.TipStateAccount(other).Nonce)
}
