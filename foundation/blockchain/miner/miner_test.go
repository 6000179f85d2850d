package miner_test

import (
	"context"
	"testing"
	"time"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/coreledger/node/foundation/blockchain/mempool"
	"github.com/coreledger/node/foundation/blockchain/miner"
	"github.com/coreledger/node/foundation/blockchain/signature"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// easyDifficulty is the maximum possible H256 so a mining round's random
// nonce search resolves on essentially the first attempt.
var easyDifficulty = func() hash.H256 {
	var h hash.H256
	for i := range h {
		h[i] = 0xff
	}
	return h
}()

func seed(b byte) []byte {
	s := make([]byte, 32)
	for i := range s {
		s[i] = b
	}
	return s
}

func newTestChain(t *testing.T, genesisState database.State) *database.Chain {
	t.Helper()
	genesisBlock := database.Block{
		Header: database.Header{Parent: hash.Zero, Difficulty: easyDifficulty, MerkleRoot: hash.Zero},
	}
	chain, err := database.New(genesisBlock, genesisState)
	require.NoError(t, err)
	return chain
}

func TestMinerStaysPausedUntilStarted(t *testing.T) {
	chain := newTestChain(t, database.State{})
	pool := mempool.New(10)
	m := miner.New(chain, pool, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() { m.Run(ctx); close(done) }()

	select {
	case <-m.Results():
		t.Fatal("miner produced a block before Start was called")
	case <-time.After(20 * time.Millisecond):
	}

	state, _ := m.CurrentState()
	require.Equal(t, miner.StatePaused, state)

	cancel()
	<-done
}

func TestMinerProducesBlockWhenRunning(t *testing.T) {
	chain := newTestChain(t, database.State{})
	pool := mempool.New(10)
	m := miner.New(chain, pool, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go m.Run(ctx)
	m.Start(0)

	select {
	case block, ok := <-m.Results():
		require.True(t, ok)
		require.True(t, block.SatisfiesPoW())
		require.Equal(t, chain.Tip(), block.Header.Parent)
	case <-time.After(900 * time.Millisecond):
		t.Fatal("miner never produced a block")
	}

	m.Exit()
}

func TestMinerRemovesMinedTransactionsBeforePublishing(t *testing.T) {
	pub, priv, err := signature.GenerateKey(seed(1))
	require.NoError(t, err)
	sender := signature.FromPublicKey(pub)

	genesisState := database.State{sender: {Balance: 1000}}
	chain := newTestChain(t, genesisState)
	pool := mempool.New(10)

	tx := database.Transaction{Receiver: sender, Value: 1, Nonce: 1}
	signed := database.SignedTransaction{
		Transaction: tx,
		Signature:   signature.Sign(priv, tx.Encode()),
		PublicKey:   pub,
	}
	require.True(t, pool.Insert(signed))

	m := miner.New(chain, pool, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go m.Run(ctx)
	m.Start(0)

	select {
	case block := <-m.Results():
		require.Len(t, block.Content.Data, 1)
		require.Equal(t, signed.Hash(), block.Content.Data[0].Hash())
	case <-time.After(900 * time.Millisecond):
		t.Fatal("miner never produced a block")
	}

	// The mined transaction must already be gone from the mempool by the
	// time the block is observable on the results channel, so the very
	// next round can't re-include it.
	require.Equal(t, 0, pool.Len())

	m.Exit()
}

func TestMinerExitStopsRun(t *testing.T) {
	chain := newTestChain(t, database.State{})
	pool := mempool.New(10)
	m := miner.New(chain, pool, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() { m.Run(ctx); close(done) }()

	m.Exit()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("miner did not stop after Exit")
	}
}
