package mempool_test

import (
	"testing"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/mempool"
	"github.com/coreledger/node/foundation/blockchain/signature"
	"github.com/stretchr/testify/require"
)

func seed(b byte) []byte {
	s := make([]byte, 32)
	for i := range s {
		s[i] = b
	}
	return s
}

func signedTx(t *testing.T, seedByte byte, nonce uint32) database.SignedTransaction {
	t.Helper()
	pub, priv, err := signature.GenerateKey(seed(seedByte))
	require.NoError(t, err)

	tx := database.Transaction{Receiver: signature.FromPublicKey(pub), Value: 1, Nonce: nonce}
	return database.SignedTransaction{
		Transaction: tx,
		Signature:   signature.Sign(priv, tx.Encode()),
		PublicKey:   pub,
	}
}

func TestInsertDeduplicates(t *testing.T) {
	pool := mempool.New(10)
	tx := signedTx(t, 1, 1)

	require.True(t, pool.Insert(tx))
	require.False(t, pool.Insert(tx))
	require.Equal(t, 1, pool.Len())
}

func TestBatchRespectsMaxSizeAndOrder(t *testing.T) {
	pool := mempool.New(2)

	tx1 := signedTx(t, 1, 1)
	tx2 := signedTx(t, 2, 1)
	tx3 := signedTx(t, 3, 1)

	pool.Insert(tx1)
	pool.Insert(tx2)
	pool.Insert(tx3)

	batch := pool.Batch()
	require.Len(t, batch, 2)
	require.Equal(t, tx1.Hash(), batch[0].Hash())
	require.Equal(t, tx2.Hash(), batch[1].Hash())
}

func TestRemoveIncludedDropsOnlyGivenTxs(t *testing.T) {
	pool := mempool.New(10)

	tx1 := signedTx(t, 1, 1)
	tx2 := signedTx(t, 2, 1)
	pool.Insert(tx1)
	pool.Insert(tx2)

	pool.RemoveIncluded([]database.SignedTransaction{tx1})

	require.False(t, pool.Contains(tx1.Hash()))
	require.True(t, pool.Contains(tx2.Hash()))
	require.Equal(t, 1, pool.Len())
}

func TestRevalidateDropsTxsThatNoLongerApply(t *testing.T) {
	pool := mempool.New(10)

	pub, priv, err := signature.GenerateKey(seed(9))
	require.NoError(t, err)
	sender := signature.FromPublicKey(pub)

	receiverPub, _, err := signature.GenerateKey(seed(10))
	require.NoError(t, err)
	receiver := signature.FromPublicKey(receiverPub)

	tx := database.Transaction{Receiver: receiver, Value: 100, Nonce: 1}
	signed := database.SignedTransaction{
		Transaction: tx,
		Signature:   signature.Sign(priv, tx.Encode()),
		PublicKey:   pub,
	}
	pool.Insert(signed)

	// Sender has insufficient balance in the new state, so Revalidate must
	// evict it.
	state := database.State{sender: {Nonce: 0, Balance: 10}}
	pool.Revalidate(state)

	require.False(t, pool.Contains(signed.Hash()))
	require.Equal(t, 0, pool.Len())
}

func TestAllReturnsInsertionOrder(t *testing.T) {
	pool := mempool.New(10)
	tx1 := signedTx(t, 1, 1)
	tx2 := signedTx(t, 2, 1)

	pool.Insert(tx1)
	pool.Insert(tx2)

	all := pool.All()
	require.Len(t, all, 2)
	require.Equal(t, tx1.Hash(), all[0].Hash())
	require.Equal(t, tx2.Hash(), all[1].Hash())
}
