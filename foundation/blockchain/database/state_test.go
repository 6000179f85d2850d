package database_test

import (
	"testing"

	"github.com/coreledger/node/foundation/blockchain/database"
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

type account struct {
	pub  []byte
	priv []byte
	addr signature.Address
}

func newAccount(t *testing.T, b byte) account {
	t.Helper()
	pub, priv, err := signature.GenerateKey(seed(b))
	require.NoError(t, err)
	return account{pub: pub, priv: priv, addr: signature.FromPublicKey(pub)}
}

func sign(a account, tx database.Transaction) database.SignedTransaction {
	return database.SignedTransaction{
		Transaction: tx,
		Signature:   signature.Sign(a.priv, tx.Encode()),
		PublicKey:   a.pub,
	}
}

func TestApplyTxDebitsAndCreditsBalances(t *testing.T) {
	alice := newAccount(t, 1)
	bob := newAccount(t, 2)

	state := database.State{alice.addr: {Nonce: 0, Balance: 100}}

	tx := sign(alice, database.Transaction{Receiver: bob.addr, Value: 30, Nonce: 1})
	next, err := database.ApplyTx(state, tx)
	require.NoError(t, err)

	require.Equal(t, uint64(70), next.Account(alice.addr).Balance)
	require.Equal(t, uint32(1), next.Account(alice.addr).Nonce)
	require.Equal(t, uint64(30), next.Account(bob.addr).Balance)

	// The input state is untouched.
	require.Equal(t, uint64(100), state.Account(alice.addr).Balance)
}

func TestApplyTxRejectsInvalidSignature(t *testing.T) {
	alice := newAccount(t, 3)
	bob := newAccount(t, 4)

	state := database.State{alice.addr: {Nonce: 0, Balance: 100}}

	tx := sign(alice, database.Transaction{Receiver: bob.addr, Value: 10, Nonce: 1})
	tx.Signature[0] ^= 0xff

	_, err := database.ApplyTx(state, tx)
	require.ErrorIs(t, err, database.ErrInvalidSignature)
}

func TestApplyTxRejectsUnknownSender(t *testing.T) {
	alice := newAccount(t, 5)
	bob := newAccount(t, 6)

	state := database.State{}

	tx := sign(alice, database.Transaction{Receiver: bob.addr, Value: 10, Nonce: 1})
	_, err := database.ApplyTx(state, tx)
	require.ErrorIs(t, err, database.ErrUnknownSender)
}

func TestApplyTxRejectsBadNonce(t *testing.T) {
	alice := newAccount(t, 7)
	bob := newAccount(t, 8)

	state := database.State{alice.addr: {Nonce: 5, Balance: 100}}

	tx := sign(alice, database.Transaction{Receiver: bob.addr, Value: 10, Nonce: 1})
	_, err := database.ApplyTx(state, tx)
	require.ErrorIs(t, err, database.ErrBadNonce)
}

func TestApplyTxRejectsInsufficientBalance(t *testing.T) {
	alice := newAccount(t, 9)
	bob := newAccount(t, 10)

	state := database.State{alice.addr: {Nonce: 0, Balance: 5}}

	tx := sign(alice, database.Transaction{Receiver: bob.addr, Value: 10, Nonce: 1})
	_, err := database.ApplyTx(state, tx)
	require.ErrorIs(t, err, database.ErrInsufficientBalance)
}

func TestApplyTxCreatesReceiverAccount(t *testing.T) {
	alice := newAccount(t, 11)
	bob := newAccount(t, 12)

	state := database.State{alice.addr: {Nonce: 0, Balance: 100}}

	tx := sign(alice, database.Transaction{Receiver: bob.addr, Value: 10, Nonce: 1})
	next, err := database.ApplyTx(state, tx)
	require.NoError(t, err)

	require.Equal(t, uint32(0), next.Account(bob.addr).Nonce)
	require.Equal(t, uint64(10), next.Account(bob.addr).Balance)
}

func TestApplyBlockShortCircuitsOnFirstFailure(t *testing.T) {
	alice := newAccount(t, 13)
	bob := newAccount(t, 14)

	state := database.State{alice.addr: {Nonce: 0, Balance: 100}}

	good := sign(alice, database.Transaction{Receiver: bob.addr, Value: 10, Nonce: 1})
	badNonce := sign(alice, database.Transaction{Receiver: bob.addr, Value: 10, Nonce: 99})

	block := database.Block{Content: database.Content{Data: []database.SignedTransaction{good, badNonce}}}

	_, err := database.ApplyBlock(state, block)
	require.ErrorIs(t, err, database.ErrBadNonce)
}

func TestApplyBlockAppliesInOrder(t *testing.T) {
	alice := newAccount(t, 15)
	bob := newAccount(t, 16)

	state := database.State{alice.addr: {Nonce: 0, Balance: 100}}

	first := sign(alice, database.Transaction{Receiver: bob.addr, Value: 10, Nonce: 1})
	second := sign(alice, database.Transaction{Receiver: bob.addr, Value: 10, Nonce: 2})

	block := database.Block{Content: database.Content{Data: []database.SignedTransaction{first, second}}}

	next, err := database.ApplyBlock(state, block)
	require.NoError(t, err)
	require.Equal(t, uint64(80), next.Account(alice.addr).Balance)
	require.Equal(t, uint32(2), next.Account(alice.addr).Nonce)
	require.Equal(t, uint64(20), next.Account(bob.addr).Balance)
}
