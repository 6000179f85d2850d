package database

import "github.com/coreledger/node/foundation/blockchain/signature"

// State is a snapshot mapping every account that has ever been touched to
// its derived AccountState. An absent key means balance 0, next nonce 1
// (spec.md §3). State values are never mutated in place: Apply* functions
// return a new map, leaving the receiver untouched, so a State can be
// safely shared across goroutines once published.
type State map[signature.Address]AccountState

// Clone returns a shallow copy of the state. AccountState is a plain value
// type, so a shallow copy is a full copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for addr, acct := range s {
		out[addr] = acct
	}
	return out
}

// Account returns the AccountState for addr, or the zero value if the
// address has never been touched.
func (s State) Account(addr signature.Address) AccountState {
	return s[addr]
}

// ApplyTx runs the account-model state transition for a single signed
// transaction against state, returning a new State. It never mutates state.
// Effects, in the order spec.md §4.2 requires:
//
//  1. Derive the sender from the transaction's public key.
//  2. Reject on invalid signature.
//  3. Reject if the sender has no account (accounts are created by
//     receiving funds, never by sending).
//  4. Reject on nonce mismatch.
//  5. Reject on insufficient balance.
//  6. Debit the sender and bump its nonce.
//  7. Credit the receiver, creating its account at nonce 0 if absent.
func ApplyTx(state State, tx SignedTransaction) (State, error) {
	if !tx.VerifySignature() {
		return nil, ErrInvalidSignature
	}

	sender, err := tx.Sender()
	if err != nil {
		return nil, ErrInvalidSignature
	}

	senderAcct, ok := state[sender]
	if !ok {
		return nil, ErrUnknownSender
	}

	if tx.Transaction.Nonce != senderAcct.NextNonce() {
		return nil, ErrBadNonce
	}

	if senderAcct.Balance < tx.Transaction.Value {
		return nil, ErrInsufficientBalance
	}

	next := state.Clone()

	senderAcct.Balance -= tx.Transaction.Value
	senderAcct.Nonce++
	next[sender] = senderAcct

	receiverAcct := next[tx.Transaction.Receiver]
	receiverAcct.Balance += tx.Transaction.Value
	next[tx.Transaction.Receiver] = receiverAcct

	return next, nil
}

// ApplyBlock applies a block's transactions in order against state,
// short-circuiting on the first failing transaction. It is pure: state is
// never mutated, and on success a brand-new State is returned. Callers
// (blockchain.Insert, the network worker's stateful validation step) treat
// any error here as block-invalidity and refuse the block (spec.md §4.2,
// §9 Open Question 1).
func ApplyBlock(state State, block Block) (State, error) {
	current := state
	for _, tx := range block.Content.Data {
		next, err := ApplyTx(current, tx)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}
