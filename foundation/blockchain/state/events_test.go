package state

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreledger/node/foundation/blockchain/hash"
	"github.com/stretchr/testify/require"
)

func TestEventsPublishesOnTipChange(t *testing.T) {
	var tip atomic.Value
	tip.Store(hash.Zero)

	e := newEvents()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go e.run(ctx, func() hash.H256 { return tip.Load().(hash.H256) }, 5*time.Millisecond)

	ch, unsubscribe := e.Subscribe()
	defer unsubscribe()

	next := hash.FromBytes([]byte("new tip"))
	tip.Store(next)

	select {
	case got := <-ch:
		require.Equal(t, next, got)
	case <-time.After(time.Second):
		t.Fatal("never received tip-change event")
	}
}

func TestEventsUnsubscribeClosesChannel(t *testing.T) {
	e := newEvents()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go e.run(ctx, func() hash.H256 { return hash.Zero }, 5*time.Millisecond)

	ch, unsubscribe := e.Subscribe()
	unsubscribe()

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was never closed after unsubscribe")
	}
}

func TestEventsCancelContextClosesAllListeners(t *testing.T) {
	e := newEvents()
	ctx, cancel := context.WithCancel(context.Background())

	go e.run(ctx, func() hash.H256 { return hash.Zero }, 5*time.Millisecond)

	ch, _ := e.Subscribe()
	cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was never closed after context cancellation")
	}
}
