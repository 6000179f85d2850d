package state

import (
	"context"
	"time"

	"github.com/coreledger/node/foundation/blockchain/hash"
)

// Events is a tiny fan-out hub for the node's chain tip: handlers subscribe
// to watch new blocks land in near real time (spec.md §6
// `/blockchain/events`), without reaching into the chain tree directly.
// The hub's single goroutine owns the subscriber set, so no lock is needed.
type Events struct {
	subscribe   chan chan hash.H256
	unsubscribe chan chan hash.H256
}

func newEvents() *Events {
	return &Events{
		subscribe:   make(chan chan hash.H256),
		unsubscribe: make(chan chan hash.H256),
	}
}

// Subscribe registers a new listener and returns its channel along with a
// cancel func the caller must invoke, typically via defer, once it stops
// reading.
func (e *Events) Subscribe() (<-chan hash.H256, func()) {
	ch := make(chan hash.H256, 4)
	e.subscribe <- ch
	return ch, func() { e.unsubscribe <- ch }
}

// run polls tip at the given interval and publishes to every live
// subscriber whenever it changes. A slow subscriber drops events rather
// than blocking the poll loop.
func (e *Events) run(ctx context.Context, tip func() hash.H256, poll time.Duration) {
	listeners := make(map[chan hash.H256]bool)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	last := tip()
	for {
		select {
		case ch := <-e.subscribe:
			listeners[ch] = true

		case ch := <-e.unsubscribe:
			if listeners[ch] {
				delete(listeners, ch)
				close(ch)
			}

		case <-ticker.C:
			current := tip()
			if current == last {
				continue
			}
			last = current
			for ch := range listeners {
				select {
				case ch <- current:
				default:
				}
			}

		case <-ctx.Done():
			for ch := range listeners {
				close(ch)
			}
			return
		}
	}
}
