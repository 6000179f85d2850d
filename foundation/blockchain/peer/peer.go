// Package peer tracks the set of known remote nodes by host, and defines
// Status, the chain position a node reports about itself over /node/status.
// The Set does not record statuses reported by other peers. It is grounded
// in the teacher's foundation/blockchain/peer usage seen from
// app/services/node/handlers/v1/private.
package peer

import (
	"sync"

	"github.com/coreledger/node/foundation/blockchain/hash"
)

// Peer identifies a remote node by its HTTP host:port address.
type Peer struct {
	Host string `json:"host"`
}

// Status is a remote node's self-reported chain position, exchanged over
// /node/status (spec.md SPEC_FULL.md §6 expansion).
type Status struct {
	LatestBlockHash   hash.H256 `json:"latest_block_hash"`
	LatestBlockHeight uint64    `json:"latest_block_height"`
	KnownPeers        []Peer    `json:"known_peers"`
}

// Set is a de-duplicated collection of known peers guarded by its own
// mutex — a third, narrowly-scoped lock, independent of and never held
// together with the blockchain or mempool mutexes (SPEC_FULL.md §5).
type Set struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

// NewSet constructs an empty peer set.
func NewSet() *Set {
	return &Set{peers: make(map[string]Peer)}
}

// Add registers p as known, returning true if it was newly added.
func (s *Set) Add(p Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.peers[p.Host]; ok {
		return false
	}
	s.peers[p.Host] = p
	return true
}

// Remove forgets a peer, e.g. after a transport error (spec.md §7 Transport).
func (s *Set) Remove(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, host)
}

// All returns every known peer.
func (s *Set) All() []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Len returns the number of known peers.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}
