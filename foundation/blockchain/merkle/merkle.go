// Package merkle implements a balanced binary Merkle tree over any item
// that can produce its own H256 leaf hash.
package merkle

import (
	"fmt"

	"github.com/coreledger/node/foundation/blockchain/hash"
)

// Hashable is implemented by anything that can be a Merkle leaf.
type Hashable interface {
	Hash() hash.H256
}

// Tree is a balanced binary Merkle tree built bottom-up over a sequence of
// leaf hashes. Odd levels duplicate their last entry before pairing, per
// the Bitcoin-style convention also used by the example corpus
// (toole-brendan/shell blockchain/merkle.go: BuildMerkleTreeStore).
type Tree[T Hashable] struct {
	values []T
	// levels[0] holds the leaf hashes; the last level holds the single root.
	levels [][]hash.H256
}

// NewTree builds a Merkle tree over values in order. An empty slice yields a
// tree whose Root is the canonical all-zero H256 (spec.md §4.1 convention).
func NewTree[T Hashable](values []T) (*Tree[T], error) {
	leaves := make([]hash.H256, len(values))
	for i, v := range values {
		leaves[i] = v.Hash()
	}

	t := &Tree[T]{values: values}
	if len(leaves) == 0 {
		t.levels = [][]hash.H256{{hash.Zero}}
		return t, nil
	}

	t.levels = append(t.levels, leaves)
	level := leaves
	for len(level) > 1 {
		level = nextLevel(level)
		t.levels = append(t.levels, level)
	}

	return t, nil
}

// nextLevel pairs up a level's hashes into its parent level, duplicating the
// final element when the level has odd length.
func nextLevel(level []hash.H256) []hash.H256 {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}

	parent := make([]hash.H256, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		parent[i/2] = combine(level[i], level[i+1])
	}
	return parent
}

// combine returns SHA-256(left || right).
func combine(left, right hash.H256) hash.H256 {
	buf := make([]byte, 0, 2*hash.Size)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return hash.FromBytes(buf)
}

// Root returns the tree's top-level hash.
func (t *Tree[T]) Root() hash.H256 {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Values returns the leaf items in insertion order.
func (t *Tree[T]) Values() []T {
	return t.values
}

// LeafCount returns the number of original (non-duplicated) leaves.
func (t *Tree[T]) LeafCount() int {
	return len(t.values)
}

// Proof returns the ordered sibling path for the leaf at index, bottom up.
// When a level's final element was duplicated to pair with itself, the
// "sibling" at that level is the element's own hash.
func (t *Tree[T]) Proof(index int) ([]hash.H256, error) {
	if index < 0 || index >= len(t.values) {
		return nil, fmt.Errorf("merkle: index %d out of range [0,%d)", index, len(t.values))
	}

	var proof []hash.H256
	idx := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]

		siblingIdx := idx ^ 1
		if siblingIdx >= len(nodes) {
			// The level was odd-length; the duplicated sibling is the node
			// itself.
			proof = append(proof, nodes[idx])
		} else {
			proof = append(proof, nodes[siblingIdx])
		}

		idx /= 2
	}

	return proof, nil
}

// Verify recomputes a Merkle root from a leaf datum and its proof, folding
// siblings in the same left/right orientation Proof observed, and reports
// whether the result matches root. It fails closed if index is out of
// range for leafCount.
func Verify(root hash.H256, datum hash.H256, proof []hash.H256, index int, leafCount int) bool {
	if index < 0 || index >= leafCount {
		return false
	}

	current := datum
	idx := index
	for _, sibling := range proof {
		if idx%2 == 0 {
			current = combine(current, sibling)
		} else {
			current = combine(sibling, current)
		}
		idx /= 2
	}

	return current == root
}
