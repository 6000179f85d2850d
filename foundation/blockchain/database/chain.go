package database

import (
	"fmt"
	"sync"

	"github.com/coreledger/node/foundation/blockchain/hash"
)

// Chain is the block tree: every block ever accepted, each annotated with
// its derived post-block State and its distance from genesis, plus the
// hash of the block at the tip of the longest chain (spec.md §3
// Blockchain, §4.3). It is guarded by a single mutex; this is one of the
// exactly two state locks in the node (the other is the mempool's) and the
// two are never held together (spec.md §5).
type Chain struct {
	mu      sync.RWMutex
	blocks  map[hash.H256]Block
	states  map[hash.H256]State
	heights map[hash.H256]uint64
	tip     hash.H256
	genesis hash.H256
}

// New constructs a Chain seeded with a genesis block and its initial state.
// The genesis block's parent must be the zero hash.
func New(genesisBlock Block, genesisState State) (*Chain, error) {
	if !genesisBlock.Header.Parent.IsZero() {
		return nil, fmt.Errorf("database: genesis block must have zero parent")
	}

	h := genesisBlock.Hash()

	c := &Chain{
		blocks:  map[hash.H256]Block{h: genesisBlock},
		states:  map[hash.H256]State{h: genesisState.Clone()},
		heights: map[hash.H256]uint64{h: 0},
		tip:     h,
		genesis: h,
	}
	return c, nil
}

// Tip returns the hash of the current longest-chain tip.
func (c *Chain) Tip() hash.H256 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}

// Genesis returns the genesis block's hash.
func (c *Chain) Genesis() hash.H256 {
	return c.genesis
}

// Height returns the distance of h from genesis, and whether h is known.
func (c *Chain) Height(h hash.H256) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	height, ok := c.heights[h]
	return height, ok
}

// Has reports whether a block with the given hash is already stored.
func (c *Chain) Has(h hash.H256) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.blocks[h]
	return ok
}

// Block returns the stored block for h.
func (c *Chain) Block(h hash.H256) (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.blocks[h]
	return b, ok
}

// StateAt returns the post-block State for h.
func (c *Chain) StateAt(h hash.H256) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[h]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// TipState returns the State at the current tip.
func (c *Chain) TipState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.states[c.tip].Clone()
}

// Insert validates and stores a new block (spec.md §4.3 Insert):
//
//   - ErrDuplicateBlock if the hash is already stored.
//   - ErrMissingParent if the parent's post-state is unknown (the block is
//     an orphan; the network worker is responsible for buffering it).
//   - ErrPoWUnsatisfied / ErrDifficultyMismatch for consensus-rule failures.
//   - Any ApplyBlock error for a failing state transition.
//
// On success the block is stored with its derived state and height, and
// the tip advances only if the new block's height strictly exceeds the
// current tip's height; ties leave the first-seen tip in place.
func (c *Chain) Insert(block Block) error {
	h := block.Hash()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.blocks[h]; ok {
		return ErrDuplicateBlock
	}

	parentState, ok := c.states[block.Header.Parent]
	if !ok {
		return ErrMissingParent
	}

	if !block.SatisfiesPoW() {
		return ErrPoWUnsatisfied
	}

	parentBlock := c.blocks[block.Header.Parent]
	if block.Header.Difficulty != parentBlock.Header.Difficulty {
		return ErrDifficultyMismatch
	}

	newState, err := ApplyBlock(parentState, block)
	if err != nil {
		return err
	}

	newHeight := c.heights[block.Header.Parent] + 1

	c.blocks[h] = block
	c.states[h] = newState
	c.heights[h] = newHeight

	if newHeight > c.heights[c.tip] {
		c.tip = h
	}

	return nil
}

// AllBlocksInLongestChain walks parent pointers from the tip back to
// genesis and returns them in genesis-first order.
func (c *Chain) AllBlocksInLongestChain() []hash.H256 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var chain []hash.H256
	cur := c.tip
	for {
		chain = append(chain, cur)
		if cur == c.genesis {
			break
		}
		cur = c.blocks[cur].Header.Parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
