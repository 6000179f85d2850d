package miner

import (
	"context"

	"github.com/coreledger/node/foundation/blockchain/database"
	"github.com/coreledger/node/foundation/blockchain/network"
	"github.com/coreledger/node/foundation/blockchain/peer"
	"go.uber.org/zap"
)

// RunCommitter is the miner-committer thread: it consumes every block the
// Miner publishes over results and hands it to the network worker's
// ordinary ingestion pipeline, so a locally mined block is inserted and
// gossiped exactly the way a peer-supplied one is (spec.md §9: "miner →
// committer via a channel is already correct"). It returns when results is
// closed or ctx is cancelled.
func RunCommitter(ctx context.Context, results <-chan database.Block, worker *network.Worker, log *zap.SugaredLogger) {
	for {
		select {
		case block, ok := <-results:
			if !ok {
				return
			}
			if err := worker.HandleBlock(ctx, block, peer.Peer{}); err != nil {
				log.Warnw("committer: mined block not accepted", "hash", block.Hash().Hex(), "error", err)
				continue
			}
			log.Infow("committer: mined block committed", "hash", block.Hash().Hex())

		case <-ctx.Done():
			return
		}
	}
}
