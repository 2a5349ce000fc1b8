package hyperdag

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/dag"
	"github.com/mosaicnetworks/hyperdag/src/gossip"
	"github.com/mosaicnetworks/hyperdag/src/ledger"
	"github.com/mosaicnetworks/hyperdag/src/mempool"
	"github.com/mosaicnetworks/hyperdag/src/node/command"
)

const syncQueueSize = 64

// syncer is the orchestrator of the node: it reconciles state snapshots
// received from peers with the local DAG, outside of the event loop.
type syncer struct {
	dag         *dag.DAG
	utxos       ledger.UTXOStore
	pool        *mempool.Pool
	lockTimeout time.Duration
	queue       *command.Queue
	logger      *logrus.Entry
}

func newSyncer(d *dag.DAG, utxos ledger.UTXOStore, pool *mempool.Pool, lockTimeout time.Duration, logger *logrus.Entry) *syncer {
	if lockTimeout <= 0 {
		lockTimeout = gossip.DefaultBlockLockTimeout
	}
	return &syncer{
		dag:         d,
		utxos:       utxos,
		pool:        pool,
		lockTimeout: lockTimeout,
		queue:       command.NewQueue(syncQueueSize),
		logger:      logger,
	}
}

// Submit implements node.Orchestrator. It never blocks the event loop; when
// the worker is behind, the snapshot is dropped and a later one will do.
func (s *syncer) Submit(ctx context.Context, cmd command.Command) error {
	if err := s.queue.TrySubmit(cmd); err != nil {
		s.logger.WithField("command", cmd.Kind()).Warn("Sync queue full, command dropped")
	}
	return nil
}

func (s *syncer) run(ctx context.Context) {
	for {
		select {
		case cmd := <-s.queue.C():
			s.handle(ctx, cmd)
		case <-ctx.Done():
			return
		}
	}
}

func (s *syncer) handle(ctx context.Context, cmd command.Command) {
	switch c := cmd.(type) {
	case command.SyncResponse:
		added := s.applySnapshot(ctx, c.Blocks)
		s.logger.WithFields(logrus.Fields{
			"peer":   c.From,
			"blocks": len(c.Blocks),
			"added":  added,
		}).Debug("Applied state snapshot")
	case command.RequestBlock:
		// No block-request payload exists on the wire; missing blocks arrive
		// with the next state snapshot.
		s.logger.WithFields(logrus.Fields{
			"peer":  c.PeerID,
			"block": c.BlockID,
		}).Debug("Block request ignored")
	}
}

// applySnapshot inserts the unknown blocks of a snapshot in height order and
// returns how many were added. Blocks go through the same validation as
// gossiped ones; the snapshot's UTXO set is not trusted.
func (s *syncer) applySnapshot(ctx context.Context, blocks map[string]*dag.Block) int {
	ordered := make([]*dag.Block, 0, len(blocks))
	for _, b := range blocks {
		if b != nil {
			ordered = append(ordered, b)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Height != ordered[j].Height {
			return ordered[i].Height < ordered[j].Height
		}
		return ordered[i].ID < ordered[j].ID
	})

	added := 0
	for _, b := range ordered {
		if b.Height == 0 {
			continue
		}

		lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
		err := s.dag.AddBlock(lctx, b, s.utxos)
		cancel()

		switch errors.Cause(err) {
		case nil:
			added++
			s.pool.RemoveIncluded(b.Transactions)
		case dag.ErrBlockExists:
		default:
			s.logger.WithError(err).WithField("block", b.ID).Debug("Snapshot block rejected")
		}

		if ctx.Err() != nil {
			break
		}
	}

	return added
}
