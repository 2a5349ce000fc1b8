package gossip

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/credential"
	"github.com/mosaicnetworks/hyperdag/src/dag"
	"github.com/mosaicnetworks/hyperdag/src/ledger"
	"github.com/mosaicnetworks/hyperdag/src/node/command"
	"github.com/mosaicnetworks/hyperdag/src/wire"
)

// DAG is the block store consulted by the handlers.
type DAG interface {
	ledger.Chain
	AddBlock(ctx context.Context, b *dag.Block, utxos ledger.UTXOStore) error
	StateSnapshot(ctx context.Context, fromHeight uint64, utxos ledger.UTXOStore) (map[string]*dag.Block, map[string]ledger.UTXO, error)
}

// Mempool admits gossiped transactions.
type Mempool interface {
	AddTransaction(ctx context.Context, tx *ledger.Transaction, utxos ledger.UTXOStore, chain ledger.Chain) error
	RemoveIncluded(txs []*ledger.Transaction) int
}

// CredentialStore verifies and keeps carbon credentials.
type CredentialStore interface {
	VerifyAndStore(c *credential.Credential) error
}

// CommandSink accepts commands for the node's command processor.
type CommandSink interface {
	Submit(ctx context.Context, cmd command.Command) error
}

// Handlers dispatches each payload variant to its owner.
type Handlers struct {
	DAG              DAG
	Mempool          Mempool
	UTXOs            ledger.UTXOStore
	Credentials      CredentialStore
	Proposals        *dag.Proposals
	Commands         CommandSink
	BlockLockTimeout time.Duration
	Logger           *logrus.Entry
}

// Dispatch implements Dispatcher.
func (h *Handlers) Dispatch(ctx context.Context, from string, payload wire.Payload) error {
	switch p := payload.(type) {
	case wire.BlockPayload:
		return h.handleBlock(ctx, from, p.Block)
	case wire.TransactionPayload:
		return h.handleTransaction(ctx, p.Transaction)
	case wire.StatePayload:
		return h.Commands.Submit(ctx, command.SyncResponse{
			From:   from,
			Blocks: p.Blocks,
			UTXOs:  p.UTXOs,
		})
	case wire.StateRequestPayload:
		return h.handleStateRequest(ctx, from)
	case wire.CredentialPayload:
		return h.Credentials.VerifyAndStore(p.Credential)
	default:
		return fmt.Errorf("unhandled payload %T", payload)
	}
}

func (h *Handlers) handleBlock(ctx context.Context, from string, b *dag.Block) error {
	if !ledger.IsValidAddress(b.Validator) || !ledger.IsValidAddress(b.Miner) {
		return errors.Wrap(dag.ErrInvalidBlock, "malformed validator or miner address")
	}

	timeout := h.BlockLockTimeout
	if timeout <= 0 {
		timeout = DefaultBlockLockTimeout
	}
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := h.Logger.WithFields(logrus.Fields{
		"peer":  from,
		"block": b.ID,
	})

	err := h.DAG.AddBlock(lockCtx, b, h.UTXOs)
	switch {
	case errors.Is(err, dag.ErrBlockExists):
		logger.Debug("Skipping known block")
		return nil
	case errors.Is(err, dag.ErrLockTimeout):
		logger.Warn("Dropping block, DAG lock busy")
		return err
	case err != nil:
		return err
	}

	if evicted := h.Proposals.Push(b); evicted > 0 {
		logger.WithField("evicted", evicted).Debug("Proposal list full")
	}
	h.Mempool.RemoveIncluded(b.Transactions)

	logger.WithField("height", b.Height).Info("Block accepted")
	return nil
}

func (h *Handlers) handleTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if !ledger.IsValidAddress(tx.Sender) || !ledger.IsValidAddress(tx.Receiver) {
		return errors.Wrap(ledger.ErrInvalidAddress, "sender or receiver")
	}
	if !tx.IsCoinbase() && tx.Amount == 0 {
		return errors.Wrap(ledger.ErrInvalidStructure, "transfer amount must be positive")
	}
	return h.Mempool.AddTransaction(ctx, tx, h.UTXOs, h.DAG)
}

func (h *Handlers) handleStateRequest(ctx context.Context, from string) error {
	blocks, utxos, err := h.DAG.StateSnapshot(ctx, 0, h.UTXOs)
	if err != nil {
		return err
	}

	h.Logger.WithFields(logrus.Fields{
		"peer":   from,
		"blocks": len(blocks),
		"utxos":  len(utxos),
	}).Debug("Answering state request")

	return h.Commands.Submit(ctx, command.BroadcastState{
		Blocks: blocks,
		UTXOs:  utxos,
	})
}
