package dag

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/ledger"
	"github.com/mosaicnetworks/hyperdag/src/locks"
)

// Block ingestion errors.
var (
	ErrBlockExists    = errors.New("block already known")
	ErrLockTimeout    = errors.New("timed out waiting for the DAG lock")
	ErrMissingParent  = errors.New("unknown parent block")
	ErrInvalidBlock   = errors.New("invalid block")
	ErrInvalidGenesis = errors.New("invalid genesis block")
)

// DAG is the set of accepted blocks.
type DAG struct {
	lock      *locks.RWMutex
	blocks    map[string]*Block
	tips      map[string]bool
	maxHeight uint64
	genesis   *Block
	emission  *Emission
	logger    *logrus.Entry
}

// Genesis returns the deterministic genesis block of an emission schedule, so
// that every node starts from the same root.
func Genesis(emission *Emission) *Block {
	return NewBlock(0, nil, ledger.DevAddress, ledger.DevAddress, nil, emission.GenesisTime)
}

// NewDAG creates a DAG holding only the genesis block.
func NewDAG(emission *Emission, logger *logrus.Entry) *DAG {
	if emission == nil {
		emission = DefaultEmission()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	genesis := Genesis(emission)

	return &DAG{
		lock:     locks.NewRWMutex(),
		blocks:   map[string]*Block{genesis.ID: genesis},
		tips:     map[string]bool{genesis.ID: true},
		genesis:  genesis,
		emission: emission,
		logger:   logger,
	}
}

// Emission returns the reward schedule.
func (d *DAG) Emission() *Emission {
	return d.emission
}

// GenesisBlock returns the root of the DAG.
func (d *DAG) GenesisBlock() *Block {
	return d.genesis
}

// AddBlock validates b, applies its transactions to utxos and inserts it. The
// write lock is acquired under ctx; if ctx ends first ErrLockTimeout is
// returned and nothing changes. Transactions are validated in order against
// an overlay of utxos and applied in one atomic batch.
func (d *DAG) AddBlock(ctx context.Context, b *Block, utxos ledger.UTXOStore) error {
	if err := d.lock.Lock(ctx); err != nil {
		return errors.Wrap(ErrLockTimeout, err.Error())
	}
	defer d.lock.Unlock()

	if _, ok := d.blocks[b.ID]; ok {
		return ErrBlockExists
	}

	if err := d.checkHeader(b); err != nil {
		return err
	}

	if len(b.Transactions) > 0 {
		err := utxos.View(func(r ledger.UTXOReader) error {
			overlay := ledger.NewOverlay(r)
			for i, tx := range b.Transactions {
				if tx.IsCoinbase() && i != 0 {
					return errors.Wrapf(ErrInvalidBlock, "coinbase %s is not the first transaction", tx.ID)
				}
				if err := tx.Verify(overlay, d.emission); err != nil {
					return errors.Wrapf(err, "transaction %s", tx.ID)
				}
				if err := overlay.Stage(tx); err != nil {
					return errors.Wrapf(err, "transaction %s", tx.ID)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if err := utxos.ApplyBatch(b.Transactions); err != nil {
			return err
		}
	}

	d.insert(b)

	d.logger.WithFields(logrus.Fields{
		"block":  b.ID,
		"height": b.Height,
		"txs":    len(b.Transactions),
	}).Debug("Block added")

	return nil
}

func (d *DAG) checkHeader(b *Block) error {
	for i, tx := range b.Transactions {
		if tx == nil {
			return errors.Wrapf(ErrInvalidBlock, "nil transaction at %d", i)
		}
	}
	if b.ComputeID() != b.ID {
		return errors.Wrap(ErrInvalidBlock, "id does not match content")
	}
	if !ledger.IsValidAddress(b.Validator) || !ledger.IsValidAddress(b.Miner) {
		return errors.Wrap(ErrInvalidBlock, "malformed validator or miner address")
	}
	if b.Height == 0 || len(b.Parents) == 0 {
		return ErrInvalidGenesis
	}

	var parentHeight uint64
	for _, p := range b.Parents {
		parent, ok := d.blocks[p]
		if !ok {
			return errors.Wrapf(ErrMissingParent, "%s", p)
		}
		if parent.Height > parentHeight {
			parentHeight = parent.Height
		}
	}
	if b.Height != parentHeight+1 {
		return errors.Wrapf(ErrInvalidBlock, "height %d does not follow parents at %d", b.Height, parentHeight)
	}
	return nil
}

func (d *DAG) insert(b *Block) {
	d.blocks[b.ID] = b
	for _, p := range b.Parents {
		delete(d.tips, p)
	}
	d.tips[b.ID] = true
	if b.Height > d.maxHeight {
		d.maxHeight = b.Height
	}
}

// HasBlock reports whether the block is known.
func (d *DAG) HasBlock(ctx context.Context, id string) (bool, error) {
	if err := d.lock.RLock(ctx); err != nil {
		return false, err
	}
	defer d.lock.RUnlock()
	_, ok := d.blocks[id]
	return ok, nil
}

// ReadLocked runs fn while holding the read lock. It implements ledger.Chain.
func (d *DAG) ReadLocked(ctx context.Context, fn func(ledger.RewardSchedule) error) error {
	if err := d.lock.RLock(ctx); err != nil {
		return errors.Wrap(ErrLockTimeout, err.Error())
	}
	defer d.lock.RUnlock()
	return fn(d.emission)
}

// Tips returns the ids of blocks without children, sorted.
func (d *DAG) Tips(ctx context.Context) ([]string, error) {
	if err := d.lock.RLock(ctx); err != nil {
		return nil, err
	}
	defer d.lock.RUnlock()

	res := make([]string, 0, len(d.tips))
	for id := range d.tips {
		res = append(res, id)
	}
	sort.Strings(res)
	return res, nil
}

// Stats returns the block count and the greatest height.
func (d *DAG) Stats(ctx context.Context) (blocks int, height uint64, err error) {
	if err := d.lock.RLock(ctx); err != nil {
		return 0, 0, err
	}
	defer d.lock.RUnlock()
	return len(d.blocks), d.maxHeight, nil
}

// StateSnapshot returns the blocks at or above fromHeight and the full UTXO
// set, read under the DAG read lock.
func (d *DAG) StateSnapshot(ctx context.Context, fromHeight uint64, utxos ledger.UTXOStore) (map[string]*Block, map[string]ledger.UTXO, error) {
	if err := d.lock.RLock(ctx); err != nil {
		return nil, nil, errors.Wrap(ErrLockTimeout, err.Error())
	}
	defer d.lock.RUnlock()

	blocks := make(map[string]*Block)
	for id, b := range d.blocks {
		if b.Height >= fromHeight {
			blocks[id] = b
		}
	}

	set, err := utxos.Snapshot()
	if err != nil {
		return nil, nil, err
	}

	return blocks, set, nil
}
