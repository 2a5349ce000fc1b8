// Package mempool holds validated transactions waiting to be included in a
// block.
package mempool

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/ledger"
)

// DefaultMaxSize bounds the pool when no size is configured.
const DefaultMaxSize = 50000

// Admission errors.
var (
	ErrDuplicate   = errors.New("transaction already in mempool")
	ErrDoubleSpend = errors.New("input already spent by a pooled transaction")
	ErrFull        = errors.New("mempool is full")
	ErrCoinbase    = errors.New("coinbase transactions are only accepted in blocks")
)

// Pool is the mempool. Admission validates a transaction under the DAG read
// lock, then the UTXO read lock, and only then takes the pool lock.
type Pool struct {
	mu       sync.RWMutex
	txs      map[string]*ledger.Transaction
	spends   map[string]string
	maxSize  int
	activity *ledger.ActivityWindow
	logger   *logrus.Entry
}

// NewPool creates an empty pool. activity, if not nil, records admitted
// transactions and serves as the anomaly baseline.
func NewPool(maxSize int, activity *ledger.ActivityWindow, logger *logrus.Entry) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Pool{
		txs:      make(map[string]*ledger.Transaction),
		spends:   make(map[string]string),
		maxSize:  maxSize,
		activity: activity,
		logger:   logger,
	}
}

// AddTransaction validates tx against the chain and the UTXO set and admits
// it. Transactions spending an input already claimed by a pooled transaction
// are rejected.
func (p *Pool) AddTransaction(ctx context.Context, tx *ledger.Transaction, utxos ledger.UTXOStore, chain ledger.Chain) error {
	if tx.IsCoinbase() {
		return ErrCoinbase
	}

	return chain.ReadLocked(ctx, func(emission ledger.RewardSchedule) error {
		return utxos.View(func(r ledger.UTXOReader) error {
			if err := tx.Verify(r, emission); err != nil {
				return err
			}
			return p.admit(tx)
		})
	})
}

func (p *Pool) admit(tx *ledger.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.txs[tx.ID]; ok {
		return ErrDuplicate
	}
	for _, in := range tx.Inputs {
		if other, ok := p.spends[in.Key()]; ok {
			return errors.Wrapf(ErrDoubleSpend, "%s claimed by %s", in.Key(), other)
		}
	}
	if len(p.txs) >= p.maxSize {
		return ErrFull
	}

	if score, err := tx.DetectAnomaly(p.activity); err != nil {
		p.logger.WithFields(logrus.Fields{
			"tx":    tx.ID,
			"score": score,
		}).Warn("Admitting anomalous transaction")
	}

	p.txs[tx.ID] = tx
	for _, in := range tx.Inputs {
		p.spends[in.Key()] = tx.ID
	}
	if p.activity != nil {
		p.activity.Record(tx.ID, time.Now(), tx.Amount)
	}

	return nil
}

// RemoveIncluded evicts the transactions of an accepted block, and every
// pooled transaction that claims an input the block spent. It returns how
// many were evicted.
func (p *Pool) RemoveIncluded(txs []*ledger.Transaction) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		if p.evict(tx.ID) {
			n++
		}
		for _, in := range tx.Inputs {
			if other, ok := p.spends[in.Key()]; ok && p.evict(other) {
				p.logger.WithFields(logrus.Fields{
					"tx":    other,
					"input": in.Key(),
				}).Debug("Evicting transaction spent by block")
				n++
			}
		}
	}
	return n
}

func (p *Pool) evict(id string) bool {
	tx, ok := p.txs[id]
	if !ok {
		return false
	}
	for _, in := range tx.Inputs {
		if p.spends[in.Key()] == id {
			delete(p.spends, in.Key())
		}
	}
	delete(p.txs, id)
	return true
}

// Get returns a pooled transaction.
func (p *Pool) Get(id string) (*ledger.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx, ok := p.txs[id]
	return tx, ok
}

// Len returns the number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Transactions returns the pooled transactions, oldest first.
func (p *Pool) Transactions() []*ledger.Transaction {
	p.mu.RLock()
	res := make([]*ledger.Transaction, 0, len(p.txs))
	for _, tx := range p.txs {
		res = append(res, tx)
	}
	p.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].Timestamp == res[j].Timestamp {
			return res[i].ID < res[j].ID
		}
		return res[i].Timestamp < res[j].Timestamp
	})
	return res
}
