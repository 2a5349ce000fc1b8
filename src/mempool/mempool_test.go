package mempool

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/common"
	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
	"github.com/mosaicnetworks/hyperdag/src/dag"
	"github.com/mosaicnetworks/hyperdag/src/ledger"
)

type wallet struct {
	key  *ecdsa.PrivateKey
	addr string
}

func newWallet(t *testing.T) wallet {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	return wallet{key: key, addr: keys.Address(&key.PublicKey)}
}

func transfer(t *testing.T, from wallet, in ledger.Input, to string, amount, change uint64) *ledger.Transaction {
	tx, err := ledger.NewTransaction(ledger.TxConfig{
		Sender:   from.addr,
		Receiver: to,
		Amount:   amount,
		Inputs:   []ledger.Input{in},
		Outputs: []ledger.Output{
			{Address: to, Amount: amount},
			{Address: ledger.DevAddress, Amount: ledger.DevFee(amount)},
			{Address: from.addr, Amount: change},
		},
		Key: from.key,
		Now: func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestAddTransaction(t *testing.T) {
	logger := common.NewTestEntry(t, logrus.DebugLevel)
	chain := dag.NewDAG(nil, logger)
	utxos := ledger.NewInmemUTXOStore()
	pool := NewPool(10, ledger.NewActivityWindow(0), logger)
	ctx := context.Background()

	alice := newWallet(t)
	bob := newWallet(t)

	utxos.Insert(ledger.UTXO{Address: alice.addr, Amount: 1000, TxID: strings.Repeat("a", 64)})
	in := ledger.Input{TxID: strings.Repeat("a", 64)}

	tx := transfer(t, alice, in, bob.addr, 100, 897)
	if err := pool.AddTransaction(ctx, tx, utxos, chain); err != nil {
		t.Fatal(err)
	}
	if pool.Len() != 1 {
		t.Fatalf("pool should hold the transaction")
	}

	if err := pool.AddTransaction(ctx, tx, utxos, chain); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate should be rejected, got %v", err)
	}

	conflict := transfer(t, alice, in, bob.addr, 200, 794)
	if err := pool.AddTransaction(ctx, conflict, utxos, chain); !errors.Is(err, ErrDoubleSpend) {
		t.Fatalf("conflicting spend should be rejected, got %v", err)
	}

	invalid := transfer(t, alice, in, bob.addr, 2000, 0)
	if err := pool.AddTransaction(ctx, invalid, utxos, chain); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("economic validation should run before admission, got %v", err)
	}

	if n := pool.RemoveIncluded([]*ledger.Transaction{tx}); n != 1 {
		t.Fatalf("RemoveIncluded should find the transaction")
	}
	if err := pool.AddTransaction(ctx, conflict, utxos, chain); err != nil {
		t.Fatalf("input should be free after removal: %v", err)
	}
	if got, ok := pool.Get(conflict.ID); !ok || got != conflict {
		t.Fatalf("Get should return the pooled transaction")
	}
}

func TestPoolLimits(t *testing.T) {
	logger := common.NewTestEntry(t, logrus.DebugLevel)
	chain := dag.NewDAG(nil, logger)
	utxos := ledger.NewInmemUTXOStore()
	pool := NewPool(1, nil, logger)
	ctx := context.Background()

	alice := newWallet(t)
	bob := newWallet(t)

	for _, c := range []string{"a", "b"} {
		utxos.Insert(ledger.UTXO{Address: alice.addr, Amount: 1000, TxID: strings.Repeat(c, 64)})
	}

	first := transfer(t, alice, ledger.Input{TxID: strings.Repeat("a", 64)}, bob.addr, 100, 897)
	second := transfer(t, alice, ledger.Input{TxID: strings.Repeat("b", 64)}, bob.addr, 100, 897)

	if err := pool.AddTransaction(ctx, first, utxos, chain); err != nil {
		t.Fatal(err)
	}
	if err := pool.AddTransaction(ctx, second, utxos, chain); !errors.Is(err, ErrFull) {
		t.Fatalf("full pool should reject, got %v", err)
	}

	cb, err := ledger.NewTransaction(ledger.TxConfig{
		Sender:   alice.addr,
		Receiver: alice.addr,
		Amount:   1,
		Outputs:  []ledger.Output{{Address: alice.addr, Amount: 1}},
		Key:      alice.key,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := pool.AddTransaction(ctx, cb, utxos, chain); !errors.Is(err, ErrCoinbase) {
		t.Fatalf("coinbase should be rejected, got %v", err)
	}
}

func TestRemoveIncluded(t *testing.T) {
	logger := common.NewTestEntry(t, logrus.DebugLevel)
	chain := dag.NewDAG(nil, logger)
	utxos := ledger.NewInmemUTXOStore()
	pool := NewPool(10, nil, logger)
	ctx := context.Background()

	alice := newWallet(t)
	bob := newWallet(t)

	for _, c := range []string{"a", "b"} {
		utxos.Insert(ledger.UTXO{Address: alice.addr, Amount: 1000, TxID: strings.Repeat(c, 64)})
	}
	inA := ledger.Input{TxID: strings.Repeat("a", 64)}
	inB := ledger.Input{TxID: strings.Repeat("b", 64)}

	pooled := transfer(t, alice, inA, bob.addr, 100, 897)
	unrelated := transfer(t, alice, inB, bob.addr, 100, 897)
	for _, tx := range []*ledger.Transaction{pooled, unrelated} {
		if err := pool.AddTransaction(ctx, tx, utxos, chain); err != nil {
			t.Fatal(err)
		}
	}

	// A block spends inA with a transaction this pool never saw.
	included := transfer(t, alice, inA, bob.addr, 200, 794)

	if n := pool.RemoveIncluded([]*ledger.Transaction{included, nil}); n != 1 {
		t.Fatalf("expected the conflicting transaction to be evicted, got %d", n)
	}
	if _, ok := pool.Get(pooled.ID); ok {
		t.Fatalf("transaction spending a block input should be gone")
	}
	if _, ok := pool.Get(unrelated.ID); !ok {
		t.Fatalf("unrelated transaction should stay pooled")
	}

	if n := pool.RemoveIncluded([]*ledger.Transaction{unrelated}); n != 1 {
		t.Fatalf("included transaction should be evicted, got %d", n)
	}
	if pool.Len() != 0 {
		t.Fatalf("pool should be empty, has %d", pool.Len())
	}
}
