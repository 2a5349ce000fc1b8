package ledger

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
)

type wallet struct {
	key  *ecdsa.PrivateKey
	addr string
}

func newWallet(t testing.TB) wallet {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	return wallet{key: key, addr: keys.Address(&key.PublicKey)}
}

// fakeTxID returns a well formed transaction id made of a repeated character.
func fakeTxID(c string) string {
	return strings.Repeat(c, 64)
}

func fund(t testing.TB, store UTXOStore, owner string, txID string, amount uint64) Input {
	u := UTXO{Address: owner, Amount: amount, TxID: txID, OutputIndex: 0}
	if err := store.Insert(u); err != nil {
		t.Fatal(err)
	}
	return Input{TxID: txID, OutputIndex: 0}
}

type fixedReward struct {
	reward uint64
	err    error
}

func (f fixedReward) CalculateReward(uint64) (uint64, error) {
	return f.reward, f.err
}

type fakeChain struct {
	emission RewardSchedule
}

func (c fakeChain) ReadLocked(ctx context.Context, fn func(RewardSchedule) error) error {
	return fn(c.emission)
}

var errNoReward = errors.New("before genesis")

func fixedNow() time.Time {
	return time.Unix(1700000000, 0)
}

// newTransfer builds a signed transfer of amount to receiver with a developer
// fee output and a change output back to the sender.
func newTransfer(t testing.TB, w wallet, inputs []Input, receiver string, amount, fee, change uint64) *Transaction {
	outputs := []Output{{Address: receiver, Amount: amount}}
	if df := DevFee(amount); df > 0 {
		outputs = append(outputs, Output{Address: DevAddress, Amount: df})
	}
	if change > 0 {
		outputs = append(outputs, Output{Address: w.addr, Amount: change})
	}
	tx, err := NewTransaction(TxConfig{
		Sender:   w.addr,
		Receiver: receiver,
		Amount:   amount,
		Fee:      fee,
		Inputs:   inputs,
		Outputs:  outputs,
		Key:      w.key,
		Now:      fixedNow,
	})
	if err != nil {
		t.Fatal(err)
	}
	return tx
}
