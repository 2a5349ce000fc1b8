package gossip

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/hyperdag/src/common"
	"github.com/mosaicnetworks/hyperdag/src/credential"
	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
	"github.com/mosaicnetworks/hyperdag/src/dag"
	"github.com/mosaicnetworks/hyperdag/src/ledger"
	"github.com/mosaicnetworks/hyperdag/src/mempool"
	"github.com/mosaicnetworks/hyperdag/src/node/command"
	"github.com/mosaicnetworks/hyperdag/src/wire"
)

type handlersFixture struct {
	handlers    *Handlers
	dag         *dag.DAG
	pool        *mempool.Pool
	utxos       *ledger.InmemUTXOStore
	credentials *credential.Store
	proposals   *dag.Proposals
	queue       *command.Queue
	key         *ecdsa.PrivateKey
	addr        string
}

func newHandlersFixture(t *testing.T) *handlersFixture {
	logger := common.NewTestEntry(t, logrus.DebugLevel)
	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)

	f := &handlersFixture{
		dag:         dag.NewDAG(&dag.Emission{InitialReward: 100, HalvingInterval: 1000, GenesisTime: 1000}, logger),
		pool:        mempool.NewPool(10, ledger.NewActivityWindow(0), logger),
		utxos:       ledger.NewInmemUTXOStore(),
		credentials: credential.NewStore(),
		proposals:   dag.NewProposals(5),
		queue:       command.NewQueue(4),
		key:         key,
		addr:        keys.Address(&key.PublicKey),
	}
	f.handlers = &Handlers{
		DAG:         f.dag,
		Mempool:     f.pool,
		UTXOs:       f.utxos,
		Credentials: f.credentials,
		Proposals:   f.proposals,
		Commands:    f.queue,
		Logger:      logger,
	}
	return f
}

func (f *handlersFixture) coinbaseBlock(t *testing.T) *dag.Block {
	cb, err := ledger.NewTransaction(ledger.TxConfig{
		Sender:   f.addr,
		Receiver: f.addr,
		Amount:   100,
		Outputs:  []ledger.Output{{Address: f.addr, Amount: 100}},
		Key:      f.key,
		Now:      func() time.Time { return time.Unix(1500, 0) },
	})
	require.NoError(t, err)
	return dag.NewBlock(1, []string{f.dag.GenesisBlock().ID}, f.addr, f.addr, []*ledger.Transaction{cb}, 1500)
}

func TestDispatchBlock(t *testing.T) {
	f := newHandlersFixture(t)
	ctx := context.Background()
	b := f.coinbaseBlock(t)

	require.NoError(t, f.handlers.Dispatch(ctx, "peerA", wire.BlockPayload{Block: b}))
	assert.Equal(t, 1, f.proposals.Len())
	assert.Equal(t, 1, f.utxos.Len())

	// A block we already hold is skipped silently.
	require.NoError(t, f.handlers.Dispatch(ctx, "peerB", wire.BlockPayload{Block: b}))
	assert.Equal(t, 1, f.proposals.Len())
}

func TestDispatchBlockRejectsBadAddresses(t *testing.T) {
	f := newHandlersFixture(t)
	b := f.coinbaseBlock(t)
	b.Miner = "not-an-address"

	err := f.handlers.Dispatch(context.Background(), "peerA", wire.BlockPayload{Block: b})
	assert.ErrorIs(t, err, dag.ErrInvalidBlock)
	assert.Equal(t, 0, f.proposals.Len())
}

func TestDispatchBlockRemovesIncludedTransactions(t *testing.T) {
	f := newHandlersFixture(t)
	ctx := context.Background()

	b := f.coinbaseBlock(t)
	require.NoError(t, f.handlers.Dispatch(ctx, "peerA", wire.BlockPayload{Block: b}))

	in := ledger.Input{TxID: b.Transactions[0].ID}
	receiver := strings.Repeat("b", 64)
	tx, err := ledger.NewTransaction(ledger.TxConfig{
		Sender:   f.addr,
		Receiver: receiver,
		Amount:   50,
		Inputs:   []ledger.Input{in},
		Outputs: []ledger.Output{
			{Address: receiver, Amount: 50},
			{Address: ledger.DevAddress, Amount: ledger.DevFee(50)},
			{Address: f.addr, Amount: 100 - 50 - ledger.DevFee(50)},
		},
		Key: f.key,
		Now: func() time.Time { return time.Unix(1600, 0) },
	})
	require.NoError(t, err)

	require.NoError(t, f.handlers.Dispatch(ctx, "peerA", wire.TransactionPayload{Transaction: tx}))
	assert.Equal(t, 1, f.pool.Len())

	next := dag.NewBlock(2, []string{b.ID}, f.addr, f.addr, []*ledger.Transaction{tx}, 1600)
	require.NoError(t, f.handlers.Dispatch(ctx, "peerA", wire.BlockPayload{Block: next}))
	assert.Equal(t, 0, f.pool.Len())
}

func TestDispatchTransactionChecks(t *testing.T) {
	f := newHandlersFixture(t)
	ctx := context.Background()

	tx := &ledger.Transaction{Sender: f.addr, Receiver: "nope", Amount: 1, Inputs: []ledger.Input{{TxID: f.addr}}}
	err := f.handlers.Dispatch(ctx, "peerA", wire.TransactionPayload{Transaction: tx})
	assert.ErrorIs(t, err, ledger.ErrInvalidAddress)

	tx = &ledger.Transaction{Sender: f.addr, Receiver: f.addr, Amount: 0, Inputs: []ledger.Input{{TxID: f.addr}}}
	err = f.handlers.Dispatch(ctx, "peerA", wire.TransactionPayload{Transaction: tx})
	assert.ErrorIs(t, err, ledger.ErrInvalidStructure)
	assert.Equal(t, 0, f.pool.Len())
}

func TestDispatchState(t *testing.T) {
	f := newHandlersFixture(t)
	ctx := context.Background()

	blocks := map[string]*dag.Block{"x": f.dag.GenesisBlock()}
	require.NoError(t, f.handlers.Dispatch(ctx, "peerA", wire.StatePayload{Blocks: blocks}))

	cmd := <-f.queue.C()
	sync, ok := cmd.(command.SyncResponse)
	require.True(t, ok, "expected a sync response, got %T", cmd)
	assert.Equal(t, "peerA", sync.From)
	assert.Len(t, sync.Blocks, 1)
}

func TestDispatchStateRequest(t *testing.T) {
	f := newHandlersFixture(t)
	ctx := context.Background()

	require.NoError(t, f.handlers.Dispatch(ctx, "peerA", wire.BlockPayload{Block: f.coinbaseBlock(t)}))
	require.NoError(t, f.handlers.Dispatch(ctx, "peerA", wire.StateRequestPayload{}))

	cmd := <-f.queue.C()
	state, ok := cmd.(command.BroadcastState)
	require.True(t, ok, "expected a state broadcast, got %T", cmd)
	assert.Len(t, state.Blocks, 2)
	assert.Len(t, state.UTXOs, 1)
}

func TestDispatchCredential(t *testing.T) {
	f := newHandlersFixture(t)

	c, err := credential.New(f.key, f.addr, "reforestation", 12, time.Unix(1700000000, 0))
	require.NoError(t, err)

	require.NoError(t, f.handlers.Dispatch(context.Background(), "peerA", wire.CredentialPayload{Credential: c}))
	assert.Equal(t, 1, f.credentials.Len())

	err = f.handlers.Dispatch(context.Background(), "peerA", wire.CredentialPayload{Credential: c})
	assert.ErrorIs(t, err, credential.ErrDuplicate)
}
