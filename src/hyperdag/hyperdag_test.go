package hyperdag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/hyperdag/src/config"
	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
	"github.com/mosaicnetworks/hyperdag/src/dag"
	"github.com/mosaicnetworks/hyperdag/src/ledger"
	"github.com/mosaicnetworks/hyperdag/src/net"
	"github.com/mosaicnetworks/hyperdag/src/node/command"
)

var testEmission = dag.Emission{InitialReward: 100, HalvingInterval: 1000, GenesisTime: 1000}

func newTestEngine(t *testing.T, network *net.InmemNetwork, id string, tweak func(*config.Config)) *Hyperdag {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.MeshInterval = 20 * time.Millisecond
	conf.PersistInterval = 20 * time.Millisecond
	if tweak != nil {
		tweak(conf)
	}

	emission := testEmission

	h := New(conf)
	h.Substrate = network.NewSubstrate(id)
	h.DAG = dag.NewDAG(&emission, conf.Logger().WithField("node", id))
	return h
}

func start(t *testing.T, h *Hyperdag) {
	require.NoError(t, h.Init())

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		h.Shutdown()
	})
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", what)
}

func coinbaseBlock(t *testing.T, h *Hyperdag) *dag.Block {
	key := h.Config.Key
	addr := keys.Address(&key.PublicKey)

	cb, err := ledger.NewTransaction(ledger.TxConfig{
		Sender:   addr,
		Receiver: addr,
		Amount:   100,
		Outputs:  []ledger.Output{{Address: addr, Amount: 100}},
		Key:      key,
		Now:      func() time.Time { return time.Unix(1500, 0) },
	})
	require.NoError(t, err)

	return dag.NewBlock(1, []string{h.DAG.GenesisBlock().ID}, addr, addr, []*ledger.Transaction{cb}, 1500)
}

func TestInitCreatesAndReusesKey(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestEngine(t, network, "a", nil)
	require.NoError(t, a.Init())

	_, err := os.Stat(a.Config.Keyfile())
	require.NoError(t, err, "key file should be written")

	a.Shutdown()

	b := newTestEngine(t, network, "b", func(c *config.Config) {
		c.SetDataDir(a.Config.DataDir)
	})
	require.NoError(t, b.Init())
	defer b.Shutdown()

	assert.Equal(t,
		keys.PrivateKeyHex(a.Config.Key),
		keys.PrivateKeyHex(b.Config.Key),
		"existing key should be read back")
}

func TestInitRefusesMissingSecret(t *testing.T) {
	h := newTestEngine(t, net.NewInmemNetwork(), "a", func(c *config.Config) {
		c.MACSecret = ""
	})

	err := h.Init()
	assert.Equal(t, config.ErrConfig, errors.Cause(err))
}

func TestInitWithBadgerStore(t *testing.T) {
	h := newTestEngine(t, net.NewInmemNetwork(), "a", func(c *config.Config) {
		c.Store = true
	})
	require.NoError(t, h.Init())
	defer h.Shutdown()

	_, ok := h.UTXOs.(*ledger.BadgerUTXOStore)
	assert.True(t, ok, "store should be badger backed")
}

func TestBlockPropagation(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestEngine(t, network, "a", nil)
	b := newTestEngine(t, network, "b", nil)
	start(t, a)
	start(t, b)

	require.NoError(t, a.Substrate.Dial(context.Background(), "b"))
	eventually(t, "peers connected", func() bool {
		return len(a.Node.GetPeers()) == 1 && len(b.Node.GetPeers()) == 1
	})

	ctx := context.Background()
	block := coinbaseBlock(t, a)
	require.NoError(t, a.Submit(ctx, command.BroadcastBlock{Block: block}))

	eventually(t, "block reaches b", func() bool {
		ok, _ := b.DAG.HasBlock(ctx, block.ID)
		return ok
	})
	assert.Equal(t, 1, b.UTXOs.Len())
}

func TestStateSync(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestEngine(t, network, "a", nil)
	b := newTestEngine(t, network, "b", nil)
	start(t, a)
	start(t, b)

	ctx := context.Background()
	block := coinbaseBlock(t, a)
	require.NoError(t, a.DAG.AddBlock(ctx, block, a.UTXOs))

	require.NoError(t, b.Substrate.Dial(ctx, "a"))
	eventually(t, "peers connected", func() bool {
		return len(b.Node.GetPeers()) == 1
	})

	require.NoError(t, b.Submit(ctx, command.RequestState{}))

	eventually(t, "b catches up", func() bool {
		ok, _ := b.DAG.HasBlock(ctx, block.ID)
		return ok
	})
}

func TestServiceStats(t *testing.T) {
	network := net.NewInmemNetwork()
	h := newTestEngine(t, network, "a", func(c *config.Config) {
		c.NoService = false
		c.ServiceAddr = "127.0.0.1:0"
	})
	start(t, h)
	require.NotNil(t, h.Service)

	h.Blacklist.Add("mallory", "test")

	rec := httptest.NewRecorder()
	h.Service.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, "a", stats["id"])
	assert.Equal(t, "1", stats["blocks"])
	assert.Equal(t, "1", stats["blacklisted"])

	rec = httptest.NewRecorder()
	h.Service.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
