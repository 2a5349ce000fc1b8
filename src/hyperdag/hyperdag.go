package hyperdag

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/config"
	"github.com/mosaicnetworks/hyperdag/src/credential"
	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
	"github.com/mosaicnetworks/hyperdag/src/dag"
	"github.com/mosaicnetworks/hyperdag/src/gossip"
	"github.com/mosaicnetworks/hyperdag/src/ledger"
	"github.com/mosaicnetworks/hyperdag/src/mempool"
	"github.com/mosaicnetworks/hyperdag/src/metrics"
	"github.com/mosaicnetworks/hyperdag/src/net"
	"github.com/mosaicnetworks/hyperdag/src/node"
	"github.com/mosaicnetworks/hyperdag/src/node/command"
	"github.com/mosaicnetworks/hyperdag/src/peers"
	"github.com/mosaicnetworks/hyperdag/src/ratelimit"
	"github.com/mosaicnetworks/hyperdag/src/service"
)

// Hyperdag is a full node. Fields set before Init, like Substrate or
// Registry, are used instead of the defaults.
type Hyperdag struct {
	Config *config.Config

	Substrate   net.Substrate
	UTXOs       ledger.UTXOStore
	DAG         *dag.DAG
	Mempool     *mempool.Pool
	Credentials *credential.Store
	Blacklist   *ratelimit.Blacklist
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Node        *node.Node
	Service     *service.Service

	commands *command.Queue
	syncer   *syncer
	logger   *logrus.Entry

	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// New creates a Hyperdag engine. Call Init before Run.
func New(conf *config.Config) *Hyperdag {
	return &Hyperdag{
		Config: conf,
	}
}

// Init validates the configuration and builds every component. It dials the
// cached and bootstrap peers.
func (h *Hyperdag) Init() error {
	h.logger = h.Config.Logger()

	if err := h.Config.Validate(); err != nil {
		return err
	}

	if err := h.initKey(); err != nil {
		return err
	}

	if err := h.initStore(); err != nil {
		return err
	}

	h.initLedger()

	if err := h.initSubstrate(); err != nil {
		return err
	}

	if err := h.initNode(); err != nil {
		return err
	}

	h.initService()

	return nil
}

func (h *Hyperdag) initKey() error {
	if h.Config.Key != nil {
		return nil
	}

	keyfile := keys.NewSimpleKeyfile(h.Config.Keyfile())

	privKey, err := keyfile.ReadKey()
	if err == nil {
		h.Config.Key = privKey
		return nil
	}
	if !os.IsNotExist(errors.Cause(err)) {
		return errors.Wrapf(err, "reading key from %s", h.Config.Keyfile())
	}

	h.logger.WithField("path", h.Config.Keyfile()).Warn("No key file, generating a new key")

	privKey, err = keys.GenerateECDSAKey()
	if err != nil {
		return err
	}

	if err := keyfile.WriteKey(privKey); err != nil {
		return err
	}

	h.logger.WithField("address", keys.Address(&privKey.PublicKey)).Info("Created a new key")

	h.Config.Key = privKey

	return nil
}

func (h *Hyperdag) initStore() error {
	if h.UTXOs != nil {
		return nil
	}

	if !h.Config.Store {
		h.UTXOs = ledger.NewInmemUTXOStore()
		h.logger.Debug("created new in-mem UTXO store")
		return nil
	}

	h.logger.WithField("path", h.Config.DatabaseDir).Debug("Attempting to load or create database")

	store, err := ledger.NewBadgerUTXOStore(h.Config.DatabaseDir, h.logger)
	if err != nil {
		return errors.Wrap(err, "opening UTXO database")
	}

	h.UTXOs = store

	return nil
}

func (h *Hyperdag) initLedger() {
	if h.DAG == nil {
		h.DAG = dag.NewDAG(nil, h.logger.WithField("component", "dag"))
	}

	activity := ledger.NewActivityWindow(h.Config.MaxTxPerMinute)
	h.Mempool = mempool.NewPool(h.Config.MempoolSize, activity, h.logger.WithField("component", "mempool"))
	h.Credentials = credential.NewStore()
	h.Blacklist = ratelimit.NewBlacklist()

	if h.Registry == nil {
		h.Registry = prometheus.NewRegistry()
	}
	h.Metrics = metrics.New(h.Registry)
}

func (h *Hyperdag) initSubstrate() error {
	if h.Substrate != nil {
		return nil
	}

	substrate, err := net.NewP2PSubstrate(net.P2PConfig{
		Key:            h.Config.Key,
		ListenAddrs:    h.Config.Listen,
		MaxMessageSize: h.Config.MaxMessageSize,
		EnableMDNS:     h.Config.MDNS,
		MDNSService:    h.Config.Network,
	}, h.logger.WithField("component", "p2p"))
	if err != nil {
		return err
	}

	h.Substrate = substrate

	return nil
}

func (h *Hyperdag) initNode() error {
	secret, err := h.Config.Secret()
	if err != nil {
		return err
	}

	quotas, err := h.Config.RateQuotas()
	if err != nil {
		return err
	}

	h.commands = command.NewQueue(h.Config.CommandQueueSize)

	h.syncer = newSyncer(h.DAG, h.UTXOs, h.Mempool, h.Config.BlockLockTimeout,
		h.logger.WithField("component", "sync"))

	handlers := &gossip.Handlers{
		DAG:              h.DAG,
		Mempool:          h.Mempool,
		UTXOs:            h.UTXOs,
		Credentials:      h.Credentials,
		Proposals:        dag.NewProposals(h.Config.MaxProposals),
		Commands:         h.commands,
		BlockLockTimeout: h.Config.BlockLockTimeout,
		Logger:           h.logger.WithField("component", "dispatch"),
	}

	pipeline := gossip.NewPipeline(
		gossip.Config{
			Secret:         secret,
			MaxMessageSize: h.Config.MaxMessageSize,
		},
		ratelimit.NewLimiter(quotas),
		h.Blacklist,
		h.Metrics,
		handlers,
		h.logger.WithField("component", "gossip"),
	)

	processor := node.NewProcessor(node.ProcessorConfig{
		Substrate:    h.Substrate,
		Key:          h.Config.Key,
		Secret:       secret,
		Network:      h.Config.Network,
		TopicPrefix:  h.Config.TopicPrefix,
		Mempool:      h.Mempool,
		UTXOs:        h.UTXOs,
		Chain:        h.DAG,
		Orchestrator: h.syncer,
		Metrics:      h.Metrics,
		Logger:       h.logger.WithField("component", "processor"),
	})

	nodeConf := &node.Config{
		Network:         h.Config.Network,
		TopicPrefix:     h.Config.TopicPrefix,
		BootstrapPeers:  h.Config.BootstrapPeers,
		MinMeshPeers:    h.Config.MinMeshPeers,
		MeshInterval:    h.Config.MeshInterval,
		PersistInterval: h.Config.PersistInterval,
		MaxValidations:  h.Config.MaxValidations,
		SendTimeout:     h.Config.SendTimeout,
		Logger:          h.logger,
	}

	h.Node = node.NewNode(
		nodeConf,
		h.Substrate,
		pipeline,
		processor,
		h.commands,
		peers.NewJSONCache(h.Config.PeerCachePath()),
		h.Metrics,
	)

	ctx, cancel := context.WithTimeout(context.Background(), h.Config.SendTimeout)
	defer cancel()

	if err := h.Node.Init(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize node")
	}

	h.logger.WithFields(logrus.Fields{
		"id":      h.Node.ID(),
		"address": keys.Address(&h.Config.Key.PublicKey),
		"listen":  h.Substrate.ListenAddrs(),
	}).Info("Node initialized")

	return nil
}

func (h *Hyperdag) initService() {
	if !h.Config.NoService {
		h.Service = service.NewService(
			h.Config.ServiceAddr,
			&stats{h},
			h.Blacklist,
			h.Registry,
			h.logger.WithField("component", "service"),
		)
	}
}

// Run starts the service and the sync worker, asks the network for its state,
// and runs the node's event loop until ctx ends.
func (h *Hyperdag) Run(ctx context.Context) {
	if h.Service != nil {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.Service.Serve()
		}()
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.syncer.run(ctx)
	}()

	if err := h.commands.TrySubmit(command.RequestState{}); err != nil {
		h.logger.WithError(err).Warn("Requesting state")
	}

	h.Node.Run(ctx)
}

// Submit queues a command for the node, for example a locally built
// transaction or block.
func (h *Hyperdag) Submit(ctx context.Context, cmd command.Command) error {
	return h.commands.Submit(ctx, cmd)
}

// Shutdown stops every component. The context passed to Run must be cancelled
// first.
func (h *Hyperdag) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.logger.Info("Shutdown")

		if h.Node != nil {
			h.Node.Shutdown()
		}

		if h.Service != nil {
			if err := h.Service.Close(); err != nil {
				h.logger.WithError(err).Warn("Closing service")
			}
		}

		h.wg.Wait()

		if h.UTXOs != nil {
			if err := h.UTXOs.Close(); err != nil {
				h.logger.WithError(err).Warn("Closing UTXO store")
			}
		}
	})
}
