package node

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/gossip"
	"github.com/mosaicnetworks/hyperdag/src/metrics"
	"github.com/mosaicnetworks/hyperdag/src/net"
	"github.com/mosaicnetworks/hyperdag/src/node/command"
	"github.com/mosaicnetworks/hyperdag/src/peers"
	"github.com/mosaicnetworks/hyperdag/src/ratelimit"
)

// Node is the network event loop of a hyperdag node.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	substrate net.Substrate
	pipeline  *gossip.Pipeline
	processor *Processor
	commands  *command.Queue
	cache     *peers.JSONCache
	metrics   *metrics.Metrics

	peerLock sync.RWMutex
	peers    map[string][]string

	redialing int32
	start     time.Time

	shutdownOnce sync.Once
}

// NewNode wires a Node. cache may be nil to disable peer persistence.
func NewNode(conf *Config,
	substrate net.Substrate,
	pipeline *gossip.Pipeline,
	processor *Processor,
	commands *command.Queue,
	cache *peers.JSONCache,
	m *metrics.Metrics,
) *Node {

	limit := conf.MaxValidations
	if limit <= 0 {
		limit = DefaultMaxValidations
	}

	n := &Node{
		conf:      conf,
		logger:    conf.Logger.WithField("this_id", substrate.LocalID()),
		substrate: substrate,
		pipeline:  pipeline,
		processor: processor,
		commands:  commands,
		cache:     cache,
		metrics:   m,
		peers:     make(map[string][]string),
	}
	n.wgLimit = int32(limit)

	return n
}

// Init subscribes to the topics and dials the cached and bootstrap peers.
// Dial failures are logged, not returned.
func (n *Node) Init(ctx context.Context) error {
	for _, topic := range n.processor.Topics() {
		if err := n.substrate.Subscribe(topic); err != nil {
			return err
		}
		n.logger.WithField("topic", topic).Debug("Subscribed")
	}

	var addrs []string
	if n.cache != nil {
		cached, err := n.cache.Load()
		if err != nil {
			n.logger.WithError(err).Warn("Reading peer cache")
		}
		addrs = append(addrs, cached...)
	}
	addrs = append(addrs, n.conf.BootstrapPeers...)

	n.dialAll(ctx, addrs)

	return nil
}

// Run executes the event loop until ctx ends or the substrate closes its
// event stream.
func (n *Node) Run(ctx context.Context) {
	n.setState(Running)
	n.start = time.Now()

	meshTicker := time.NewTicker(n.conf.MeshInterval)
	defer meshTicker.Stop()
	persistTicker := time.NewTicker(n.conf.PersistInterval)
	defer persistTicker.Stop()

	events := n.substrate.Events()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				n.logger.Debug("Substrate closed")
				return
			}
			n.handleEvent(ctx, ev)
		case cmd := <-n.commands.C():
			n.processCommand(ctx, cmd)
		case <-meshTicker.C:
			n.checkMesh(ctx)
		case <-persistTicker.C:
			n.persistPeers()
		case <-ctx.Done():
			return
		}
	}
}

func (n *Node) handleEvent(ctx context.Context, ev net.Event) {
	switch ev.Type {
	case net.EventConnected:
		n.peerLock.Lock()
		n.peers[ev.Peer] = ev.Addrs
		n.peerLock.Unlock()

		n.substrate.AddExplicitPeer(ev.Peer)
		n.substrate.AddRoutingAddress(ev.Peer, ev.Addrs)

		n.logger.WithFields(logrus.Fields{
			"peer":  ev.Peer,
			"addrs": ev.Addrs,
		}).Info("Peer connected")

	case net.EventDisconnected:
		n.peerLock.Lock()
		delete(n.peers, ev.Peer)
		n.peerLock.Unlock()

		n.substrate.RemoveExplicitPeer(ev.Peer)
		n.substrate.RemoveRoutingPeer(ev.Peer)

		n.logger.WithField("peer", ev.Peer).Info("Peer disconnected")

	case net.EventDiscovered:
		n.substrate.AddExplicitPeer(ev.Peer)
		n.substrate.AddRoutingAddress(ev.Peer, ev.Addrs)

		n.logger.WithField("peer", ev.Peer).Debug("Peer discovered")

	case net.EventGossip:
		n.validate(ctx, gossip.Message{
			ID:    ev.Message.ID,
			From:  ev.Message.From,
			Topic: ev.Message.Topic,
			Data:  ev.Message.Data,
		})

	case net.EventDirect:
		// Direct messages carry blocks and share the block quota.
		n.validate(ctx, gossip.Message{
			From:  ev.Message.From,
			Topic: n.processor.Topic(ratelimit.ClassBlock),
			Data:  ev.Message.Data,
		})
	}
}

func (n *Node) validate(ctx context.Context, msg gossip.Message) {
	started := n.goFunc(func() {
		defer func() {
			if r := recover(); r != nil {
				n.logger.WithFields(logrus.Fields{
					"peer":  msg.From,
					"topic": msg.Topic,
				}).Errorf("Validation panicked: %v", r)
			}
		}()
		n.pipeline.Process(ctx, msg)
	})
	if !started {
		n.metrics.Dropped(metrics.ReasonOverload)
		n.logger.WithFields(logrus.Fields{
			"peer":  msg.From,
			"topic": msg.Topic,
		}).Warn("Too many messages in validation, dropping")
	}
}

func (n *Node) processCommand(ctx context.Context, cmd command.Command) {
	sendCtx, cancel := context.WithTimeout(ctx, n.conf.SendTimeout)
	defer cancel()

	if err := n.processor.Process(sendCtx, cmd); err != nil {
		n.logger.WithError(err).WithField("command", cmd.Kind()).Error("Command failed")
	}
}

func (n *Node) checkMesh(ctx context.Context) {
	thin := false
	for _, topic := range n.processor.Topics() {
		count := n.substrate.TopicPeers(topic)
		if count < n.conf.MinMeshPeers {
			n.logger.WithFields(logrus.Fields{
				"topic": topic,
				"peers": count,
			}).Warn("Mesh below minimum")
			thin = true
		}
	}

	if !thin || len(n.conf.BootstrapPeers) == 0 {
		return
	}

	if !atomic.CompareAndSwapInt32(&n.redialing, 0, 1) {
		return
	}
	n.goBackground(func() {
		defer atomic.StoreInt32(&n.redialing, 0)
		n.dialAll(ctx, n.conf.BootstrapPeers)
	})
}

func (n *Node) dialAll(ctx context.Context, addrs []string) {
	for _, addr := range addrs {
		dialCtx, cancel := context.WithTimeout(ctx, n.conf.SendTimeout)
		err := n.substrate.Dial(dialCtx, addr)
		cancel()
		if err != nil {
			n.logger.WithError(err).WithField("addr", addr).Warn("Dial failed")
			continue
		}
		n.logger.WithField("addr", addr).Debug("Dialed")
	}
}

func (n *Node) persistPeers() {
	if n.cache == nil {
		return
	}
	written, err := n.cache.Write(n.substrate.KnownAddresses())
	if err != nil {
		n.logger.WithError(err).Warn("Writing peer cache")
		return
	}
	if written {
		n.logger.WithField("path", n.cache.Path()).Debug("Peer cache written")
	}
}

// Submit queues a command, waiting for room until ctx ends.
func (n *Node) Submit(ctx context.Context, cmd command.Command) error {
	return n.commands.Submit(ctx, cmd)
}

// GetPeers returns the connected peers, sorted.
func (n *Node) GetPeers() []string {
	n.peerLock.RLock()
	defer n.peerLock.RUnlock()
	res := make([]string, 0, len(n.peers))
	for p := range n.peers {
		res = append(res, p)
	}
	sort.Strings(res)
	return res
}

// ID returns the local peer identifier.
func (n *Node) ID() string {
	return n.substrate.LocalID()
}

// GetStats returns the node statistics.
func (n *Node) GetStats() map[string]string {
	uptime := time.Duration(0)
	if !n.start.IsZero() {
		uptime = time.Since(n.start).Truncate(time.Second)
	}

	return map[string]string{
		"id":                n.ID(),
		"state":             n.getState().String(),
		"num_peers":         strconv.Itoa(len(n.GetPeers())),
		"command_queue":     strconv.Itoa(n.commands.Len()),
		"validations":       strconv.Itoa(n.running()),
		"uptime":            uptime.String(),
		"known_addresses":   strconv.Itoa(len(n.substrate.KnownAddresses())),
		"subscribed_topics": strconv.Itoa(len(n.processor.Topics())),
	}
}

// Shutdown waits for in-flight validations and closes the substrate. The
// context passed to Run must be cancelled first.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")
		n.setState(Shutdown)
		n.waitRoutines()
		n.substrate.Close()
	})
}
