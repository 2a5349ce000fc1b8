package net

import (
	"context"
	"crypto/ecdsa"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	lcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
)

const (
	// DefaultDirectProtocol is the stream protocol of direct messages.
	DefaultDirectProtocol = "/hyperdag/direct/1.0.0"

	p2pEventBuffer = 4096
	explicitTag    = "explicit"
	connectTimeout = 10 * time.Second
)

// P2PConfig parameterizes a P2PSubstrate.
type P2PConfig struct {
	// Key is the node key; it also determines the peer ID.
	Key *ecdsa.PrivateKey

	// ListenAddrs are multiaddrs like /ip4/0.0.0.0/tcp/9000.
	ListenAddrs []string

	// MaxMessageSize bounds gossip and direct messages.
	MaxMessageSize int

	// EnableMDNS turns on local network discovery under MDNSService.
	EnableMDNS  bool
	MDNSService string

	// Connection manager watermarks.
	ConnLow  int
	ConnHigh int

	DirectProtocol string
}

// P2PSubstrate implements Substrate on a libp2p host with gossipsub and a
// Kademlia DHT in server mode.
type P2PSubstrate struct {
	conf   P2PConfig
	host   host.Host
	pubsub *pubsub.PubSub
	kad    *dht.IpfsDHT
	mdns   mdns.Service

	mu     sync.RWMutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription
	closed bool

	events chan Event
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Entry
}

// NewP2PSubstrate starts a libp2p host listening on conf.ListenAddrs.
func NewP2PSubstrate(conf P2PConfig, logger *logrus.Entry) (*P2PSubstrate, error) {
	if conf.Key == nil {
		return nil, errors.Wrap(ErrConfig, "missing node key")
	}
	for _, a := range conf.ListenAddrs {
		if _, err := multiaddr.NewMultiaddr(a); err != nil {
			return nil, errors.Wrapf(ErrConfig, "listen address %q: %v", a, err)
		}
	}
	if conf.DirectProtocol == "" {
		conf.DirectProtocol = DefaultDirectProtocol
	}
	if conf.ConnHigh <= 0 {
		conf.ConnLow, conf.ConnHigh = 50, 100
	}

	priv, err := lcrypto.UnmarshalSecp256k1PrivateKey(keys.DumpPrivateKey(conf.Key))
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}

	cm, err := connmgr.NewConnManager(conf.ConnLow, conf.ConnHigh, connmgr.WithGracePeriod(time.Minute))
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(conf.ListenAddrs...),
		libp2p.ConnectionManager(cm),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &P2PSubstrate{
		conf:   conf,
		host:   h,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
		events: make(chan Event, p2pEventBuffer),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.WithField("peer_id", h.ID().String()),
	}

	var psOpts []pubsub.Option
	if conf.MaxMessageSize > 0 {
		psOpts = append(psOpts, pubsub.WithMaxMessageSize(conf.MaxMessageSize))
	}
	s.pubsub, err = pubsub.NewGossipSub(ctx, h, psOpts...)
	if err != nil {
		s.abort()
		return nil, err
	}

	s.kad, err = dht.New(ctx, h, dht.Mode(dht.ModeServer))
	if err != nil {
		s.abort()
		return nil, err
	}
	if err := s.kad.Bootstrap(ctx); err != nil {
		s.abort()
		return nil, err
	}

	h.Network().Notify(&network.NotifyBundle{
		ConnectedF:    s.connected,
		DisconnectedF: s.disconnected,
	})
	h.SetStreamHandler(protocol.ID(conf.DirectProtocol), s.handleDirect)

	if conf.EnableMDNS {
		s.mdns = mdns.NewMdnsService(h, conf.MDNSService, s)
		if err := s.mdns.Start(); err != nil {
			s.logger.WithError(err).Warn("mDNS discovery failed to start")
			s.mdns = nil
		}
	}

	s.logger.WithField("addrs", s.ListenAddrs()).Info("libp2p host started")

	return s, nil
}

func (s *P2PSubstrate) abort() {
	s.cancel()
	if s.kad != nil {
		s.kad.Close()
	}
	s.host.Close()
}

// LocalID implements Substrate.
func (s *P2PSubstrate) LocalID() string {
	return s.host.ID().String()
}

// ListenAddrs implements Substrate.
func (s *P2PSubstrate) ListenAddrs() []string {
	info := peer.AddrInfo{ID: s.host.ID(), Addrs: s.host.Addrs()}
	return p2pAddrStrings(&info)
}

// Events implements Substrate.
func (s *P2PSubstrate) Events() <-chan Event {
	return s.events
}

// Subscribe implements Substrate.
func (s *P2PSubstrate) Subscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.subs[topic]; ok {
		return nil
	}

	t, err := s.joinLocked(topic)
	if err != nil {
		return err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return errors.Wrapf(err, "subscribing to %s", topic)
	}
	s.subs[topic] = sub

	s.wg.Add(1)
	go s.readLoop(topic, sub)

	return nil
}

func (s *P2PSubstrate) joinLocked(topic string) (*pubsub.Topic, error) {
	if t, ok := s.topics[topic]; ok {
		return t, nil
	}
	t, err := s.pubsub.Join(topic)
	if err != nil {
		return nil, errors.Wrapf(err, "joining %s", topic)
	}
	s.topics[topic] = t
	return t, nil
}

func (s *P2PSubstrate) readLoop(topic string, sub *pubsub.Subscription) {
	defer s.wg.Done()
	for {
		msg, err := sub.Next(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.WithError(err).WithField("topic", topic).Warn("Topic reader stopped")
			}
			return
		}
		if msg.ReceivedFrom == s.host.ID() {
			continue
		}
		s.emit(Event{
			Type: EventGossip,
			Peer: msg.ReceivedFrom.String(),
			Message: Message{
				ID:    msg.ID,
				From:  msg.ReceivedFrom.String(),
				Topic: msg.GetTopic(),
				Data:  msg.Data,
			},
		})
	}
}

// Publish implements Substrate. Publishing on a topic we are not subscribed
// to joins it first.
func (s *P2PSubstrate) Publish(ctx context.Context, topic string, data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	t, err := s.joinLocked(topic)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return t.Publish(ctx, data)
}

// SendDirect implements Substrate. It opens a stream, writes data and closes
// it.
func (s *P2PSubstrate) SendDirect(ctx context.Context, peerID string, data []byte) error {
	pid, err := peer.Decode(peerID)
	if err != nil {
		return errors.Wrapf(ErrUnknownPeer, "%s: %v", peerID, err)
	}

	stream, err := s.host.NewStream(ctx, pid, protocol.ID(s.conf.DirectProtocol))
	if err != nil {
		return errors.Wrapf(err, "opening stream to %s", peerID)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		stream.SetWriteDeadline(deadline)
	}
	if _, err := stream.Write(data); err != nil {
		stream.Reset()
		return errors.Wrapf(err, "writing to %s", peerID)
	}
	return stream.CloseWrite()
}

func (s *P2PSubstrate) handleDirect(stream network.Stream) {
	defer stream.Close()

	from := stream.Conn().RemotePeer().String()

	limit := int64(s.conf.MaxMessageSize)
	if limit <= 0 {
		limit = 1 << 22
	}
	stream.SetReadDeadline(time.Now().Add(connectTimeout))
	data, err := io.ReadAll(io.LimitReader(stream, limit+1))
	if err != nil {
		s.logger.WithError(err).WithField("peer", from).Debug("Reading direct message")
		stream.Reset()
		return
	}

	// Oversize payloads are passed on whole so the pipeline can account
	// for them.
	s.emit(Event{
		Type: EventDirect,
		Peer: from,
		Message: Message{
			From: from,
			Data: data,
		},
	})
}

// Dial implements Substrate. addr must carry a /p2p/ component.
func (s *P2PSubstrate) Dial(ctx context.Context, addr string) error {
	info, err := peer.AddrInfoFromString(addr)
	if err != nil {
		return errors.Wrapf(ErrConfig, "address %q: %v", addr, err)
	}
	if info.ID == s.host.ID() {
		return nil
	}
	if err := s.host.Connect(ctx, *info); err != nil {
		return errors.Wrapf(err, "dialing %s", addr)
	}
	return nil
}

// AddExplicitPeer implements Substrate. The peer is protected from the
// connection manager and redialed if it is not connected.
func (s *P2PSubstrate) AddExplicitPeer(peerID string) {
	pid, err := peer.Decode(peerID)
	if err != nil {
		return
	}
	s.host.ConnManager().Protect(pid, explicitTag)

	if s.host.Network().Connectedness(pid) == network.Connected {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, connectTimeout)
		defer cancel()
		if err := s.host.Connect(ctx, s.host.Peerstore().PeerInfo(pid)); err != nil {
			s.logger.WithError(err).WithField("peer", peerID).Debug("Connecting explicit peer")
		}
	}()
}

// RemoveExplicitPeer implements Substrate.
func (s *P2PSubstrate) RemoveExplicitPeer(peerID string) {
	pid, err := peer.Decode(peerID)
	if err != nil {
		return
	}
	s.host.ConnManager().Unprotect(pid, explicitTag)
}

// AddRoutingAddress implements Substrate.
func (s *P2PSubstrate) AddRoutingAddress(peerID string, addrs []string) {
	pid, err := peer.Decode(peerID)
	if err != nil {
		return
	}
	for _, a := range addrs {
		ma, err := multiaddr.NewMultiaddr(a)
		if err != nil {
			continue
		}
		// Strip a trailing /p2p/ component; the peerstore keys by ID.
		if transport, _ := peer.SplitAddr(ma); transport != nil {
			ma = transport
		}
		s.host.Peerstore().AddAddr(pid, ma, peerstore.PermanentAddrTTL)
	}
	if _, err := s.kad.RoutingTable().TryAddPeer(pid, true, false); err != nil {
		s.logger.WithError(err).WithField("peer", peerID).Debug("Routing table refused peer")
	}
}

// RemoveRoutingPeer implements Substrate.
func (s *P2PSubstrate) RemoveRoutingPeer(peerID string) {
	pid, err := peer.Decode(peerID)
	if err != nil {
		return
	}
	s.kad.RoutingTable().RemovePeer(pid)
}

// TopicPeers implements Substrate.
func (s *P2PSubstrate) TopicPeers(topic string) int {
	s.mu.RLock()
	t, ok := s.topics[topic]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return len(t.ListPeers())
}

// KnownAddresses implements Substrate.
func (s *P2PSubstrate) KnownAddresses() []string {
	var res []string
	for _, pid := range s.kad.RoutingTable().ListPeers() {
		info := s.host.Peerstore().PeerInfo(pid)
		res = append(res, p2pAddrStrings(&info)...)
	}
	sort.Strings(res)
	return res
}

// HandlePeerFound implements mdns.Notifee.
func (s *P2PSubstrate) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == s.host.ID() {
		return
	}
	s.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.TempAddrTTL)
	s.emit(Event{
		Type:  EventDiscovered,
		Peer:  info.ID.String(),
		Addrs: p2pAddrStrings(&info),
	})
}

func (s *P2PSubstrate) connected(n network.Network, c network.Conn) {
	remote := c.RemotePeer()
	s.emit(Event{
		Type:  EventConnected,
		Peer:  remote.String(),
		Addrs: []string{c.RemoteMultiaddr().String()},
	})
}

func (s *P2PSubstrate) disconnected(n network.Network, c network.Conn) {
	remote := c.RemotePeer()
	if n.Connectedness(remote) == network.Connected {
		return
	}
	s.emit(Event{Type: EventDisconnected, Peer: remote.String()})
}

func (s *P2PSubstrate) emit(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.WithFields(logrus.Fields{
			"event": ev.Type,
			"peer":  ev.Peer,
		}).Warn("Event buffer full, dropping event")
	}
}

// Close implements Substrate.
func (s *P2PSubstrate) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	if s.mdns != nil {
		s.mdns.Close()
	}
	for _, t := range s.topics {
		t.Close()
	}
	s.kad.Close()
	err := s.host.Close()

	close(s.events)
	return err
}

func p2pAddrStrings(info *peer.AddrInfo) []string {
	addrs, err := peer.AddrInfoToP2pAddrs(info)
	if err != nil {
		return nil
	}
	res := make([]string, len(addrs))
	for i, a := range addrs {
		res[i] = a.String()
	}
	return res
}
