package net

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

const inmemEventBuffer = 1024

// NewInmemAddr returns a random in-memory peer identifier.
func NewInmemAddr() string {
	return generateUUID()
}

func generateUUID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %v", err))
	}

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%12x",
		buf[0:4],
		buf[4:6],
		buf[6:8],
		buf[8:10],
		buf[10:16])
}

// InmemNetwork routes messages between InmemSubstrates. An in-memory address
// is the identifier of the substrate.
type InmemNetwork struct {
	sync.RWMutex
	nodes map[string]*InmemSubstrate
}

// NewInmemNetwork creates an empty network.
func NewInmemNetwork() *InmemNetwork {
	return &InmemNetwork{nodes: make(map[string]*InmemSubstrate)}
}

// NewSubstrate attaches a substrate to the network. A random identifier is
// generated when id is empty.
func (n *InmemNetwork) NewSubstrate(id string) *InmemSubstrate {
	if id == "" {
		id = NewInmemAddr()
	}
	s := &InmemSubstrate{
		id:        id,
		network:   n,
		events:    make(chan Event, inmemEventBuffer),
		topics:    make(map[string]bool),
		connected: make(map[string]bool),
		explicit:  make(map[string]bool),
		routing:   make(map[string][]string),
	}

	n.Lock()
	n.nodes[id] = s
	n.Unlock()

	return s
}

func (n *InmemNetwork) get(id string) (*InmemSubstrate, bool) {
	n.RLock()
	defer n.RUnlock()
	s, ok := n.nodes[id]
	return s, ok
}

func (n *InmemNetwork) remove(id string) {
	n.Lock()
	defer n.Unlock()
	delete(n.nodes, id)
}

// InmemSubstrate implements Substrate without sockets. Published messages go
// to every connected peer subscribed to the topic; they are not relayed
// further. Events that do not fit in the buffer are dropped.
type InmemSubstrate struct {
	sync.RWMutex
	id        string
	network   *InmemNetwork
	events    chan Event
	topics    map[string]bool
	connected map[string]bool
	explicit  map[string]bool
	routing   map[string][]string
	seq       uint64
	closed    bool
	dropped   int
}

// LocalID implements Substrate.
func (s *InmemSubstrate) LocalID() string {
	return s.id
}

// ListenAddrs implements Substrate.
func (s *InmemSubstrate) ListenAddrs() []string {
	return []string{s.id}
}

// Events implements Substrate.
func (s *InmemSubstrate) Events() <-chan Event {
	return s.events
}

// Subscribe implements Substrate.
func (s *InmemSubstrate) Subscribe(topic string) error {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.topics[topic] = true
	return nil
}

func (s *InmemSubstrate) subscribed(topic string) bool {
	s.RLock()
	defer s.RUnlock()
	return s.topics[topic]
}

// Publish implements Substrate.
func (s *InmemSubstrate) Publish(ctx context.Context, topic string, data []byte) error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return ErrClosed
	}
	s.seq++
	id := fmt.Sprintf("%s/%d", s.id, s.seq)
	peers := s.peersLocked()
	s.Unlock()

	for _, p := range peers {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, ok := s.network.get(p)
		if !ok || !target.subscribed(topic) {
			continue
		}
		target.emit(Event{
			Type: EventGossip,
			Peer: s.id,
			Message: Message{
				ID:    id,
				From:  s.id,
				Topic: topic,
				Data:  copyBytes(data),
			},
		})
	}
	return nil
}

// SendDirect implements Substrate.
func (s *InmemSubstrate) SendDirect(ctx context.Context, peer string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.RLock()
	closed, connected := s.closed, s.connected[peer]
	s.RUnlock()
	if closed {
		return ErrClosed
	}

	target, ok := s.network.get(peer)
	if !ok || !connected {
		return errors.Wrap(ErrUnknownPeer, peer)
	}

	target.emit(Event{
		Type: EventDirect,
		Peer: s.id,
		Message: Message{
			From: s.id,
			Data: copyBytes(data),
		},
	})
	return nil
}

// Dial implements Substrate. Dialing a connected peer is a no-op.
func (s *InmemSubstrate) Dial(ctx context.Context, addr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if addr == s.id {
		return errors.Wrap(ErrConfig, "cannot dial self")
	}

	target, ok := s.network.get(addr)
	if !ok {
		return errors.Wrap(ErrUnknownPeer, addr)
	}

	if s.link(addr) {
		target.link(s.id)
		s.emit(Event{Type: EventConnected, Peer: addr, Addrs: []string{addr}})
		target.emit(Event{Type: EventConnected, Peer: s.id, Addrs: []string{s.id}})
	}
	return nil
}

// Disconnect severs the connection with peer on both sides.
func (s *InmemSubstrate) Disconnect(peer string) {
	if !s.unlink(peer) {
		return
	}
	s.emit(Event{Type: EventDisconnected, Peer: peer})
	if target, ok := s.network.get(peer); ok && target.unlink(s.id) {
		target.emit(Event{Type: EventDisconnected, Peer: s.id})
	}
}

// Discover emits a discovery event for peer, as local discovery would.
func (s *InmemSubstrate) Discover(peer string) {
	s.emit(Event{Type: EventDiscovered, Peer: peer, Addrs: []string{peer}})
}

// Inject emits an arbitrary event. Tests use it to simulate hostile peers.
func (s *InmemSubstrate) Inject(ev Event) {
	s.emit(ev)
}

// AddExplicitPeer implements Substrate.
func (s *InmemSubstrate) AddExplicitPeer(peer string) {
	s.Lock()
	defer s.Unlock()
	s.explicit[peer] = true
}

// RemoveExplicitPeer implements Substrate.
func (s *InmemSubstrate) RemoveExplicitPeer(peer string) {
	s.Lock()
	defer s.Unlock()
	delete(s.explicit, peer)
}

// IsExplicitPeer reports whether peer was added with AddExplicitPeer.
func (s *InmemSubstrate) IsExplicitPeer(peer string) bool {
	s.RLock()
	defer s.RUnlock()
	return s.explicit[peer]
}

// AddRoutingAddress implements Substrate.
func (s *InmemSubstrate) AddRoutingAddress(peer string, addrs []string) {
	s.Lock()
	defer s.Unlock()
	s.routing[peer] = append([]string(nil), addrs...)
}

// RemoveRoutingPeer implements Substrate.
func (s *InmemSubstrate) RemoveRoutingPeer(peer string) {
	s.Lock()
	defer s.Unlock()
	delete(s.routing, peer)
}

// RoutingPeers returns the peers of the routing table, sorted.
func (s *InmemSubstrate) RoutingPeers() []string {
	s.RLock()
	defer s.RUnlock()
	res := make([]string, 0, len(s.routing))
	for p := range s.routing {
		res = append(res, p)
	}
	sort.Strings(res)
	return res
}

// TopicPeers implements Substrate.
func (s *InmemSubstrate) TopicPeers(topic string) int {
	s.RLock()
	peers := s.peersLocked()
	s.RUnlock()

	n := 0
	for _, p := range peers {
		if target, ok := s.network.get(p); ok && target.subscribed(topic) {
			n++
		}
	}
	return n
}

// KnownAddresses implements Substrate.
func (s *InmemSubstrate) KnownAddresses() []string {
	s.RLock()
	defer s.RUnlock()
	var res []string
	for _, addrs := range s.routing {
		res = append(res, addrs...)
	}
	sort.Strings(res)
	return res
}

// Peers returns the connected peers, sorted.
func (s *InmemSubstrate) Peers() []string {
	s.RLock()
	defer s.RUnlock()
	return s.peersLocked()
}

// Dropped returns the number of events lost to a full buffer.
func (s *InmemSubstrate) Dropped() int {
	s.RLock()
	defer s.RUnlock()
	return s.dropped
}

// Close implements Substrate.
func (s *InmemSubstrate) Close() error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return nil
	}
	peers := s.peersLocked()
	s.Unlock()

	for _, p := range peers {
		s.Disconnect(p)
	}

	s.network.remove(s.id)

	s.Lock()
	s.closed = true
	close(s.events)
	s.Unlock()

	return nil
}

func (s *InmemSubstrate) peersLocked() []string {
	res := make([]string, 0, len(s.connected))
	for p := range s.connected {
		res = append(res, p)
	}
	sort.Strings(res)
	return res
}

func (s *InmemSubstrate) link(peer string) bool {
	s.Lock()
	defer s.Unlock()
	if s.closed || s.connected[peer] {
		return false
	}
	s.connected[peer] = true
	return true
}

func (s *InmemSubstrate) unlink(peer string) bool {
	s.Lock()
	defer s.Unlock()
	if !s.connected[peer] {
		return false
	}
	delete(s.connected, peer)
	return true
}

func (s *InmemSubstrate) emit(ev Event) {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.dropped++
	}
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
