package net

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned by operations on a closed substrate.
	ErrClosed = errors.New("substrate closed")
	// ErrUnknownPeer is returned when a peer cannot be reached.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrConfig is returned for unusable substrate settings, like a listen
	// address that does not parse.
	ErrConfig = errors.New("invalid substrate configuration")
)

// EventType identifies the kind of an Event.
type EventType int

const (
	// EventConnected is emitted when a connection to a peer is established.
	EventConnected EventType = iota
	// EventDisconnected is emitted when the last connection to a peer closes.
	EventDisconnected
	// EventDiscovered is emitted when local discovery finds a peer.
	EventDiscovered
	// EventGossip carries a message received on a subscribed topic.
	EventGossip
	// EventDirect carries a message sent to us by a single peer.
	EventDirect
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "Connected"
	case EventDisconnected:
		return "Disconnected"
	case EventDiscovered:
		return "Discovered"
	case EventGossip:
		return "Gossip"
	case EventDirect:
		return "Direct"
	default:
		return "Unknown"
	}
}

// Message is a raw inbound message. From is the peer that delivered it to us,
// which for gossip is not necessarily the author.
type Message struct {
	ID    string
	From  string
	Topic string
	Data  []byte
}

// Event is an occurrence on the substrate. Addrs is set for connection and
// discovery events; Message for gossip and direct events.
type Event struct {
	Type    EventType
	Peer    string
	Addrs   []string
	Message Message
}

// Substrate is the network layer of a node.
type Substrate interface {
	// LocalID returns our peer identifier.
	LocalID() string

	// ListenAddrs returns the addresses other peers can dial us on.
	ListenAddrs() []string

	// Events returns the channel of substrate events. It is closed by Close.
	Events() <-chan Event

	// Subscribe starts delivering the messages of topic as EventGossip.
	Subscribe(topic string) error

	// Publish broadcasts data on topic.
	Publish(ctx context.Context, topic string, data []byte) error

	// SendDirect delivers data to a single connected peer.
	SendDirect(ctx context.Context, peer string, data []byte) error

	// Dial connects to a peer address.
	Dial(ctx context.Context, addr string) error

	// AddExplicitPeer keeps a peer connected and in our gossip neighbourhood.
	AddExplicitPeer(peer string)

	// RemoveExplicitPeer undoes AddExplicitPeer.
	RemoveExplicitPeer(peer string)

	// AddRoutingAddress records addresses of a peer in the routing table.
	AddRoutingAddress(peer string, addrs []string)

	// RemoveRoutingPeer drops a peer from the routing table.
	RemoveRoutingPeer(peer string)

	// TopicPeers returns the number of peers we know to be on topic.
	TopicPeers(topic string) int

	// KnownAddresses returns dialable addresses of the peers in the routing
	// table.
	KnownAddresses() []string

	// Close shuts the substrate down.
	Close() error
}
