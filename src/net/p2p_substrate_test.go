package net

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/common"
	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
)

func newP2P(t *testing.T) *P2PSubstrate {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewP2PSubstrate(P2PConfig{
		Key:            key,
		ListenAddrs:    []string{"/ip4/127.0.0.1/tcp/0"},
		MaxMessageSize: 1 << 16,
	}, common.NewTestEntry(t, logrus.InfoLevel))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitFor(t *testing.T, s *P2PSubstrate, typ EventType) Event {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", typ)
		}
	}
}

func TestP2PBadListenAddress(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	_, err := NewP2PSubstrate(P2PConfig{
		Key:         key,
		ListenAddrs: []string{"not a multiaddr"},
	}, common.NewTestEntry(t, logrus.InfoLevel))
	if err == nil {
		t.Fatalf("bad listen address should fail")
	}
}

func TestP2PSubstrate(t *testing.T) {
	if testing.Short() {
		t.Skip("opens sockets")
	}

	a := newP2P(t)
	b := newP2P(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	topic := "/testnet/hyperdag/blocks"
	if err := a.Subscribe(topic); err != nil {
		t.Fatal(err)
	}
	if err := b.Subscribe(topic); err != nil {
		t.Fatal(err)
	}

	if err := a.Dial(ctx, b.ListenAddrs()[0]); err != nil {
		t.Fatal(err)
	}
	if ev := waitFor(t, b, EventConnected); ev.Peer != a.LocalID() {
		t.Fatalf("b should see a connect, got %s", ev.Peer)
	}

	if err := a.SendDirect(ctx, b.LocalID(), []byte("direct")); err != nil {
		t.Fatal(err)
	}
	if ev := waitFor(t, b, EventDirect); string(ev.Message.Data) != "direct" || ev.Message.From != a.LocalID() {
		t.Fatalf("unexpected direct message %#v", ev.Message)
	}

	for a.TopicPeers(topic) == 0 {
		select {
		case <-ctx.Done():
			t.Fatalf("b never joined the topic on a's side")
		case <-time.After(50 * time.Millisecond):
		}
	}

	if err := a.Publish(ctx, topic, []byte("gossip")); err != nil {
		t.Fatal(err)
	}
	ev := waitFor(t, b, EventGossip)
	if string(ev.Message.Data) != "gossip" || ev.Message.Topic != topic || ev.Message.From != a.LocalID() {
		t.Fatalf("unexpected gossip %#v", ev.Message)
	}

	b.AddRoutingAddress(a.LocalID(), a.ListenAddrs())
	if len(b.KnownAddresses()) == 0 {
		t.Fatalf("a should be in b's routing table")
	}
}
