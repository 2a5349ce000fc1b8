package net

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func nextEvent(t *testing.T, s *InmemSubstrate) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("%s: no event", s.LocalID())
	}
	return Event{}
}

func TestInmemDial(t *testing.T) {
	network := NewInmemNetwork()
	a := network.NewSubstrate("a")
	b := network.NewSubstrate("b")
	ctx := context.Background()

	if err := a.Dial(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if ev := nextEvent(t, a); ev.Type != EventConnected || ev.Peer != "b" {
		t.Fatalf("a should see b connect, got %s %s", ev.Type, ev.Peer)
	}
	if ev := nextEvent(t, b); ev.Type != EventConnected || ev.Peer != "a" {
		t.Fatalf("b should see a connect, got %s %s", ev.Type, ev.Peer)
	}

	// Dialing again does not produce new events.
	if err := a.Dial(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if len(a.Events()) != 0 {
		t.Fatalf("redial should be silent")
	}

	if err := a.Dial(ctx, "c"); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("unknown address should fail, got %v", err)
	}

	b.Disconnect("a")
	if ev := nextEvent(t, a); ev.Type != EventDisconnected || ev.Peer != "b" {
		t.Fatalf("a should see b leave, got %s", ev.Type)
	}
	if ev := nextEvent(t, b); ev.Type != EventDisconnected {
		t.Fatalf("b should see a leave, got %s", ev.Type)
	}
}

func TestInmemPublish(t *testing.T) {
	network := NewInmemNetwork()
	a := network.NewSubstrate("a")
	b := network.NewSubstrate("b")
	c := network.NewSubstrate("c")
	ctx := context.Background()

	a.Dial(ctx, "b")
	a.Dial(ctx, "c")
	for _, s := range []*InmemSubstrate{a, a, b, c} {
		nextEvent(t, s)
	}

	b.Subscribe("/net/blocks")

	if n := a.TopicPeers("/net/blocks"); n != 1 {
		t.Fatalf("one peer should be on the topic, not %d", n)
	}

	data := []byte("hello")
	if err := a.Publish(ctx, "/net/blocks", data); err != nil {
		t.Fatal(err)
	}
	data[0] = 'j'

	ev := nextEvent(t, b)
	if ev.Type != EventGossip || ev.Message.From != "a" || ev.Message.Topic != "/net/blocks" {
		t.Fatalf("unexpected event %#v", ev)
	}
	if !bytes.Equal(ev.Message.Data, []byte("hello")) {
		t.Fatalf("message should be copied, got %q", ev.Message.Data)
	}
	if len(c.Events()) != 0 {
		t.Fatalf("unsubscribed peer should not receive gossip")
	}
}

func TestInmemSendDirect(t *testing.T) {
	network := NewInmemNetwork()
	a := network.NewSubstrate("a")
	b := network.NewSubstrate("b")
	ctx := context.Background()

	if err := a.SendDirect(ctx, "b", []byte("x")); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("direct send needs a connection, got %v", err)
	}

	a.Dial(ctx, "b")
	nextEvent(t, b)

	if err := a.SendDirect(ctx, "b", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if ev := nextEvent(t, b); ev.Type != EventDirect || ev.Peer != "a" {
		t.Fatalf("expected a direct message from a, got %s", ev.Type)
	}
}

func TestInmemRoutingAndClose(t *testing.T) {
	network := NewInmemNetwork()
	a := network.NewSubstrate("")

	a.AddRoutingAddress("p1", []string{"p1"})
	a.AddRoutingAddress("p2", []string{"p2"})
	a.RemoveRoutingPeer("p1")
	if got := a.KnownAddresses(); len(got) != 1 || got[0] != "p2" {
		t.Fatalf("unexpected known addresses %v", got)
	}

	a.AddExplicitPeer("p2")
	if !a.IsExplicitPeer("p2") {
		t.Fatalf("p2 should be explicit")
	}
	a.RemoveExplicitPeer("p2")
	if a.IsExplicitPeer("p2") {
		t.Fatalf("p2 should no longer be explicit")
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-a.Events(); ok {
		t.Fatalf("events channel should be closed")
	}
	if err := a.Publish(context.Background(), "t", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("publish after close should fail, got %v", err)
	}
}
