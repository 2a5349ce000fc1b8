package ratelimit

import "testing"

func TestBlacklist(t *testing.T) {
	b := NewBlacklist()

	if b.Contains("peerA") {
		t.Fatalf("empty blacklist should not contain peerA")
	}

	if !b.Add("peerA", "rate exceeded") {
		t.Fatalf("first Add should report a new entry")
	}
	if b.Add("peerA", "auth") {
		t.Fatalf("second Add should not report a new entry")
	}
	b.Add("peerB", "auth")

	if !b.Contains("peerA") || !b.Contains("peerB") {
		t.Fatalf("peers should be blacklisted")
	}

	list := b.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	for _, e := range list {
		if e.Peer == "peerA" && e.Reason != "rate exceeded" {
			t.Fatalf("original reason should be kept, got %q", e.Reason)
		}
	}

	if !b.Remove("peerA") {
		t.Fatalf("Remove should find peerA")
	}
	if b.Remove("peerA") {
		t.Fatalf("second Remove should not find peerA")
	}
	if b.Contains("peerA") || b.Len() != 1 {
		t.Fatalf("peerA should be gone")
	}
}
