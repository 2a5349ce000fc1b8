package ratelimit

import (
	"sort"
	"sync"
	"time"
)

// Entry records why and when a peer was blacklisted.
type Entry struct {
	Peer   string    `json:"peer"`
	Reason string    `json:"reason"`
	Since  time.Time `json:"since"`
}

// Blacklist is the set of peers whose messages are ignored. Entries never
// expire; only an explicit Remove lifts them.
type Blacklist struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewBlacklist returns an empty Blacklist.
func NewBlacklist() *Blacklist {
	return &Blacklist{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Add blacklists peer. It returns false if the peer was already listed, in
// which case the existing entry is kept.
func (b *Blacklist) Add(peer, reason string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[peer]; ok {
		return false
	}
	b.entries[peer] = Entry{Peer: peer, Reason: reason, Since: b.now()}
	return true
}

// Contains reports whether peer is blacklisted.
func (b *Blacklist) Contains(peer string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[peer]
	return ok
}

// Remove lifts the blacklisting of peer. It returns false if the peer was not
// listed.
func (b *Blacklist) Remove(peer string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[peer]; !ok {
		return false
	}
	delete(b.entries, peer)
	return true
}

// List returns the entries, oldest first.
func (b *Blacklist) List() []Entry {
	b.mu.RLock()
	res := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		res = append(res, e)
	}
	b.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].Since.Equal(res[j].Since) {
			return res[i].Peer < res[j].Peer
		}
		return res[i].Since.Before(res[j].Since)
	})
	return res
}

// Len returns the number of blacklisted peers.
func (b *Blacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
