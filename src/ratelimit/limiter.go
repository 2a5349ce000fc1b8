// Package ratelimit throttles inbound gossip per peer and per topic class, and
// keeps the set of peers whose messages are ignored.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrRateExceeded is matched by every RateExceededError.
var ErrRateExceeded = errors.New("rate exceeded")

// RateExceededError reports the peer and class whose quota ran out.
type RateExceededError struct {
	Peer  string
	Class Class
}

func (e *RateExceededError) Error() string {
	return fmt.Sprintf("rate exceeded for peer %s on %s", e.Peer, e.Class)
}

// Is makes errors.Is(err, ErrRateExceeded) hold.
func (e *RateExceededError) Is(target error) bool {
	return target == ErrRateExceeded
}

// Quota is a sustained rate in messages per second and a burst size.
type Quota struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

// DefaultQuotas returns the per-second quotas used when none are configured.
func DefaultQuotas() map[Class]Quota {
	return map[Class]Quota{
		ClassBlock:       {Rate: 10, Burst: 10},
		ClassTransaction: {Rate: 50, Burst: 50},
		ClassState:       {Rate: 5, Burst: 5},
		ClassCredential:  {Rate: 20, Burst: 20},
	}
}

// DefaultIdleTTL is how long an untouched bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

type bucketKey struct {
	peer  string
	class Class
}

type bucket struct {
	lim  *rate.Limiter
	last time.Time
}

// Limiter holds one token bucket per (peer, class) pair. Buckets are created
// lazily and dropped after staying idle for longer than the idle TTL, by which
// time they would have refilled completely.
type Limiter struct {
	mu        sync.Mutex
	quotas    map[Class]Quota
	strictest Class
	buckets   map[bucketKey]*bucket
	now       func() time.Time
	idleTTL   time.Duration
	lastPrune time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithIdleTTL sets the idle bucket lifetime.
func WithIdleTTL(ttl time.Duration) Option {
	return func(l *Limiter) { l.idleTTL = ttl }
}

// NewLimiter creates a Limiter. Classes missing from quotas get the default
// quota.
func NewLimiter(quotas map[Class]Quota, opts ...Option) *Limiter {
	q := DefaultQuotas()
	for c, v := range quotas {
		q[c] = v
	}

	l := &Limiter{
		quotas:  q,
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
		idleTTL: DefaultIdleTTL,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.strictest = ClassBlock
	for _, c := range Classes() {
		if q[c].Rate < q[l.strictest].Rate {
			l.strictest = c
		}
	}
	l.lastPrune = l.now()

	return l
}

// Strictest returns the class with the lowest sustained rate. Messages on
// unknown topics are charged to it.
func (l *Limiter) Strictest() Class {
	return l.strictest
}

// Quota returns the quota applied to a class.
func (l *Limiter) Quota(c Class) Quota {
	if q, ok := l.quotas[c]; ok {
		return q
	}
	return l.quotas[l.strictest]
}

// CheckAndRecord consumes one token from the bucket of (peer, class). It
// returns a *RateExceededError, without consuming anything, when the bucket is
// empty.
func (l *Limiter) CheckAndRecord(peer string, c Class) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	key := bucketKey{peer: peer, class: c}
	b, ok := l.buckets[key]
	if !ok {
		q := l.Quota(c)
		b = &bucket{lim: rate.NewLimiter(rate.Limit(q.Rate), q.Burst)}
		l.buckets[key] = b
	}
	b.last = now

	if !b.lim.AllowN(now, 1) {
		return &RateExceededError{Peer: peer, Class: c}
	}
	return nil
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < l.idleTTL {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.last) >= l.idleTTL {
			delete(l.buckets, k)
		}
	}
	l.lastPrune = now
}
