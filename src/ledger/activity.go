package ledger

import (
	"sync"
	"time"
)

// Defaults of the local transaction flood guard.
const (
	DefaultMaxPerMinute = 1000
	activityWindow      = time.Minute
	activityRetention   = time.Hour
)

type activity struct {
	at     time.Time
	amount uint64
}

// ActivityWindow tracks the transactions recently created or accepted by this
// node. It bounds local transaction creation to a maximum count per minute,
// whoever the sender, and provides the baseline for anomaly scoring.
type ActivityWindow struct {
	mu           sync.RWMutex
	entries      map[string]activity
	maxPerMinute int
}

// NewActivityWindow returns a window admitting maxPerMinute transactions per
// rolling minute.
func NewActivityWindow(maxPerMinute int) *ActivityWindow {
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultMaxPerMinute
	}
	return &ActivityWindow{
		entries:      make(map[string]activity),
		maxPerMinute: maxPerMinute,
	}
}

// Allow reports whether one more transaction fits in the minute ending at now.
func (w *ActivityWindow) Allow(now time.Time) bool {
	return w.Count(now) < w.maxPerMinute
}

// Count returns the number of transactions recorded in the minute ending at
// now.
func (w *ActivityWindow) Count(now time.Time) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count(now)
}

func (w *ActivityWindow) count(now time.Time) int {
	n := 0
	for _, a := range w.entries {
		if now.Sub(a.at) < activityWindow {
			n++
		}
	}
	return n
}

// Record adds a transaction to the window. Entries older than an hour are
// pruned once the window holds more than twice the per-minute maximum.
func (w *ActivityWindow) Record(id string, at time.Time, amount uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.add(id, at, amount)
}

// Reserve records the transaction only if it fits in the minute ending at at,
// checking and recording under one lock. It reports whether it was recorded.
func (w *ActivityWindow) Reserve(id string, at time.Time, amount uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count(at) >= w.maxPerMinute {
		return false
	}
	w.add(id, at, amount)
	return true
}

func (w *ActivityWindow) add(id string, at time.Time, amount uint64) {
	w.entries[id] = activity{at: at, amount: amount}

	if len(w.entries) > 2*w.maxPerMinute {
		for k, a := range w.entries {
			if at.Sub(a.at) > activityRetention {
				delete(w.entries, k)
			}
		}
	}
}

// MeanAmount returns the mean amount of the transactions recorded within the
// retention period before now, and false if there are none.
func (w *ActivityWindow) MeanAmount(now time.Time) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var sum float64
	n := 0
	for _, a := range w.entries {
		if now.Sub(a.at) <= activityRetention {
			sum += float64(a.amount)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Len returns the number of entries held.
func (w *ActivityWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}
