// Package locks provides a reader/writer lock whose acquisition can be bounded
// by a context.
package locks

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds the number of concurrent readers. A writer acquires all
// of them.
const maxReaders = 1 << 20

// RWMutex is a reader/writer lock with context-aware acquisition. Waiters are
// served in FIFO order, so a pending writer is not starved by a stream of
// readers.
type RWMutex struct {
	sem *semaphore.Weighted
}

// NewRWMutex returns an unlocked RWMutex.
func NewRWMutex() *RWMutex {
	return &RWMutex{sem: semaphore.NewWeighted(maxReaders)}
}

// Lock acquires the lock for writing. It returns ctx.Err() if the context ends
// first, in which case the lock is not held.
func (m *RWMutex) Lock(ctx context.Context) error {
	return m.sem.Acquire(ctx, maxReaders)
}

// Unlock releases a write lock.
func (m *RWMutex) Unlock() {
	m.sem.Release(maxReaders)
}

// RLock acquires the lock for reading.
func (m *RWMutex) RLock(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

// RUnlock releases a read lock.
func (m *RWMutex) RUnlock() {
	m.sem.Release(1)
}
