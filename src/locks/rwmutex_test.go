package locks

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestLockTimeout(t *testing.T) {
	m := NewRWMutex()

	if err := m.RLock(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Lock(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Lock should time out while a reader holds the lock, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("Lock returned before the deadline")
	}

	m.RUnlock()

	if err := m.Lock(context.Background()); err != nil {
		t.Fatalf("Lock should succeed once readers are gone: %v", err)
	}
	m.Unlock()
}

func TestConcurrentReaders(t *testing.T) {
	m := NewRWMutex()

	for i := 0; i < 10; i++ {
		if err := m.RLock(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 10; i++ {
		m.RUnlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Lock(ctx); err != nil {
		t.Fatal(err)
	}
	m.Unlock()
}
