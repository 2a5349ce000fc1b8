package command

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestQueueBackpressure(t *testing.T) {
	q := NewQueue(2)

	if err := q.TrySubmit(RequestState{}); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit(context.Background(), RequestBlock{BlockID: "b"}); err != nil {
		t.Fatal(err)
	}

	if err := q.TrySubmit(RequestState{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("full queue should refuse, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Submit(ctx, RequestState{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Submit should give up when the context ends, got %v", err)
	}

	if q.Len() != 2 {
		t.Fatalf("queue should hold 2 commands, not %d", q.Len())
	}

	first := <-q.C()
	if first.Kind() != KindRequestState {
		t.Fatalf("queue should be FIFO, got %s first", first.Kind())
	}
	second := <-q.C()
	if rb, ok := second.(RequestBlock); !ok || rb.BlockID != "b" {
		t.Fatalf("unexpected second command %#v", second)
	}
}
