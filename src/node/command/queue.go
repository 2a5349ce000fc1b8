package command

import (
	"context"

	"github.com/pkg/errors"
)

// ErrQueueFull is returned by TrySubmit when the queue has no room.
var ErrQueueFull = errors.New("command queue is full")

// DefaultQueueSize is the capacity used when none is configured.
const DefaultQueueSize = 1024

// Queue is a bounded FIFO of commands.
type Queue struct {
	ch chan Command
}

// NewQueue returns a queue holding at most size commands.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Command, size)}
}

// Submit enqueues cmd, waiting for room until ctx ends.
func (q *Queue) Submit(ctx context.Context, cmd Command) error {
	select {
	case q.ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues cmd or fails immediately with ErrQueueFull.
func (q *Queue) TrySubmit(cmd Command) error {
	select {
	case q.ch <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// C is the receiving end of the queue.
func (q *Queue) C() <-chan Command {
	return q.ch
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	return len(q.ch)
}
