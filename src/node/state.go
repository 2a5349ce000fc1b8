package node

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a node: Starting, Running, or Shutdown.
type State uint32

const (
	// Starting is the state before Run is called.
	Starting State = iota
	// Running is the state of the event loop.
	Running
	// Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
	wgLimit int32
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// goFunc starts f in a goroutine tracked by the waitgroup, unless wgLimit
// goroutines are already running. It reports whether f was started.
func (b *state) goFunc(f func()) bool {
	if atomic.AddInt32(&b.wgCount, 1) > b.wgLimit {
		atomic.AddInt32(&b.wgCount, -1)
		return false
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer atomic.AddInt32(&b.wgCount, -1)
		f()
	}()
	return true
}

// goBackground starts f in a tracked goroutine that does not count against
// the limit.
func (b *state) goBackground(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

func (b *state) running() int {
	return int(atomic.LoadInt32(&b.wgCount))
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
