package dag

import "sync"

// DefaultMaxProposals bounds the proposal list.
const DefaultMaxProposals = 20000

// Proposals is a bounded FIFO of received blocks awaiting consensus. When
// full, the oldest proposal is evicted.
type Proposals struct {
	mu    sync.RWMutex
	items []*Block
	max   int
}

// NewProposals returns an empty list holding at most max blocks.
func NewProposals(max int) *Proposals {
	if max <= 0 {
		max = DefaultMaxProposals
	}
	return &Proposals{max: max}
}

// Push appends b and returns the number of evicted proposals.
func (p *Proposals) Push(b *Block) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items = append(p.items, b)
	evicted := 0
	if over := len(p.items) - p.max; over > 0 {
		copy(p.items, p.items[over:])
		for i := len(p.items) - over; i < len(p.items); i++ {
			p.items[i] = nil
		}
		p.items = p.items[:len(p.items)-over]
		evicted = over
	}
	return evicted
}

// List returns the proposals, oldest first.
func (p *Proposals) List() []*Block {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Block(nil), p.items...)
}

// Len returns the number of proposals.
func (p *Proposals) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}
