package fix

import "fmt"

// IncomingPool is a fixed-size array of pre-constructed IncomingMessage
// flyweights with a lock-free free-list of indices (spec §9 "Object pools
// -> arenas and indices", replacing the source's ArrayBlockingQueue<
// IncomingFixMessage>). Acquire pops an index; Release pushes it back.
// Single-threaded use only (the reactor thread owns all inbound parsing),
// so the free-list needs no atomics.
type IncomingPool struct {
	slots []*IncomingMessage
	free  []int
}

// NewIncomingPool pre-allocates size flyweights.
func NewIncomingPool(size int) *IncomingPool {
	p := &IncomingPool{
		slots: make([]*IncomingMessage, size),
		free:  make([]int, size),
	}
	for i := 0; i < size; i++ {
		p.slots[i] = NewIncomingMessage()
		p.free[i] = size - 1 - i
	}
	return p
}

// Acquire pops a free flyweight and its index for later Release.
func (p *IncomingPool) Acquire() (*IncomingMessage, int, error) {
	if len(p.free) == 0 {
		return nil, -1, fmt.Errorf("fix: incoming message pool exhausted (size %d)", len(p.slots))
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return p.slots[idx], idx, nil
}

// Release returns a flyweight to the pool by index (O(1), spec §9).
func (p *IncomingPool) Release(idx int) {
	p.slots[idx].Reset()
	p.free = append(p.free, idx)
}

// Len reports the pool's total capacity.
func (p *IncomingPool) Len() int { return len(p.slots) }

// Available reports how many flyweights are currently free.
func (p *IncomingPool) Available() int { return len(p.free) }
