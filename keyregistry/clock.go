package keyregistry

import (
	"go.uber.org/atomic"
)

// SequenceClock hands out strictly increasing logical timestamps starting at 1.
// Nodes embedded in a ledger use the block height instead.
type SequenceClock struct {
	next *atomic.Uint64
}

func NewSequenceClock() *SequenceClock {
	return &SequenceClock{next: atomic.NewUint64(0)}
}

func (c *SequenceClock) Now() uint64 {
	return c.next.Inc()
}

// HeightClock reports the height set by the host ledger, advanced with
// SetHeight at the start of each block. A standalone node advances it to the
// current epoch number instead.
type HeightClock struct {
	height *atomic.Uint64
}

func NewHeightClock(height uint64) *HeightClock {
	return &HeightClock{height: atomic.NewUint64(height)}
}

// SetHeight moves the clock forward. Heights never decrease; smaller values are ignored.
func (c *HeightClock) SetHeight(height uint64) {
	for {
		cur := c.height.Load()
		if height <= cur || c.height.CompareAndSwap(cur, height) {
			return
		}
	}
}

func (c *HeightClock) Now() uint64 {
	if h := c.height.Load(); h > 0 {
		return h
	}
	return 1
}
