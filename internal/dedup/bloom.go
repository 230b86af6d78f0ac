package dedup

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	defaultCapacity          = 100_000
	defaultFalsePositiveRate = 0.001
)

// generations is a pair of bloom filters rotated every period. A key added
// during epoch e is visible for the rest of e and all of e+1, so it is
// remembered for between one and two periods.
type generations struct {
	mu       sync.Mutex
	period   time.Duration
	epoch    int64
	current  *bloom.BloomFilter
	previous *bloom.BloomFilter
	now      func() time.Time
}

func newGenerations(period time.Duration, capacity uint, fpRate float64) *generations {
	if period <= 0 {
		period = time.Second
	}
	return &generations{
		period:   period,
		epoch:    -1,
		current:  bloom.NewWithEstimates(capacity, fpRate),
		previous: bloom.NewWithEstimates(capacity, fpRate),
		now:      time.Now,
	}
}

func (g *generations) testAndAdd(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rotate()

	seen := g.previous.TestString(key)
	if g.current.TestAndAddString(key) {
		seen = true
	}
	return seen
}

func (g *generations) rotate() {
	epoch := g.now().UnixNano() / int64(g.period)
	switch {
	case epoch == g.epoch:
		return
	case epoch == g.epoch+1:
		g.previous, g.current = g.current, g.previous
		g.current.ClearAll()
	default:
		g.current.ClearAll()
		g.previous.ClearAll()
	}
	g.epoch = epoch
}
