package timemock

import (
	"sync"
	"time"
)

// DefaultRate is the fast-forward multiplier applied to wall time.
const DefaultRate = 60

// Clock is a boot-anchored accelerated clock. Real elapsed time since the
// anchor is multiplied by the rate, so a 10-minute charging session can be
// observed in 10 real seconds at the default rate.
//
// The clock is monotonic by construction: the anchor only moves on Reset.
type Clock struct {
	mu   sync.Mutex
	boot time.Time
	rate int
}

// New creates a Clock anchored at the current wall time.
func New(rate int) *Clock {
	if rate < 1 {
		rate = 1
	}
	return &Clock{
		boot: time.Now(),
		rate: rate,
	}
}

// Now returns the mocked current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	delta := time.Since(c.boot)
	return c.boot.Add(delta * time.Duration(c.rate))
}

// Rate returns the fast-forward multiplier.
func (c *Clock) Rate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Reset re-anchors the clock at the current wall time.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boot = time.Now()
}
