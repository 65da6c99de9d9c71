package thread

import (
	"sync"
	"time"
)

// MonotonicClock hands out strictly increasing UTC timestamps at
// microsecond resolution, so an edit always moves UpdatedAt forward even
// when the wall clock does not.
type MonotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewMonotonicClock wraps now; a nil now uses time.Now.
func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

// Now returns the next timestamp.
func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// After returns a timestamp strictly later than both the clock's last
// value and floor.
func (c *MonotonicClock) After(floor time.Time) time.Time {
	c.mu.Lock()
	if floor.After(c.last) {
		c.last = floor.UTC().Truncate(time.Microsecond)
	}
	c.mu.Unlock()
	return c.Now()
}
