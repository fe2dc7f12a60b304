package testutil

import (
	"sync"
	"time"
)

// Clock is a settable time source for staleness and ranking tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a new fake clock set to t
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
