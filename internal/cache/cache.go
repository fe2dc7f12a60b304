package cache

import (
	"sync"
	"time"
)

// MemoryOptions tunes the in-process backend.
type MemoryOptions struct {
	// TTL applies to Set. SetWithTTL overrides it per key.
	TTL time.Duration
	// SweepInterval is how often expired entries are dropped in bulk.
	// Zero means one minute.
	SweepInterval time.Duration
	// Now is the clock used for expiry. Nil means time.Now.
	Now func() time.Time
}

// MemoryCache keeps last-good source results in process memory. Entries
// carry their own deadline; reads drop an expired entry on sight and a
// background sweep catches the rest.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	stopped sync.Once
}

type memoryEntry struct {
	value    interface{}
	deadline time.Time
}

func (e memoryEntry) expired(at time.Time) bool {
	return at.After(e.deadline)
}

// NewMemory creates an in-memory cache with the given default TTL
func NewMemory(ttl time.Duration) *MemoryCache {
	return NewMemoryWithOptions(MemoryOptions{TTL: ttl})
}

// NewMemoryWithOptions creates an in-memory cache and starts its sweep
func NewMemoryWithOptions(opts MemoryOptions) *MemoryCache {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     opts.TTL,
		now:     opts.Now,
		done:    make(chan struct{}),
	}
	go c.run(opts.SweepInterval)
	return c
}

func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if now := c.now(); e.expired(now) {
		c.mu.Lock()
		// a concurrent Set may have refreshed the key in between
		if cur, ok := c.entries[key]; ok && cur.expired(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (c *MemoryCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *MemoryCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	deadline := c.now().Add(ttl)

	c.mu.Lock()
	c.entries[key] = memoryEntry{value: value, deadline: deadline}
	c.mu.Unlock()
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet dropped.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop ends the sweep goroutine. Safe to call more than once.
func (c *MemoryCache) Stop() {
	c.stopped.Do(func() { close(c.done) })
}

func (c *MemoryCache) run(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep drops every expired entry and reports how many went.
func (c *MemoryCache) sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

var _ Cache = (*MemoryCache)(nil)
