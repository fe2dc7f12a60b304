package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewMemory(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	if c.ttl != time.Minute {
		t.Errorf("NewMemory() ttl = %v, want %v", c.ttl, time.Minute)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	c.Set("yt-bp", []string{"a", "b"})

	got, ok := c.Get("yt-bp")
	if !ok {
		t.Fatal("Get() returned false for existing key")
	}
	if items := got.([]string); len(items) != 2 {
		t.Errorf("Get() = %v, want two items", got)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get() should return false for a missing key")
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestMemoryCache_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemoryWithOptions(MemoryOptions{TTL: time.Minute, SweepInterval: time.Hour, Now: clock.Now})
	defer c.Stop()

	c.SetWithTTL("short", "v", 10*time.Second)
	c.SetWithTTL("long", "v", time.Hour)
	c.SetWithTTL("other-short", "v", 10*time.Second)
	clock.Advance(30 * time.Second)

	if got := c.sweep(); got != 2 {
		t.Errorf("sweep() dropped %d, want 2", got)
	}
	if _, ok := c.Get("short"); ok {
		t.Error("Get() should miss an expired entry")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("Get() should hit an entry with a longer ttl")
	}
	if c.Len() != 1 {
		t.Errorf("Len() after sweep = %d, want 1", c.Len())
	}
}

func TestMemoryCache_GetDropsExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemoryWithOptions(MemoryOptions{TTL: time.Minute, SweepInterval: time.Hour, Now: clock.Now})
	defer c.Stop()

	c.Set("yt-bp", "v")
	clock.Advance(2 * time.Minute)

	if _, ok := c.Get("yt-bp"); ok {
		t.Fatal("Get() should miss once the default ttl has passed")
	}
	if c.Len() != 0 {
		t.Errorf("Len() after expired Get() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_BackgroundSweep(t *testing.T) {
	c := NewMemoryWithOptions(MemoryOptions{TTL: time.Millisecond, SweepInterval: 5 * time.Millisecond})
	defer c.Stop()

	c.Set("a", 1)
	deadline := time.Now().Add(time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want background sweep to drop the entry", c.Len())
	}
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	c.Delete("never-set")

	if _, ok := c.Get("a"); ok {
		t.Error("Delete() left the entry in place")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_Overwrite(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	c.Set("k", "old")
	c.Set("k", "new")
	if got, _ := c.Get("k"); got != "new" {
		t.Errorf("Get() = %v, want new", got)
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("src-%d", n%5)
			c.Set(key, n)
			c.Get(key)
			if n%10 == 0 {
				c.Delete(key)
			}
		}(i)
	}
	wg.Wait()
}

func TestMemoryCache_StopTwice(t *testing.T) {
	c := NewMemory(time.Minute)
	c.Stop()
	c.Stop()
}
