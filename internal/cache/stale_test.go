package cache

import (
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/pgm9-art/mcmahon-news/internal/models"
	"github.com/pgm9-art/mcmahon-news/internal/testutil"
)

func staleItems(published time.Time) []models.FeedItem {
	return []models.FeedItem{
		{ID: "a1", Headline: "First", URL: "https://e.example/1", SourceKey: "yt-bp", PublishedAt: published, TimeAgo: "just now"},
		{ID: "a2", Headline: "Second", URL: "https://e.example/2", SourceKey: "yt-bp", PublishedAt: published.Add(-time.Hour)},
	}
}

func TestStaleStore_CeilingBoundary(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := testutil.NewClock(start)
	mem := NewMemory(48 * time.Hour)
	defer mem.Stop()

	store := NewStaleStore(mem, clock.Now, 48*time.Hour)
	store.Put("yt-bp", staleItems(start))

	ceiling := 6 * time.Hour

	clock.Set(start.Add(ceiling - time.Second))
	if _, ok := store.Serve("yt-bp", ceiling); !ok {
		t.Error("Serve() just inside the ceiling should be usable")
	}

	clock.Set(start.Add(ceiling))
	if _, ok := store.Serve("yt-bp", ceiling); ok {
		t.Error("Serve() at the ceiling should not be usable")
	}

	if _, ok := store.Get("yt-bp"); !ok {
		t.Error("Get() should still return an entry past its ceiling")
	}
}

func TestStaleStore_ServeMarksCached(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := testutil.NewClock(start)
	mem := NewMemory(time.Hour)
	defer mem.Stop()

	store := NewStaleStore(mem, clock.Now, time.Hour)
	store.Put("yt-bp", staleItems(start))
	clock.Advance(2 * time.Hour)

	items, ok := store.Serve("yt-bp", 24*time.Hour)
	if !ok || len(items) != 2 {
		t.Fatalf("Serve() = %v, %v", items, ok)
	}
	for _, item := range items {
		if !item.Cached {
			t.Errorf("item %s not flagged cached", item.ID)
		}
	}
	if !items[0].PublishedAt.Equal(start) {
		t.Errorf("PublishedAt = %v, want original %v", items[0].PublishedAt, start)
	}
	if items[0].TimeAgo != "2h ago" {
		t.Errorf("TimeAgo = %q, want 2h ago", items[0].TimeAgo)
	}

	stored, _ := store.Get("yt-bp")
	if stored.Items[0].Cached || stored.Items[0].TimeAgo != "just now" {
		t.Errorf("Serve() mutated the stored entry: %+v", stored.Items[0])
	}
}

func TestStaleStore_PutReplaces(t *testing.T) {
	clock := testutil.NewClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	mem := NewMemory(time.Hour)
	defer mem.Stop()

	store := NewStaleStore(mem, clock.Now, time.Hour)
	store.Put("k", staleItems(clock.Now()))
	clock.Advance(time.Minute)
	store.Put("k", staleItems(clock.Now())[:1])

	e, ok := store.Get("k")
	if !ok || len(e.Items) != 1 || !e.StoredAt.Equal(clock.Now()) {
		t.Errorf("Get() = %+v, want the newer entry", e)
	}
}

func TestStaleStore_IsUsable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewStaleStore(NewMemory(time.Hour), func() time.Time { return now }, time.Hour)

	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"zero entry", Entry{}, false},
		{"no items", Entry{StoredAt: now}, false},
		{"fresh", Entry{Items: staleItems(now), StoredAt: now.Add(-time.Minute)}, true},
		{"old", Entry{Items: staleItems(now), StoredAt: now.Add(-25 * time.Hour)}, false},
	}
	for _, tt := range tests {
		if got := store.IsUsable(tt.entry, 24*time.Hour); got != tt.want {
			t.Errorf("IsUsable(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// decodedCache mimics a remote backend by round-tripping values through JSON.
type decodedCache struct {
	*MemoryCache
}

func (d decodedCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	data, _ := json.Marshal(value)
	var decoded interface{}
	_ = json.Unmarshal(data, &decoded)
	d.MemoryCache.SetWithTTL(key, decoded, ttl)
}

func TestStaleStore_DecodedBackend(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mem := NewMemory(time.Hour)
	defer mem.Stop()

	store := NewStaleStore(decodedCache{mem}, func() time.Time { return start }, time.Hour)
	store.Put("yt-bp", staleItems(start))

	e, ok := store.Get("yt-bp")
	if !ok || len(e.Items) != 2 {
		t.Fatalf("Get() = %+v, %v", e, ok)
	}
	if !e.StoredAt.Equal(start) || e.Items[0].Headline != "First" {
		t.Errorf("Get() lost data across JSON: %+v", e)
	}
}
