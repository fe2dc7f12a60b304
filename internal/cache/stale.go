package cache

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/pgm9-art/mcmahon-news/internal/models"
)

const staleKeyPrefix = "stale:"

// Entry is the last successfully normalized result for one source.
type Entry struct {
	Items    []models.FeedItem `json:"items"`
	StoredAt time.Time         `json:"storedAt"`
}

// StaleStore keeps last-known-good items per source. Entries are never
// evicted for staleness; callers decide usability against a per-source
// ceiling at read time. The backing TTL only bounds memory.
type StaleStore struct {
	backing    Cache
	now        func() time.Time
	backingTTL time.Duration
}

// NewStaleStore creates a new staleness store over the given backend
func NewStaleStore(backing Cache, now func() time.Time, backingTTL time.Duration) *StaleStore {
	if now == nil {
		now = time.Now
	}
	return &StaleStore{backing: backing, now: now, backingTTL: backingTTL}
}

func (s *StaleStore) Get(key string) (Entry, bool) {
	v, ok := s.backing.Get(staleKeyPrefix + key)
	if !ok {
		return Entry{}, false
	}

	switch e := v.(type) {
	case Entry:
		return e, true
	case *Entry:
		return *e, true
	default:
		// remote backends hand back decoded JSON
		data, err := json.Marshal(v)
		if err != nil {
			return Entry{}, false
		}
		var out Entry
		if err := json.Unmarshal(data, &out); err != nil {
			return Entry{}, false
		}
		return out, true
	}
}

// Put stamps items with the current time, replacing any previous entry.
func (s *StaleStore) Put(key string, items []models.FeedItem) {
	stored := make([]models.FeedItem, len(items))
	copy(stored, items)
	s.backing.SetWithTTL(staleKeyPrefix+key, Entry{Items: stored, StoredAt: s.now()}, s.backingTTL)
}

// IsUsable reports whether e was stored less than ceiling ago.
func (s *StaleStore) IsUsable(e Entry, ceiling time.Duration) bool {
	if e.StoredAt.IsZero() || len(e.Items) == 0 {
		return false
	}
	return s.now().Sub(e.StoredAt) < ceiling
}

// Serve returns the cached items for key when still usable. The returned
// items are copies flagged Cached with their age label recomputed; the
// stored publish times are untouched.
func (s *StaleStore) Serve(key string, ceiling time.Duration) ([]models.FeedItem, bool) {
	e, ok := s.Get(key)
	if !ok || !s.IsUsable(e, ceiling) {
		return nil, false
	}

	now := s.now()
	items := make([]models.FeedItem, len(e.Items))
	for i, item := range e.Items {
		item.Cached = true
		item.TimeAgo = models.AgeLabel(item.PublishedAt, now)
		items[i] = item
	}
	return items, true
}
