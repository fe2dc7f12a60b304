package sources

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var ErrSnapshotExpired = errors.New("snapshot older than staleness ceiling")

// Snapshot is the last-known-good document written by the collector. It is
// keyed by source handle.
type Snapshot struct {
	LastUpdated time.Time                `json:"lastUpdated"`
	Channels    map[string]SnapshotEntry `json:"channels,omitempty"`
	Videos      []SnapshotEntry          `json:"videos,omitempty"`
}

type SnapshotEntry struct {
	ID           string `json:"id,omitempty"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Thumbnail    string `json:"thumbnail,omitempty"`
	Source       string `json:"source,omitempty"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Platform     string `json:"platform,omitempty"`
	PubDate      string `json:"pubDate,omitempty"`
}

// SnapshotExtractor reads a Snapshot and returns the entry for one handle,
// provided the snapshot itself is younger than the ceiling.
type SnapshotExtractor struct {
	handle  string
	ceiling time.Duration
	now     func() time.Time
}

// NewSnapshotExtractor creates a new extractor for a syndication snapshot
func NewSnapshotExtractor(handle string, ceiling time.Duration, now func() time.Time) *SnapshotExtractor {
	if now == nil {
		now = time.Now
	}
	return &SnapshotExtractor{handle: handle, ceiling: ceiling, now: now}
}

func (e *SnapshotExtractor) Name() string {
	return "snapshot"
}

func (e *SnapshotExtractor) Extract(doc Document) ([]RawItem, error) {
	if len(strings.TrimSpace(string(doc.Body))) == 0 {
		return nil, ErrEmptyDocument
	}

	var snap Snapshot
	if err := json.Unmarshal(doc.Body, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.LastUpdated.IsZero() {
		return nil, fmt.Errorf("snapshot has no lastUpdated stamp")
	}
	if e.ceiling > 0 && e.now().Sub(snap.LastUpdated) >= e.ceiling {
		return nil, fmt.Errorf("%w: generated %s", ErrSnapshotExpired, snap.LastUpdated.Format(time.RFC3339))
	}

	var entries []SnapshotEntry
	for handle, entry := range snap.Channels {
		if strings.EqualFold(handle, e.handle) {
			entries = append(entries, entry)
		}
	}
	for _, entry := range snap.Videos {
		if strings.EqualFold(entry.SourceHandle, e.handle) {
			entries = append(entries, entry)
		}
	}

	items := make([]RawItem, 0, len(entries))
	for _, entry := range entries {
		raw := RawItem{
			UpstreamID:   entry.ID,
			Title:        entry.Title,
			URL:          entry.URL,
			Thumbnail:    entry.Thumbnail,
			PublishedRaw: entry.PubDate,
		}
		if raw.Valid() {
			items = append(items, raw)
		}
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedRaw > items[j].PublishedRaw
	})
	return items, nil
}
