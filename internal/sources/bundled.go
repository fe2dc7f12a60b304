package sources

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

//go:embed fallback/bundled.json
var bundledData []byte

// BundledStrategy serves the last-known item compiled into the binary. It
// only fails when the handle has no bundled entry.
type BundledStrategy struct {
	handle  string
	entries []SnapshotEntry
}

// NewBundledStrategy creates the last-resort strategy for a channel handle
func NewBundledStrategy(handle string) *BundledStrategy {
	return newBundledStrategy(handle, bundledData)
}

func newBundledStrategy(handle string, data []byte) *BundledStrategy {
	var snap Snapshot
	_ = json.Unmarshal(data, &snap)

	s := &BundledStrategy{handle: handle}
	for key, entry := range snap.Channels {
		if strings.EqualFold(key, handle) {
			s.entries = append(s.entries, entry)
		}
	}
	for _, entry := range snap.Videos {
		if strings.EqualFold(entry.SourceHandle, handle) {
			s.entries = append(s.entries, entry)
		}
	}
	return s
}

func (s *BundledStrategy) Name() string {
	return "bundled"
}

func (s *BundledStrategy) LastResort() bool {
	return true
}

func (s *BundledStrategy) Fetch(ctx context.Context) ([]RawItem, error) {
	if len(s.entries) == 0 {
		return nil, fmt.Errorf("no bundled item for %s", s.handle)
	}
	items := make([]RawItem, 0, len(s.entries))
	for _, e := range s.entries {
		items = append(items, RawItem{
			UpstreamID:   e.ID,
			Title:        e.Title,
			URL:          e.URL,
			Thumbnail:    e.Thumbnail,
			PublishedRaw: e.PubDate,
		})
	}
	return items, nil
}

// HasBundled reports whether a last-known item exists for handle.
func HasBundled(handle string) bool {
	return len(NewBundledStrategy(handle).entries) > 0
}
