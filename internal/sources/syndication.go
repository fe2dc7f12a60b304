package sources

import (
	"context"
	"fmt"

	"github.com/pgm9-art/mcmahon-news/internal/models"
)

// SyndicationFetcher pulls a channel feed document and keeps its newest
// entries.
type SyndicationFetcher struct {
	source     models.Source
	client     Getter
	extractor  *FeedExtractor
	normalizer *Normalizer
	config     FetcherConfig
}

// NewSyndicationFetcher creates a new fetcher for a feed source
func NewSyndicationFetcher(source models.Source, client Getter, normalizer *Normalizer, config FetcherConfig) *SyndicationFetcher {
	return &SyndicationFetcher{
		source:     source,
		client:     client,
		extractor:  NewFeedExtractor(),
		normalizer: normalizer,
		config:     config,
	}
}

func (f *SyndicationFetcher) Source() models.Source {
	return f.source
}

func (f *SyndicationFetcher) Fetch(ctx context.Context) ([]models.FeedItem, error) {
	resp, err := f.client.Get(ctx, f.source.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed fetch failed: %w", err)
	}

	raws, err := f.extractor.Extract(Document{URL: f.source.FeedURL, ContentType: resp.ContentType, Body: resp.Body})
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", f.source.FeedURL, err)
	}

	if max := quota(f.source, f.config); len(raws) > max {
		raws = raws[:max]
	}

	items := f.normalizer.NormalizeAll(f.source, raws, f.config.now())
	if len(items) == 0 {
		return nil, fmt.Errorf("feed %s: %w", f.source.FeedURL, ErrNoItems)
	}
	return items, nil
}

// YouTubeFeedURL builds the public channel feed address.
func YouTubeFeedURL(channelID string) string {
	return "https://www.youtube.com/feeds/videos.xml?channel_id=" + channelID
}
