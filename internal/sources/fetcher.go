package sources

import (
	"context"
	"time"

	"github.com/pgm9-art/mcmahon-news/internal/models"
	"github.com/pgm9-art/mcmahon-news/internal/upstream"
)

// Fetcher retrieves the current items for one configured source.
type Fetcher interface {
	Source() models.Source
	Fetch(ctx context.Context) ([]models.FeedItem, error)
}

// Getter is the HTTP surface fetchers need. *upstream.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) (*upstream.Response, error)
}

type FetcherConfig struct {
	MaxItems      int
	BearerToken   string
	SocialAPIBase string
	SocialWebBase string
	ProxyBase     string
	PageBase      string
	SnapshotURL   string
	Now           func() time.Time
}

// DefaultConfig returns the default fetcher configuration
func DefaultConfig() FetcherConfig {
	return FetcherConfig{
		MaxItems:      5,
		SocialAPIBase: "https://api.twitter.com/2",
		SocialWebBase: "https://x.com",
		ProxyBase:     "https://openrss.org",
		PageBase:      "https://rumble.com",
		Now:           time.Now,
	}
}

func (c FetcherConfig) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func quota(src models.Source, cfg FetcherConfig) int {
	if src.Quota > 0 {
		return src.Quota
	}
	if cfg.MaxItems > 0 {
		return cfg.MaxItems
	}
	return 5
}
