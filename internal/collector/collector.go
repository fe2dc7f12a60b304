// Package collector builds the last-known-good snapshot for scraped channel
// sources. It runs out of band so the main pipeline never has to wait on a
// slow or challenge-protected page.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/models"
	"github.com/pgm9-art/mcmahon-news/internal/sources"
	"github.com/pgm9-art/mcmahon-news/internal/upstream"
)

var ErrNothingCollected = errors.New("no channel produced an item")

// Client is the subset of upstream.Client the collector needs.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (*upstream.Response, error)
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*upstream.Response, error)
}

type Config struct {
	PageBase   string
	Delay      time.Duration
	OutputPath string

	GistID    string
	GistToken string
	GistFile  string
	GistAPI   string

	Now func() time.Time
}

// DefaultConfig returns the default collector configuration
func DefaultConfig() Config {
	return Config{
		PageBase:   "https://rumble.com",
		Delay:      2 * time.Second,
		OutputPath: "rumble-videos.json",
		GistFile:   "rumble-videos.json",
		GistAPI:    "https://api.github.com",
		Now:        time.Now,
	}
}

type Collector struct {
	client    Client
	extractor *sources.PageExtractor
	cfg       Config
	logger    *logging.Logger
}

// New creates a new collector that reads through the given client
func New(client Client, cfg Config, logger *logging.Logger) *Collector {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Collector{
		client:    client,
		extractor: sources.NewPageExtractor(sources.VideoPageRule(cfg.PageBase)),
		cfg:       cfg,
		logger:    logger,
	}
}

// Collect scrapes each chain source in turn, waiting Delay between pages.
// A channel that fails is left out of the snapshot.
func (c *Collector) Collect(ctx context.Context, srcs []models.Source) (*sources.Snapshot, error) {
	snap := &sources.Snapshot{Channels: make(map[string]sources.SnapshotEntry)}

	first := true
	for _, src := range srcs {
		if src.Kind != models.KindChain || src.Handle == "" {
			continue
		}
		if !first && c.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.Delay):
			}
		}
		first = false

		entry, err := c.scrape(ctx, src)
		if err != nil {
			c.logger.Warn("Failed to scrape channel", logging.WithFields(map[string]interface{}{
				"source": src.Key,
				"handle": src.Handle,
				"error":  err.Error(),
			}))
			continue
		}
		snap.Channels[strings.ToLower(src.Handle)] = entry
		c.logger.Info("Scraped channel", logging.WithFields(map[string]interface{}{
			"handle": src.Handle,
			"title":  entry.Title,
		}))
	}

	if len(snap.Channels) == 0 {
		return nil, ErrNothingCollected
	}
	snap.LastUpdated = c.cfg.Now().UTC()
	return snap, nil
}

func (c *Collector) scrape(ctx context.Context, src models.Source) (sources.SnapshotEntry, error) {
	url := fmt.Sprintf("%s/c/%s", strings.TrimRight(c.cfg.PageBase, "/"), src.Handle)
	resp, err := c.client.Get(ctx, url, nil)
	if err != nil {
		return sources.SnapshotEntry{}, err
	}

	raws, err := c.extractor.Extract(sources.Document{URL: url, ContentType: resp.ContentType, Body: resp.Body})
	if err != nil {
		return sources.SnapshotEntry{}, err
	}

	raw := raws[0]
	pub := raw.PublishedRaw
	if !raw.Published.IsZero() {
		pub = raw.Published.UTC().Format(time.RFC3339)
	}
	return sources.SnapshotEntry{
		Title:        raw.Title,
		URL:          raw.URL,
		Thumbnail:    raw.Thumbnail,
		Source:       src.Name,
		SourceHandle: src.Handle,
		Platform:     src.Platform,
		PubDate:      pub,
	}, nil
}

// Write stores the snapshot at OutputPath.
func (c *Collector) Write(snap *sources.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(c.cfg.OutputPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Publish replaces the gist file with the snapshot. It is a no-op without a
// gist id and token.
func (c *Collector) Publish(ctx context.Context, snap *sources.Snapshot) error {
	if c.cfg.GistID == "" || c.cfg.GistToken == "" {
		return nil
	}

	content, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	body, err := json.Marshal(map[string]interface{}{
		"files": map[string]interface{}{
			c.cfg.GistFile: map[string]string{"content": string(content)},
		},
	})
	if err != nil {
		return fmt.Errorf("encode gist update: %w", err)
	}

	url := fmt.Sprintf("%s/gists/%s", strings.TrimRight(c.cfg.GistAPI, "/"), c.cfg.GistID)
	resp, err := c.client.Do(ctx, http.MethodPatch, url, map[string]string{
		"Authorization": "Bearer " + c.cfg.GistToken,
		"Accept":        "application/vnd.github+json",
		"Content-Type":  "application/json",
	}, body)
	if err != nil {
		return fmt.Errorf("update gist: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("update gist: status %d", resp.StatusCode)
	}
	return nil
}
