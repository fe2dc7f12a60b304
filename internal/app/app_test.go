package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pgm9-art/mcmahon-news/internal/config"
)

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
 <title>Test Channel</title>
 <entry>
  <id>yt:video:abc123XYZ_0</id>
  <yt:videoId>abc123XYZ_0</yt:videoId>
  <title>Morning briefing</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=abc123XYZ_0"/>
  <published>%s</published>
 </entry>
</feed>`

func testConfig(t *testing.T, feedURL string) *config.Config {
	t.Helper()

	roster := fmt.Sprintf(`
sources:
  - key: yt-test
    name: Test Channel
    kind: syndication
    media: video
    feed_url: %s
`, feedURL)
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(roster), 0o644); err != nil {
		t.Fatal(err)
	}

	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr:          "127.0.0.1:0",
			RefreshOnceMode:   true,
			RequestsPerMinute: 60,
			ShutdownTimeout:   time.Second,
		},
		Cache:   config.CacheConfig{Backend: "memory", TTL: time.Hour},
		Fetch:   config.FetchConfig{Timeout: 5 * time.Second, SourceTimeout: 10 * time.Second, RetryAttempts: 1, MaxConcurrent: 2, APIBatchSize: 1, SourcesPath: path},
		Refresh: config.RefreshConfig{Interval: time.Minute, Timeout: 30 * time.Second, Cooldown: time.Second},
		Ranking: config.RankingConfig{PostsPerSource: 3, VideosPerSource: 3, MaxErrors: 10, PostsLimit: 30, VideosLimit: 20},
		Logging: config.LoggingConfig{Level: "error"},
	}
}

func TestNew_InvalidRoster(t *testing.T) {
	cfg := testConfig(t, "https://example.com/feed")
	cfg.Fetch.SourcesPath = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := New(cfg); err == nil {
		t.Error("New() should fail when the roster file cannot be loaded")
	}
}

func TestRun_RefreshOnce(t *testing.T) {
	published := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprintf(w, feedBody, published)
	}))
	defer srv.Close()

	a, err := New(testConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	if len(a.Aggregator.Sources()) != 1 {
		t.Fatalf("Sources() = %d, want 1", len(a.Aggregator.Sources()))
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snap := a.Publisher.Snapshot()
	if snap.RunID == "" {
		t.Error("Run() should publish a snapshot")
	}
	if len(snap.Videos.Items) != 1 {
		t.Errorf("published videos = %d, want 1 (errors: %v)", len(snap.Videos.Items), snap.Videos.Errors)
	}
}
