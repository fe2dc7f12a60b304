package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pgm9-art/mcmahon-news/internal/collector"
	"github.com/pgm9-art/mcmahon-news/internal/config"
	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/ratelimit"
	"github.com/pgm9-art/mcmahon-news/internal/sources"
	"github.com/pgm9-art/mcmahon-news/internal/upstream"
)

func main() {
	output := flag.String("out", "rumble-videos.json", "Snapshot output path")
	delay := flag.Duration("delay", 2*time.Second, "Pause between channel pages")
	cfg := config.Load()

	logger := logging.NewWithFormat(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	roster := sources.DefaultRoster()
	path := cfg.Fetch.SourcesPath
	if path == "" {
		path = sources.FindRosterConfig()
	}
	if path != "" {
		loaded, err := sources.LoadRoster(path)
		if err != nil {
			logger.Error("Failed to load source roster", logging.WithError(err))
			os.Exit(1)
		}
		roster = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	upstreamCfg := upstream.DefaultConfig()
	upstreamCfg.Timeout = cfg.Fetch.Timeout
	upstreamCfg.UserAgent = cfg.Fetch.UserAgent
	client := upstream.New(upstreamCfg, ratelimit.New(cfg.Fetch.RateLimit), logger)

	collectorCfg := collector.DefaultConfig()
	collectorCfg.PageBase = cfg.Chain.PageBase
	collectorCfg.Delay = *delay
	collectorCfg.OutputPath = *output
	collectorCfg.GistID = os.Getenv("GIST_ID")
	collectorCfg.GistToken = os.Getenv("GIST_TOKEN")
	if v := os.Getenv("GIST_FILE"); v != "" {
		collectorCfg.GistFile = v
	}
	c := collector.New(client, collectorCfg, logger)

	snap, err := c.Collect(ctx, roster.Enabled())
	if err != nil {
		logger.Error("Collection failed, previous snapshot kept", logging.WithError(err))
		os.Exit(1)
	}
	if err := c.Write(snap); err != nil {
		logger.Error("Failed to write snapshot", logging.WithError(err))
		os.Exit(1)
	}
	if err := c.Publish(ctx, snap); err != nil {
		logger.Error("Failed to publish snapshot", logging.WithError(err))
		os.Exit(1)
	}

	logger.Info("Snapshot written", logging.WithFields(map[string]interface{}{
		"path":     *output,
		"channels": len(snap.Channels),
	}))
}
