package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgm9-art/mcmahon-news/internal/aggregator"
	"github.com/pgm9-art/mcmahon-news/internal/cache"
	"github.com/pgm9-art/mcmahon-news/internal/config"
	"github.com/pgm9-art/mcmahon-news/internal/filter"
	"github.com/pgm9-art/mcmahon-news/internal/httpapi"
	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/mcp"
	"github.com/pgm9-art/mcmahon-news/internal/models"
	"github.com/pgm9-art/mcmahon-news/internal/publisher"
	"github.com/pgm9-art/mcmahon-news/internal/ranking"
	"github.com/pgm9-art/mcmahon-news/internal/ratelimit"
	"github.com/pgm9-art/mcmahon-news/internal/retry"
	"github.com/pgm9-art/mcmahon-news/internal/scheduler"
	"github.com/pgm9-art/mcmahon-news/internal/sources"
	"github.com/pgm9-art/mcmahon-news/internal/supervisor"
	"github.com/pgm9-art/mcmahon-news/internal/upstream"
)

// App holds all application dependencies
type App struct {
	Config     *config.Config
	Logger     *logging.Logger
	Cache      cache.Cache
	Roster     *sources.Roster
	Aggregator *aggregator.Aggregator
	Publisher  *publisher.Publisher
	HTTPServer *httpapi.Server

	refreshLimiter ratelimit.RateLimiter
	closers        []func()
}

// New creates and initializes a new App instance
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	app.Logger = logging.NewWithFormat(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	app.Cache = app.initCache()

	roster, err := app.loadRoster()
	if err != nil {
		return nil, err
	}
	app.Roster = roster

	client := upstream.New(app.upstreamConfig(), ratelimit.New(cfg.Fetch.RateLimit), app.Logger)
	fetchers := sources.CreateFetchersFromRoster(roster, client, sources.NewNormalizer(nil), app.fetcherConfig(), app.Logger)

	stale := cache.NewStaleStore(app.Cache, time.Now, cfg.Cache.TTL)
	app.Aggregator = aggregator.New(fetchers, stale, filter.Default(), ranking.New(time.Now), app.aggregatorConfig(), app.Logger)
	app.Publisher = publisher.New(app.Aggregator, cfg.Social.BearerToken != "", app.Logger, time.Now)

	app.HTTPServer = httpapi.New(app.Publisher, httpapi.Options{
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		RequestsPerMinute:   cfg.Server.RequestsPerMinute,
		EnableManualRefresh: cfg.Server.EnableManualRefresh,
		RefreshTimeout:      cfg.Refresh.Timeout,
		PostsLimit:          cfg.Ranking.PostsLimit,
		VideosLimit:         cfg.Ranking.VideosLimit,
		RefreshGate:         app.refreshLimiter,
	}, app.Logger)

	app.Logger.Info("Application initialized", logging.WithFields(map[string]interface{}{
		"post_sources":  roster.Count(models.CategoryPosts),
		"video_sources": roster.Count(models.CategoryVideos),
		"fetchers":      len(fetchers),
		"has_token":     cfg.Social.BearerToken != "",
	}))
	return app, nil
}

// Run serves until ctx is cancelled, or runs a single refresh in
// refresh-once mode.
func (a *App) Run(ctx context.Context) error {
	if a.Config.Server.RefreshOnceMode {
		return a.runOnce(ctx)
	}

	tree := supervisor.NewTree(a.Logger, supervisor.TreeConfig{ShutdownTimeout: a.Config.Server.ShutdownTimeout})
	tree.AddPipelineService(scheduler.New(a.Publisher, a.Config.Refresh.Interval, a.Config.Refresh.Timeout, a.Logger))

	if a.Config.Server.MCPMode {
		return a.runMCP(ctx, tree)
	}

	tree.AddAPIService(supervisor.NewHTTPService(a.HTTPServer.HTTPServer(a.Config.Server.HTTPAddr), a.Config.Server.ShutdownTimeout))

	a.Logger.Info("HTTP API server starting", logging.WithField("addr", a.Config.Server.HTTPAddr))
	err := tree.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// runMCP keeps the scheduler running in the background while serving MCP on
// stdio. Stdin EOF ends the process.
func (a *App) runMCP(ctx context.Context, tree *supervisor.Tree) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := tree.ServeBackground(ctx)

	a.Logger.Info("Starting MCP server in stdio mode")
	handler := mcp.NewHandler(a.Publisher, mcp.Options{
		PostsLimit:          a.Config.Ranking.PostsLimit,
		VideosLimit:         a.Config.Ranking.VideosLimit,
		EnableManualRefresh: a.Config.Server.EnableManualRefresh,
		RefreshGate:         a.refreshLimiter,
	}, a.Logger)
	err := mcp.NewServer(handler, a.Logger).Run(ctx)

	cancel()
	<-done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) runOnce(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, a.Config.Refresh.Timeout)
	defer cancel()

	counts, err := a.Publisher.Refresh(rctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	a.Logger.Info("Refresh-once complete", logging.WithFields(map[string]interface{}{
		"run_id": counts.RunID,
		"posts":  counts.Posts,
		"videos": counts.Videos,
		"errors": counts.Errors,
		"stale":  counts.Stale,
	}))
	return nil
}

// Shutdown releases the cache backend.
func (a *App) Shutdown(ctx context.Context) error {
	for _, c := range a.closers {
		c()
	}
	return nil
}

func (a *App) initCache() cache.Cache {
	cfg := a.Config.Cache
	switch cfg.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", cfg.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, cfg.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithError(err))
			return a.memoryCache()
		}
		a.refreshLimiter = ratelimit.NewRedis(redisCache.Client(), "ratelimit:refresh:", a.Config.Refresh.Cooldown)
		a.closers = append(a.closers, func() { _ = redisCache.Close() })
		return redisCache
	default:
		a.Logger.Info("Using in-memory cache backend")
		return a.memoryCache()
	}
}

func (a *App) memoryCache() cache.Cache {
	a.refreshLimiter = ratelimit.New(a.Config.Refresh.Cooldown)
	mem := cache.NewMemory(a.Config.Cache.TTL)
	a.closers = append(a.closers, mem.Stop)
	return mem
}

func (a *App) loadRoster() (*sources.Roster, error) {
	path := a.Config.Fetch.SourcesPath
	if path == "" {
		path = sources.FindRosterConfig()
	}
	if path == "" {
		a.Logger.Info("No source roster file found, using built-in roster")
		return sources.DefaultRoster(), nil
	}

	roster, err := sources.LoadRoster(path)
	if err != nil {
		return nil, fmt.Errorf("loading source roster %s: %w", path, err)
	}
	a.Logger.Info("Loaded source roster", logging.WithFields(map[string]interface{}{
		"path":    path,
		"sources": len(roster.Sources),
	}))
	return roster, nil
}

func (a *App) upstreamConfig() upstream.Config {
	cfg := upstream.DefaultConfig()
	cfg.Timeout = a.Config.Fetch.Timeout
	cfg.UserAgent = a.Config.Fetch.UserAgent
	cfg.Retry = retry.DefaultPolicy()
	cfg.Retry.MaxAttempts = a.Config.Fetch.RetryAttempts
	return cfg
}

func (a *App) fetcherConfig() sources.FetcherConfig {
	cfg := sources.DefaultConfig()
	cfg.BearerToken = a.Config.Social.BearerToken
	cfg.SocialAPIBase = a.Config.Social.APIBase
	cfg.ProxyBase = a.Config.Chain.ProxyBase
	cfg.PageBase = a.Config.Chain.PageBase
	cfg.SnapshotURL = a.Config.Chain.SnapshotURL
	return cfg
}

func (a *App) aggregatorConfig() aggregator.Config {
	cfg := aggregator.DefaultConfig()
	cfg.SourceTimeout = a.Config.Fetch.SourceTimeout
	cfg.MaxConcurrent = a.Config.Fetch.MaxConcurrent
	cfg.APIPacer = ratelimit.Pacer{BatchSize: a.Config.Fetch.APIBatchSize, Delay: a.Config.Fetch.APIBatchDelay}
	cfg.PostsPerSource = a.Config.Ranking.PostsPerSource
	cfg.VideosPerSource = a.Config.Ranking.VideosPerSource
	cfg.MaxErrors = a.Config.Ranking.MaxErrors
	return cfg
}
