package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pgm9-art/mcmahon-news/internal/cache"
	"github.com/pgm9-art/mcmahon-news/internal/filter"
	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/metrics"
	"github.com/pgm9-art/mcmahon-news/internal/models"
	"github.com/pgm9-art/mcmahon-news/internal/ranking"
	"github.com/pgm9-art/mcmahon-news/internal/ratelimit"
	"github.com/pgm9-art/mcmahon-news/internal/sources"
)

type Config struct {
	// SourceTimeout bounds one source's whole fetch, retries and fallbacks included.
	SourceTimeout time.Duration

	// MaxConcurrent limits concurrent syndication and chain fetches.
	MaxConcurrent int

	// APIPacer spaces out API sources, which share a strict upstream window.
	APIPacer ratelimit.Pacer

	PostsPerSource  int
	VideosPerSource int

	// MaxErrors bounds the error list of each result set.
	MaxErrors int
}

// DefaultConfig returns the default aggregator configuration
func DefaultConfig() Config {
	return Config{
		SourceTimeout:   60 * time.Second,
		MaxConcurrent:   8,
		APIPacer:        ratelimit.Pacer{BatchSize: 3, Delay: time.Second},
		PostsPerSource:  3,
		VideosPerSource: 3,
		MaxErrors:       10,
	}
}

// Result is what one run of the pipeline produced.
type Result struct {
	Posts    models.ResultSet
	Videos   models.ResultSet
	Outcomes []models.FetchOutcome
}

// Set returns the result set for category.
func (r *Result) Set(c models.Category) models.ResultSet {
	if c == models.CategoryVideos {
		return r.Videos
	}
	return r.Posts
}

type Aggregator struct {
	fetchers []sources.Fetcher
	stale    *cache.StaleStore
	filter   *filter.Filter
	ranker   *ranking.Ranker
	cfg      Config
	logger   *logging.Logger
	now      func() time.Time
}

// New creates a new aggregator over the given fetchers
func New(fetchers []sources.Fetcher, stale *cache.StaleStore, f *filter.Filter, r *ranking.Ranker, cfg Config, logger *logging.Logger) *Aggregator {
	now := time.Now
	if r != nil && r.Now != nil {
		now = r.Now
	}
	return &Aggregator{
		fetchers: fetchers,
		stale:    stale,
		filter:   f,
		ranker:   r,
		cfg:      cfg,
		logger:   logger,
		now:      now,
	}
}

// Sources returns the configured roster in order.
func (a *Aggregator) Sources() []models.Source {
	out := make([]models.Source, len(a.fetchers))
	for i, f := range a.fetchers {
		out[i] = f.Source()
	}
	return out
}

// Run fetches every source and builds both result sets. A failing source only
// degrades its own contribution; Run itself does not return an error for it.
func (a *Aggregator) Run(ctx context.Context) *Result {
	outcomes := a.collect(ctx)

	posts, videos := a.merge(outcomes)
	now := a.now()
	return &Result{
		Posts:    a.build(models.CategoryPosts, posts, outcomes, now),
		Videos:   a.build(models.CategoryVideos, videos, outcomes, now),
		Outcomes: outcomes,
	}
}

// collect runs every fetcher and returns outcomes in roster order.
func (a *Aggregator) collect(ctx context.Context) []models.FetchOutcome {
	outcomes := make([]models.FetchOutcome, len(a.fetchers))

	var api, rest []int
	for i, f := range a.fetchers {
		if f.Source().Kind == models.KindAPI {
			api = append(api, i)
		} else {
			rest = append(rest, i)
		}
	}

	var g errgroup.Group

	g.Go(func() error {
		err := a.cfg.APIPacer.Run(ctx, len(api), func(ctx context.Context, n int) {
			i := api[n]
			outcomes[i] = a.fetchOne(ctx, a.fetchers[i])
		})
		if err != nil {
			// sources never reached in time still get their cache fallback
			for _, i := range api {
				if outcomes[i].Status == "" {
					src := a.fetchers[i].Source()
					outcomes[i] = a.resolve(src, fetchResult{err: fmt.Errorf("not reached before refresh ended: %w", err)})
				}
			}
		}
		return nil
	})

	g.Go(func() error {
		var pool errgroup.Group
		if a.cfg.MaxConcurrent > 0 {
			pool.SetLimit(a.cfg.MaxConcurrent)
		}
		for _, i := range rest {
			pool.Go(func() error {
				outcomes[i] = a.fetchOne(ctx, a.fetchers[i])
				return nil
			})
		}
		return pool.Wait()
	})

	_ = g.Wait()
	return outcomes
}

type fetchResult struct {
	items []models.FeedItem
	err   error
}

// fetchOne isolates a single source: its timeout, panics and failures end
// here as an outcome.
func (a *Aggregator) fetchOne(ctx context.Context, f sources.Fetcher) models.FetchOutcome {
	src := f.Source()
	start := time.Now()

	fctx := ctx
	if a.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, a.cfg.SourceTimeout)
		defer cancel()
	}

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("fetcher panic: %v", r)}
			}
		}()
		items, err := f.Fetch(fctx)
		done <- fetchResult{items: items, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-fctx.Done():
		res = fetchResult{err: fmt.Errorf("fetch abandoned: %w", fctx.Err())}
	}

	outcome := a.resolve(src, res)
	metrics.RecordSourceFetch(src.Key, string(src.Kind), string(outcome.Status), time.Since(start))
	return outcome
}

func (a *Aggregator) resolve(src models.Source, res fetchResult) models.FetchOutcome {
	if res.err == nil {
		if len(res.items) > 0 && allCached(res.items) {
			// A last-resort item; a real cached result beats it.
			if items, ok := a.serveStale(src); ok {
				return models.FetchOutcome{Source: src, Items: items, Status: models.OutcomeStale}
			}
			return models.FetchOutcome{Source: src, Items: res.items, Status: models.OutcomeStale}
		}
		if len(res.items) > 0 && a.stale != nil {
			a.stale.Put(src.Key, res.items)
		}
		return models.FetchOutcome{Source: src, Items: res.items, Status: models.OutcomeLive}
	}

	if errors.Is(res.err, sources.ErrMissingCredential) {
		return models.FetchOutcome{Source: src, Status: models.OutcomeFailed, Err: res.err}
	}

	if items, ok := a.serveStale(src); ok {
		a.logger.Warn("Serving cached items after fetch failure", logging.WithFields(map[string]interface{}{
			"source": src.Key,
			"count":  len(items),
			"error":  res.err.Error(),
		}))
		return models.FetchOutcome{Source: src, Items: items, Status: models.OutcomeStale, Err: res.err}
	}

	return a.fail(src, res.err)
}

func (a *Aggregator) serveStale(src models.Source) ([]models.FeedItem, bool) {
	if a.stale == nil {
		return nil, false
	}
	items, ok := a.stale.Serve(src.Key, src.StaleCeiling)
	if ok {
		metrics.StaleServed.WithLabelValues(src.Key).Inc()
	}
	return items, ok
}

func (a *Aggregator) fail(src models.Source, err error) models.FetchOutcome {
	a.logger.Warn("Failed to fetch from source", logging.WithFields(map[string]interface{}{
		"source": src.Key,
		"error":  err.Error(),
	}))
	return models.FetchOutcome{Source: src, Status: models.OutcomeFailed, Err: err}
}

func allCached(items []models.FeedItem) bool {
	for _, item := range items {
		if !item.Cached {
			return false
		}
	}
	return true
}

// merge filters each outcome's items and splits them into posts and videos,
// dropping repeats of the same source key and id.
func (a *Aggregator) merge(outcomes []models.FetchOutcome) (posts, videos []models.FeedItem) {
	seen := make(map[string]bool)

	for _, o := range outcomes {
		items := o.Items
		if a.filter != nil {
			items = a.filter.Apply(items)
		}
		if o.Source.SingleItem && len(items) > 0 {
			pick, _ := a.selectOne(items)
			items = []models.FeedItem{pick}
		}

		for _, item := range items {
			if seen[item.Key()] {
				continue
			}
			seen[item.Key()] = true

			if item.Category() == models.CategoryVideos {
				videos = append(videos, item)
			} else {
				posts = append(posts, item)
			}
		}
	}
	return posts, videos
}

func (a *Aggregator) selectOne(items []models.FeedItem) (models.FeedItem, bool) {
	if a.filter == nil {
		return items[0], true
	}
	return a.filter.SelectFirstNonSponsored(items)
}

func (a *Aggregator) build(cat models.Category, items []models.FeedItem, outcomes []models.FetchOutcome, now time.Time) models.ResultSet {
	weights := make(map[string]float64)
	for _, o := range outcomes {
		weights[o.Source.Key] = o.Source.Weight
	}

	ranked := items
	if a.ranker != nil {
		ranked = a.ranker.Rank(items, weights)
	}

	k := a.cfg.PostsPerSource
	if cat == models.CategoryVideos {
		k = a.cfg.VideosPerSource
	}
	capped := ranking.Cap(ranked, k)

	errs, stale := a.report(cat, outcomes)
	return models.ResultSet{
		Items:       capped,
		Count:       len(capped),
		Errors:      errs,
		Stale:       stale,
		GeneratedAt: now,
	}
}

// report lists final errors and stale source keys for one category. Sources
// skipped for a missing credential share one entry.
func (a *Aggregator) report(cat models.Category, outcomes []models.FetchOutcome) ([]string, []string) {
	errs := make([]string, 0)
	stale := make([]string, 0)
	missing := 0

	for _, o := range outcomes {
		if o.Source.Category() != cat {
			continue
		}
		switch o.Status {
		case models.OutcomeStale:
			stale = append(stale, o.Source.Key)
		case models.OutcomeFailed:
			if errors.Is(o.Err, sources.ErrMissingCredential) {
				missing++
				continue
			}
			errs = append(errs, fmt.Sprintf("%s: %v", o.Source.Name, o.Err))
		}
	}

	if missing > 0 {
		errs = append([]string{fmt.Sprintf("%v: %d sources skipped", sources.ErrMissingCredential, missing)}, errs...)
	}
	if a.cfg.MaxErrors > 0 && len(errs) > a.cfg.MaxErrors {
		errs = errs[:a.cfg.MaxErrors]
	}
	return errs, stale
}
