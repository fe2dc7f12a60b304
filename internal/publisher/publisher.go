package publisher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pgm9-art/mcmahon-news/internal/aggregator"
	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/metrics"
	"github.com/pgm9-art/mcmahon-news/internal/models"
)

var ErrRefreshInProgress = errors.New("refresh already in progress")

// Runner runs the fetch pipeline once. *aggregator.Aggregator satisfies it.
type Runner interface {
	Run(ctx context.Context) *aggregator.Result
	Sources() []models.Source
}

// Snapshot is one complete published state. It is never mutated after it
// has been stored.
type Snapshot struct {
	Posts       models.ResultSet
	Videos      models.ResultSet
	RefreshedAt time.Time
	RunID       string
}

// Publisher holds the latest snapshot. Readers load it atomically, so they
// see either the previous complete snapshot or the next one.
type Publisher struct {
	runner        Runner
	logger        *logging.Logger
	hasCredential bool
	now           func() time.Time

	snap     atomic.Pointer[Snapshot]
	running  atomic.Bool
	failure  atomic.Pointer[string]
	maxShown int
}

// New creates a new publisher with an empty snapshot
func New(runner Runner, hasCredential bool, logger *logging.Logger, now func() time.Time) *Publisher {
	if now == nil {
		now = time.Now
	}
	p := &Publisher{
		runner:        runner,
		logger:        logger,
		hasCredential: hasCredential,
		now:           now,
		maxShown:      5,
	}
	p.snap.Store(&Snapshot{Posts: emptySet(), Videos: emptySet()})
	return p
}

func emptySet() models.ResultSet {
	return models.ResultSet{Items: []models.FeedItem{}, Errors: []string{}, Stale: []string{}}
}

// Refresh runs the pipeline and publishes the result. A call made while
// another refresh is running returns ErrRefreshInProgress without waiting.
// A panic in the pipeline keeps the previous snapshot and is returned as an
// error.
func (p *Publisher) Refresh(ctx context.Context) (counts models.RefreshCounts, err error) {
	if !p.running.CompareAndSwap(false, true) {
		return models.RefreshCounts{}, ErrRefreshInProgress
	}
	defer p.running.Store(false)

	runID := uuid.NewString()
	log := p.logger.With(map[string]interface{}{"run_id": runID})
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh failed: %v", r)
			msg := err.Error()
			p.failure.Store(&msg)
			metrics.RecordRefresh("panic", time.Since(start))
			log.Error("Refresh aborted", logging.WithError(err))
		}
	}()

	log.Info("Refresh started")

	res := p.runner.Run(ctx)
	snap := &Snapshot{
		Posts:       res.Posts,
		Videos:      res.Videos,
		RefreshedAt: p.now(),
		RunID:       runID,
	}
	p.snap.Store(snap)
	p.failure.Store(nil)

	metrics.RecordRefresh("success", time.Since(start))
	metrics.PublishedItems.WithLabelValues(string(models.CategoryPosts)).Set(float64(snap.Posts.Count))
	metrics.PublishedItems.WithLabelValues(string(models.CategoryVideos)).Set(float64(snap.Videos.Count))

	counts = models.RefreshCounts{
		RunID:       runID,
		Posts:       snap.Posts.Count,
		Videos:      snap.Videos.Count,
		Errors:      len(snap.Posts.Errors) + len(snap.Videos.Errors),
		Stale:       len(snap.Posts.Stale) + len(snap.Videos.Stale),
		RefreshedAt: snap.RefreshedAt,
	}

	log.Info("Refresh complete", logging.WithFields(map[string]interface{}{
		"posts":    counts.Posts,
		"videos":   counts.Videos,
		"errors":   counts.Errors,
		"stale":    counts.Stale,
		"duration": time.Since(start).String(),
	}))
	return counts, nil
}

// Refreshing reports whether a refresh is running.
func (p *Publisher) Refreshing() bool {
	return p.running.Load()
}

func (p *Publisher) Snapshot() *Snapshot {
	return p.snap.Load()
}

// ResultSet returns the published set for category, trimmed to limit items
// when limit > 0. The returned value shares nothing mutable with the snapshot.
func (p *Publisher) ResultSet(category models.Category, limit int) models.ResultSet {
	snap := p.snap.Load()
	set := snap.Posts
	if category == models.CategoryVideos {
		set = snap.Videos
	}

	items := set.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	out := set
	out.Items = append([]models.FeedItem(nil), items...)
	if out.Items == nil {
		out.Items = []models.FeedItem{}
	}
	out.Count = len(out.Items)
	out.Errors = append([]string{}, set.Errors...)
	out.Stale = append([]string{}, set.Stale...)
	return out
}

func (p *Publisher) Health() models.Health {
	snap := p.snap.Load()

	var postSources, videoSources int
	for _, s := range p.runner.Sources() {
		if s.Category() == models.CategoryVideos {
			videoSources++
		} else {
			postSources++
		}
	}

	status := "ok"
	recent := make([]string, 0, p.maxShown)
	if msg := p.failure.Load(); msg != nil {
		status = "degraded"
		recent = append(recent, *msg)
	}
	for _, e := range append(append([]string{}, snap.Posts.Errors...), snap.Videos.Errors...) {
		if len(recent) >= p.maxShown {
			break
		}
		recent = append(recent, e)
	}

	return models.Health{
		Status:        status,
		HasCredential: p.hasCredential,
		PostSources:   postSources,
		VideoSources:  videoSources,
		Posts:         snap.Posts.Count,
		Videos:        snap.Videos.Count,
		ActiveSources: activeSources(snap),
		LastRefresh:   snap.RefreshedAt,
		LastRunID:     snap.RunID,
		RecentErrors:  recent,
		Refreshing:    p.running.Load(),
		Timestamp:     p.now(),
	}
}

func activeSources(snap *Snapshot) []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, set := range []models.ResultSet{snap.Posts, snap.Videos} {
		for _, item := range set.Items {
			if !seen[item.Source] {
				seen[item.Source] = true
				names = append(names, item.Source)
			}
		}
	}
	sort.Strings(names)
	return names
}
