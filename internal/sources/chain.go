package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/metrics"
	"github.com/pgm9-art/mcmahon-news/internal/models"
)

var ErrChainExhausted = errors.New("all fallback strategies failed")

// Strategy is one way of obtaining raw items for a chain source. Every
// strategy has the same contract so the chain can treat them uniformly.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context) ([]RawItem, error)
}

// lastResort marks strategies whose output is not live data.
type lastResort interface {
	LastResort() bool
}

// DocumentStrategy fetches one URL and runs an extraction rule over it.
type DocumentStrategy struct {
	name      string
	url       string
	client    Getter
	extractor Extractor
}

// NewDocumentStrategy creates a strategy that fetches url and runs extractor over it
func NewDocumentStrategy(name, url string, client Getter, extractor Extractor) *DocumentStrategy {
	return &DocumentStrategy{name: name, url: url, client: client, extractor: extractor}
}

func (s *DocumentStrategy) Name() string {
	return s.name
}

func (s *DocumentStrategy) Fetch(ctx context.Context) ([]RawItem, error) {
	resp, err := s.client.Get(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(Document{URL: s.url, ContentType: resp.ContentType, Body: resp.Body})
}

// ChainFetcher tries its strategies in order and stops at the first one that
// yields a structurally valid item.
type ChainFetcher struct {
	source     models.Source
	strategies []Strategy
	normalizer *Normalizer
	config     FetcherConfig
	logger     *logging.Logger

	mu       sync.Mutex
	attempts map[string]int
}

// NewChainFetcher creates a new fetcher that tries strategies in order
func NewChainFetcher(source models.Source, strategies []Strategy, normalizer *Normalizer, config FetcherConfig, logger *logging.Logger) *ChainFetcher {
	return &ChainFetcher{
		source:     source,
		strategies: strategies,
		normalizer: normalizer,
		config:     config,
		logger:     logger,
		attempts:   make(map[string]int),
	}
}

func (f *ChainFetcher) Source() models.Source {
	return f.source
}

// Strategies returns the strategy names in the order they are tried.
func (f *ChainFetcher) Strategies() []string {
	names := make([]string, len(f.strategies))
	for i, s := range f.strategies {
		names[i] = s.Name()
	}
	return names
}

// Attempts returns how many times each strategy has been invoked.
func (f *ChainFetcher) Attempts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.attempts))
	for k, v := range f.attempts {
		out[k] = v
	}
	return out
}

func (f *ChainFetcher) Fetch(ctx context.Context) ([]models.FeedItem, error) {
	var failures []string
	for _, strategy := range f.strategies {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err.Error())
			break
		}

		f.mu.Lock()
		f.attempts[strategy.Name()]++
		f.mu.Unlock()

		item, err := f.try(ctx, strategy)
		if err != nil {
			metrics.ChainStrategyAttempts.WithLabelValues(strategy.Name(), "failure").Inc()
			failures = append(failures, fmt.Sprintf("%s: %v", strategy.Name(), err))
			f.logger.Debug("Fallback strategy failed", logging.WithFields(map[string]interface{}{
				"source":   f.source.Key,
				"strategy": strategy.Name(),
				"error":    err.Error(),
			}))
			continue
		}

		metrics.ChainStrategyAttempts.WithLabelValues(strategy.Name(), "success").Inc()
		if lr, ok := strategy.(lastResort); ok && lr.LastResort() {
			item.Cached = true
		}
		return []models.FeedItem{item}, nil
	}

	return nil, fmt.Errorf("%w (%s)", ErrChainExhausted, strings.Join(failures, "; "))
}

func (f *ChainFetcher) try(ctx context.Context, strategy Strategy) (models.FeedItem, error) {
	raws, err := strategy.Fetch(ctx)
	if err != nil {
		return models.FeedItem{}, err
	}
	for _, raw := range NewestFirst(raws) {
		if !raw.Valid() {
			continue
		}
		item, err := f.normalizer.Normalize(f.source, raw, f.config.now())
		if err == nil {
			return item, nil
		}
	}
	return models.FeedItem{}, ErrNoItems
}

// NewestFirst returns a copy of raws ordered by publish time, newest first.
// Undated records keep their document order after every dated one.
func NewestFirst(raws []RawItem) []RawItem {
	type dated struct {
		raw RawItem
		at  time.Time
	}
	list := make([]dated, len(raws))
	for i, raw := range raws {
		at := raw.Published
		if at.IsZero() {
			at = ParseTime(raw.PublishedRaw)
		}
		list[i] = dated{raw: raw, at: at}
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].at, list[j].at
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})

	out := make([]RawItem, len(list))
	for i, d := range list {
		out[i] = d.raw
	}
	return out
}
