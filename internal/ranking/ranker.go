package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/pgm9-art/mcmahon-news/internal/models"
)

// Band is one freshness tier: items younger than MaxAge earn Points.
type Band struct {
	MaxAge time.Duration
	Points float64
}

// DefaultBands are checked in order; anything older than the last band
// earns nothing for recency.
var DefaultBands = []Band{
	{3 * time.Hour, 50},
	{6 * time.Hour, 40},
	{12 * time.Hour, 30},
	{24 * time.Hour, 20},
	{48 * time.Hour, 10},
}

// Ranker scores items from recency, source weight and engagement. With the
// defaults recency and weight together outweigh any engagement count.
type Ranker struct {
	Bands []Band

	// WeightScale turns a 0..1 source weight into points.
	WeightScale float64

	// EngagementFactor multiplies log10(1+total); EngagementCap bounds it.
	EngagementFactor float64
	EngagementCap    float64

	// NoEngagement is awarded to items that carry no engagement data.
	NoEngagement float64

	Now func() time.Time
}

// New creates a new ranker using the given clock
func New(now func() time.Time) *Ranker {
	if now == nil {
		now = time.Now
	}
	return &Ranker{
		Bands:            DefaultBands,
		WeightScale:      30,
		EngagementFactor: 4,
		EngagementCap:    20,
		NoEngagement:     2,
		Now:              now,
	}
}

func (r *Ranker) recency(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	for _, b := range r.Bands {
		if age < b.MaxAge {
			return b.Points
		}
	}
	return 0
}

func (r *Ranker) engagement(e *models.Engagement) float64 {
	if e == nil {
		return r.NoEngagement
	}
	total := e.Total
	if total < 0 {
		total = 0
	}
	return math.Min(r.EngagementCap, r.EngagementFactor*math.Log10(1+float64(total)))
}

// Score computes item's score against now with the given source weight.
func (r *Ranker) Score(item models.FeedItem, weight float64, now time.Time) float64 {
	weight = math.Max(0, math.Min(1, weight))
	return r.recency(now.Sub(item.PublishedAt)) + weight*r.WeightScale + r.engagement(item.Engagement)
}

// Rank scores a copy of items and returns it sorted best first. weights maps
// source key to weight; unknown sources get 0.5.
func (r *Ranker) Rank(items []models.FeedItem, weights map[string]float64) []models.FeedItem {
	now := r.Now()
	ranked := make([]models.FeedItem, len(items))
	for i, item := range items {
		w, ok := weights[item.SourceKey]
		if !ok {
			w = 0.5
		}
		item.Score = math.Round(r.Score(item, w, now)*100) / 100
		ranked[i] = item
	}
	SortByScore(ranked)
	return ranked
}

// SortByScore orders items by score descending; ties go to the newer item,
// then source key, then id, so equal input always yields equal order.
func SortByScore(items []models.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		if a.SourceKey != b.SourceKey {
			return a.SourceKey < b.SourceKey
		}
		return a.ID < b.ID
	})
}
