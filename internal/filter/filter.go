package filter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pgm9-art/mcmahon-news/internal/models"
)

// Filter drops items that are announcements, promos or too short to be news.
type Filter struct {
	// Markers are matched case-insensitively anywhere in the item text.
	Markers []string

	// Patterns catch episode numbering and similar boilerplate.
	Patterns []*regexp.Regexp

	// SponsoredPrefixes mark a headline as paid content when it starts with one.
	SponsoredPrefixes []string

	// MinLength is the minimum text length in runes, per category.
	MinLength map[models.Category]int
}

// Default returns the filter used by the refresh pipeline.
func Default() *Filter {
	return &Filter{
		Markers: []string{
			"subscribe",
			"join us",
			"live stream starting",
			"going live",
			"trailer",
			"preview",
			"premiere",
		},
		Patterns: compilePatterns([]string{
			`(?i)\bep(isode)?\.?\s*#?\d+\b`,
			`(?i)\bpart\s+\d+\s+of\s+\d+\b`,
			`(?i)^#\d+\s*[-:|]`,
		}),
		SponsoredPrefixes: []string{
			"sponsored",
			"#ad",
			"ad:",
			"promoted",
			"paid partnership",
		},
		MinLength: map[models.Category]int{
			models.CategoryPosts:  30,
			models.CategoryVideos: 0,
		},
	}
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			out = append(out, re)
		}
	}
	return out
}

// Keep reports whether item survives the filter. Rules run against the full
// text; items without one are judged by their headline.
func (f *Filter) Keep(item models.FeedItem) bool {
	if strings.TrimSpace(item.Headline) == "" {
		return false
	}

	text := strings.TrimSpace(item.Text)
	if text == "" {
		text = strings.TrimSpace(item.Headline)
	}

	if utf8.RuneCountInString(text) < f.MinLength[item.Category()] {
		return false
	}

	lower := strings.ToLower(text)
	for _, m := range f.Markers {
		if strings.Contains(lower, m) {
			return false
		}
	}

	for _, re := range f.Patterns {
		if re.MatchString(text) {
			return false
		}
	}

	return true
}

// Apply returns the items that survive, preserving order.
func (f *Filter) Apply(items []models.FeedItem) []models.FeedItem {
	out := make([]models.FeedItem, 0, len(items))
	for _, item := range items {
		if f.Keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// IsSponsored reports whether the headline opens with a sponsored marker.
func (f *Filter) IsSponsored(headline string) bool {
	lower := strings.ToLower(strings.TrimSpace(headline))
	for _, p := range f.SponsoredPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// SelectFirstNonSponsored picks the first item whose headline is not marked
// sponsored, or the first item when every one is. It is a heuristic: an
// unmarked paid post still gets through.
func (f *Filter) SelectFirstNonSponsored(items []models.FeedItem) (models.FeedItem, bool) {
	if len(items) == 0 {
		return models.FeedItem{}, false
	}
	for _, item := range items {
		if !f.IsSponsored(item.Headline) {
			return item, true
		}
	}
	return items[0], true
}
