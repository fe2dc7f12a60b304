package sources

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/pgm9-art/mcmahon-news/internal/models"
)

const defaultMaxHeadline = 200

var ErrInvalidItem = errors.New("item has no title or link")

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var youtubeIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/shorts/)([A-Za-z0-9_-]{6,})`)

// Normalizer converts raw upstream records into FeedItems. It is pure for a
// given (source, raw, fetchedAt): only the age label depends on the clock.
type Normalizer struct {
	now         func() time.Time
	maxHeadline int
}

// NewNormalizer creates a new normalizer using the given clock
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now, maxHeadline: defaultMaxHeadline}
}

func (n *Normalizer) Normalize(src models.Source, raw RawItem, fetchedAt time.Time) (models.FeedItem, error) {
	headline := Headline(raw.Title, n.maxHeadline)
	link := CanonicalURL(raw.URL)
	if headline == "" || link == "" {
		return models.FeedItem{}, ErrInvalidItem
	}

	published := raw.Published
	if published.IsZero() {
		published = ParseTime(raw.PublishedRaw)
	}
	if published.IsZero() {
		published = fetchedAt
	}
	published = published.UTC()

	idSource := strings.TrimSpace(raw.UpstreamID)
	if idSource == "" {
		idSource = link
	}

	thumb := strings.TrimSpace(raw.Thumbnail)
	if thumb == "" {
		thumb = YouTubeThumbnail(link)
	}

	return models.FeedItem{
		ID:          generateID(src.Platform, idSource),
		Headline:    headline,
		Text:        Body(raw.Title),
		URL:         link,
		Source:      src.Name,
		SourceKey:   src.Key,
		Media:       src.Media,
		Platform:    src.Platform,
		Thumbnail:   thumb,
		Avatar:      raw.Avatar,
		PublishedAt: published,
		FetchedAt:   fetchedAt.UTC(),
		TimeAgo:     models.AgeLabel(published, n.now()),
		Engagement:  raw.Engagement,
	}, nil
}

// NormalizeAll drops records that cannot be normalized.
func (n *Normalizer) NormalizeAll(src models.Source, raws []RawItem, fetchedAt time.Time) []models.FeedItem {
	items := make([]models.FeedItem, 0, len(raws))
	for _, raw := range raws {
		item, err := n.Normalize(src, raw, fetchedAt)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

func generateID(platform, key string) string {
	hash := sha256.Sum256([]byte(platform + "|" + key))
	return fmt.Sprintf("%x", hash[:8])
}

// Headline returns the first non-empty line of text, unescaped, NFC
// normalized, whitespace collapsed and truncated to max runes.
func Headline(text string, max int) string {
	text = html.UnescapeString(text)
	text = norm.NFC.String(text)

	line := ""
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}
	line = strings.Join(strings.Fields(line), " ")
	return truncate(line, max)
}

// Body returns the whole text unescaped, NFC normalized and with all
// whitespace, line breaks included, collapsed to single spaces.
func Body(text string) string {
	text = norm.NFC.String(html.UnescapeString(text))
	return strings.Join(strings.Fields(text), " ")
}

func truncate(s string, max int) string {
	if max <= 3 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}

// CanonicalURL trims tracking parameters and fragments so the same link
// always yields the same id.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	changed := false
	for key := range q {
		if strings.HasPrefix(key, "utm_") || key == "feature" || key == "si" {
			q.Del(key)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ParseTime accepts the layouts seen across feeds, APIs and scraped pages.
// It returns the zero time when nothing matches.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// YouTubeThumbnail derives the medium thumbnail for a YouTube watch link.
func YouTubeThumbnail(link string) string {
	m := youtubeIDPattern.FindStringSubmatch(link)
	if len(m) < 2 {
		return ""
	}
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/mqdefault.jpg", m[1])
}
