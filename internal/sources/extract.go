package sources

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/pgm9-art/mcmahon-news/internal/models"
)

var (
	ErrEmptyDocument = errors.New("empty document")
	ErrNotFeed       = errors.New("document is not a feed")
	ErrChallenge     = errors.New("anti-automation challenge page")
	ErrNoItems       = errors.New("no items in document")
)

// Document is a fetched upstream payload handed to an extraction rule.
type Document struct {
	URL         string
	ContentType string
	Body        []byte
}

// RawItem is what an extraction rule pulls out of a document before
// normalization.
type RawItem struct {
	UpstreamID   string
	Title        string
	URL          string
	Published    time.Time
	PublishedRaw string
	Thumbnail    string
	Avatar       string
	Engagement   *models.Engagement
}

// Valid reports whether the item has the minimum a fallback strategy needs.
func (r RawItem) Valid() bool {
	return strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.URL) != ""
}

// Extractor turns a document into raw items. Implementations return an
// error rather than an empty slice when nothing usable was found.
type Extractor interface {
	Name() string
	Extract(doc Document) ([]RawItem, error)
}

var challengeMarkers = []string{
	"just a moment",
	"attention required",
	"cf-challenge",
	"cf-browser-verification",
	"challenge-platform",
}

func looksLikeHTML(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func isChallenge(body []byte) bool {
	lower := bytes.ToLower(body)
	if len(lower) > 64<<10 {
		lower = lower[:64<<10]
	}
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			return true
		}
	}
	return false
}

// FeedExtractor reads Atom/RSS documents, including RSS-shaped proxy output.
type FeedExtractor struct {
	parser *gofeed.Parser
}

// NewFeedExtractor creates a new RSS/Atom extractor
func NewFeedExtractor() *FeedExtractor {
	return &FeedExtractor{parser: gofeed.NewParser()}
}

func (e *FeedExtractor) Name() string {
	return "feed"
}

func (e *FeedExtractor) Extract(doc Document) ([]RawItem, error) {
	if len(bytes.TrimSpace(doc.Body)) == 0 {
		return nil, ErrEmptyDocument
	}
	if looksLikeHTML(doc.Body, doc.ContentType) {
		if isChallenge(doc.Body) {
			return nil, ErrChallenge
		}
		return nil, fmt.Errorf("%w: got HTML from %s", ErrNotFeed, doc.URL)
	}

	feed, err := e.parser.Parse(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFeed, err)
	}
	if len(feed.Items) == 0 {
		return nil, ErrNoItems
	}

	items := make([]RawItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		raw := RawItem{
			UpstreamID: item.GUID,
			Title:      item.Title,
			URL:        item.Link,
			Thumbnail:  feedThumbnail(item),
		}
		if id := extensionValue(item.Extensions, "yt", "videoId"); id != "" {
			raw.UpstreamID = id
		}
		switch {
		case item.PublishedParsed != nil:
			raw.Published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			raw.Published = *item.UpdatedParsed
		}
		raw.PublishedRaw = item.Published
		if raw.PublishedRaw == "" {
			raw.PublishedRaw = item.Updated
		}
		items = append(items, raw)
	}
	return items, nil
}

func feedThumbnail(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, group := range media["group"] {
			for _, thumb := range group.Children["thumbnail"] {
				if url := thumb.Attrs["url"]; url != "" {
					return url
				}
			}
		}
		for _, thumb := range media["thumbnail"] {
			if url := thumb.Attrs["url"]; url != "" {
				return url
			}
		}
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	// proxies embed the thumbnail in the description markup
	if strings.Contains(item.Description, "<img") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(item.Description))
		if err == nil {
			if src, ok := doc.Find("img").First().Attr("src"); ok {
				return src
			}
		}
	}
	return ""
}

func extensionValue(exts ext.Extensions, ns, name string) string {
	if exts == nil {
		return ""
	}
	for _, e := range exts[ns][name] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}
