package sources

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageRule describes how to find content blocks in a scraped channel page.
type PageRule struct {
	// LinkPattern matches the href of a content anchor.
	LinkPattern *regexp.Regexp
	// BaseURL is prefixed to relative hrefs.
	BaseURL string
	// Container is the selector used to find the block around an anchor.
	Container string
	// TitleSelector is tried inside the container when the anchor has no text.
	TitleSelector string
	// Limit caps the number of blocks returned. Zero means one.
	Limit int
}

// VideoPageRule matches channel pages that list videos as /v<id>-<slug> links.
func VideoPageRule(baseURL string) PageRule {
	return PageRule{
		LinkPattern:   regexp.MustCompile(`^/v[a-z0-9]+-`),
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Container:     `li, article, div[class*="video"], div[class*="item"]`,
		TitleSelector: `h3, h4, .title, [class*="title"]`,
		Limit:         1,
	}
}

// ChainPageRule reads enough blocks from a channel page for the chain to pick
// the newest one.
func ChainPageRule(baseURL string) PageRule {
	rule := VideoPageRule(baseURL)
	rule.Limit = chainPageCandidates
	return rule
}

const chainPageCandidates = 10

// PageExtractor applies a PageRule to raw HTML.
type PageExtractor struct {
	rule PageRule
}

// NewPageExtractor creates a new extractor for the given page rule
func NewPageExtractor(rule PageRule) *PageExtractor {
	if rule.Limit <= 0 {
		rule.Limit = 1
	}
	return &PageExtractor{rule: rule}
}

func (e *PageExtractor) Name() string {
	return "page"
}

func (e *PageExtractor) Extract(doc Document) ([]RawItem, error) {
	if len(bytes.TrimSpace(doc.Body)) == 0 {
		return nil, ErrEmptyDocument
	}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", doc.URL, err)
	}

	title := strings.ToLower(page.Find("title").First().Text())
	if strings.Contains(title, "just a moment") || strings.Contains(title, "attention required") ||
		page.Find("#challenge-form, #cf-challenge-running, .cf-browser-verification").Length() > 0 {
		return nil, ErrChallenge
	}

	seen := make(map[string]bool)
	var items []RawItem
	page.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !e.rule.LinkPattern.MatchString(href) {
			return true
		}
		link := href
		if !strings.HasPrefix(link, "http") {
			link = e.rule.BaseURL + href
		}
		if seen[link] {
			return true
		}
		seen[link] = true

		items = append(items, e.block(a, href, link))
		return len(items) < e.rule.Limit
	})

	if len(items) == 0 {
		return nil, ErrNoItems
	}
	return items, nil
}

func (e *PageExtractor) block(a *goquery.Selection, href, link string) RawItem {
	container := a.Closest(e.rule.Container)
	if container.Length() == 0 {
		container = a.Parent()
	}

	title := strings.TrimSpace(a.Text())
	if len(title) < 3 {
		title = strings.TrimSpace(container.Find(e.rule.TitleSelector).First().Text())
	}
	if len(title) < 3 {
		title = strings.TrimSpace(a.AttrOr("title", ""))
	}

	thumb := ""
	img := a.Find("img").First()
	if img.Length() == 0 {
		img = container.Find("img").First()
	}
	if img.Length() > 0 {
		thumb = img.AttrOr("src", "")
		if thumb == "" || strings.HasPrefix(thumb, "data:") {
			thumb = img.AttrOr("data-src", thumb)
		}
	}

	raw := RawItem{
		UpstreamID: href,
		Title:      title,
		URL:        link,
		Thumbnail:  thumb,
	}
	if t := container.Find("time").First(); t.Length() > 0 {
		raw.PublishedRaw = t.AttrOr("datetime", strings.TrimSpace(t.Text()))
		if ts, err := time.Parse(time.RFC3339, raw.PublishedRaw); err == nil {
			raw.Published = ts
		}
	}
	return raw
}
