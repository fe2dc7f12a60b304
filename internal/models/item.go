package models

import "time"

type MediaKind string

const (
	MediaText  MediaKind = "text"
	MediaVideo MediaKind = "video"
)

type FeedItem struct {
	ID       string `json:"id"`
	Headline string `json:"headline"`
	// Text is the full normalized body; Headline is its first line.
	Text        string      `json:"text,omitempty"`
	URL         string      `json:"url"`
	Source      string      `json:"source"`
	SourceKey   string      `json:"sourceKey"`
	Media       MediaKind   `json:"media"`
	Platform    string      `json:"platform"`
	Thumbnail   string      `json:"thumbnail,omitempty"`
	Avatar      string      `json:"avatar,omitempty"`
	PublishedAt time.Time   `json:"publishedAt"`
	FetchedAt   time.Time   `json:"fetchedAt"`
	TimeAgo     string      `json:"timeAgo"`
	Engagement  *Engagement `json:"engagement,omitempty"`
	Score       float64     `json:"score"`
	Cached      bool        `json:"cached,omitempty"`
}

// Engagement holds upstream interaction counts. Total weighs reposts double.
type Engagement struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
	Total   int `json:"total"`
}

// NewEngagement creates engagement counts
func NewEngagement(likes, reposts, replies int) *Engagement {
	return &Engagement{
		Likes:   likes,
		Reposts: reposts,
		Replies: replies,
		Total:   likes + reposts*2 + replies,
	}
}

// Category splits the published output into the two feeds served to clients.
type Category string

const (
	CategoryPosts  Category = "posts"
	CategoryVideos Category = "videos"
)

func (i FeedItem) Category() Category {
	if i.Media == MediaVideo {
		return CategoryVideos
	}
	return CategoryPosts
}

// Key identifies an item within one result set.
func (i FeedItem) Key() string {
	return i.SourceKey + "\x00" + i.ID
}
