package models

import "time"

type SourceKind string

const (
	KindAPI         SourceKind = "api"
	KindSyndication SourceKind = "syndication"
	KindChain       SourceKind = "chain"
)

// Source is one configured upstream origin. The roster is loaded once at
// startup and never mutated.
type Source struct {
	Key          string        `koanf:"key" json:"key" validate:"required"`
	Name         string        `koanf:"name" json:"name" validate:"required"`
	Kind         SourceKind    `koanf:"kind" json:"kind" validate:"required,oneof=api syndication chain"`
	Media        MediaKind     `koanf:"media" json:"media" validate:"required,oneof=text video"`
	Platform     string        `koanf:"platform" json:"platform" validate:"required"`
	Handle       string        `koanf:"handle" json:"handle,omitempty"`
	FeedURL      string        `koanf:"feed_url" json:"feedUrl,omitempty" validate:"omitempty,url"`
	Weight       float64       `koanf:"weight" json:"weight" validate:"gte=0,lte=1"`
	Quota        int           `koanf:"quota" json:"quota" validate:"gte=0"`
	StaleCeiling time.Duration `koanf:"stale_ceiling" json:"staleCeiling" validate:"gte=0"`
	SingleItem   bool          `koanf:"single_item" json:"singleItem,omitempty"`
	Enabled      bool          `koanf:"enabled" json:"enabled"`
}

func (s Source) Category() Category {
	if s.Media == MediaVideo {
		return CategoryVideos
	}
	return CategoryPosts
}
