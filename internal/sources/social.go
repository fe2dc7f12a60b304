package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/pgm9-art/mcmahon-news/internal/models"
	"github.com/pgm9-art/mcmahon-news/internal/retry"
)

var ErrMissingCredential = errors.New("social API bearer token not configured")

// SocialFetcher reads recent posts for one account from the social API.
type SocialFetcher struct {
	source     models.Source
	client     Getter
	normalizer *Normalizer
	config     FetcherConfig

	mu     sync.Mutex
	userID string
	avatar string
}

type socialUserResponse struct {
	Data *struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

type socialPostsResponse struct {
	Data []socialPost `json:"data"`
}

type socialPost struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics *struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
	} `json:"public_metrics"`
}

// NewSocialFetcher creates a new fetcher for a social API source
func NewSocialFetcher(source models.Source, client Getter, normalizer *Normalizer, config FetcherConfig) *SocialFetcher {
	return &SocialFetcher{
		source:     source,
		client:     client,
		normalizer: normalizer,
		config:     config,
	}
}

func (f *SocialFetcher) Source() models.Source {
	return f.source
}

func (f *SocialFetcher) Fetch(ctx context.Context) ([]models.FeedItem, error) {
	if f.config.BearerToken == "" {
		return nil, ErrMissingCredential
	}
	headers := map[string]string{"Authorization": "Bearer " + f.config.BearerToken}

	userID, avatar, err := f.lookupUser(ctx, headers)
	if err != nil {
		return nil, err
	}

	// the API rejects max_results below 5; extra posts are trimmed below
	limit := quota(f.source, f.config)
	max := limit
	if max < 5 {
		max = 5
	}
	postsURL := fmt.Sprintf("%s/users/%s/tweets?max_results=%d&tweet.fields=created_at,public_metrics&exclude=retweets,replies",
		f.config.SocialAPIBase, url.PathEscape(userID), max)

	resp, err := f.client.Get(ctx, postsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("posts fetch failed: %w", err)
	}

	var data socialPostsResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode posts response: %w", err)
	}
	if len(data.Data) > limit {
		data.Data = data.Data[:limit]
	}

	fetchedAt := f.config.now()
	raws := make([]RawItem, 0, len(data.Data))
	for _, post := range data.Data {
		raw := RawItem{
			UpstreamID:   post.ID,
			Title:        post.Text,
			URL:          fmt.Sprintf("%s/%s/status/%s", f.config.SocialWebBase, f.source.Handle, post.ID),
			PublishedRaw: post.CreatedAt,
			Avatar:       avatar,
		}
		if m := post.PublicMetrics; m != nil {
			raw.Engagement = models.NewEngagement(m.LikeCount, m.RetweetCount, m.ReplyCount)
		}
		raws = append(raws, raw)
	}

	return f.normalizer.NormalizeAll(f.source, raws, fetchedAt), nil
}

// lookupUser resolves the handle once and remembers the id for later
// refreshes, halving calls against the rate-limited API.
func (f *SocialFetcher) lookupUser(ctx context.Context, headers map[string]string) (string, string, error) {
	f.mu.Lock()
	id, avatar := f.userID, f.avatar
	f.mu.Unlock()
	if id != "" {
		return id, avatar, nil
	}

	userURL := fmt.Sprintf("%s/users/by/username/%s?user.fields=profile_image_url",
		f.config.SocialAPIBase, url.PathEscape(f.source.Handle))
	resp, err := f.client.Get(ctx, userURL, headers)
	if err != nil {
		return "", "", fmt.Errorf("user fetch failed: %w", err)
	}

	var user socialUserResponse
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return "", "", fmt.Errorf("failed to decode user response: %w", err)
	}
	if user.Data == nil || user.Data.ID == "" {
		return "", "", retry.Permanent(fmt.Errorf("no user data for %s", f.source.Handle))
	}

	avatar = strings.Replace(user.Data.ProfileImageURL, "_normal", "_200x200", 1)

	f.mu.Lock()
	f.userID, f.avatar = user.Data.ID, avatar
	f.mu.Unlock()
	return user.Data.ID, avatar, nil
}
