package ranking

import "github.com/pgm9-art/mcmahon-news/internal/models"

// Cap walks ranked items in order and keeps at most k per source key. It must
// run after ranking so the best items of each source are the ones kept.
// k <= 0 disables the cap.
func Cap(ranked []models.FeedItem, k int) []models.FeedItem {
	if k <= 0 {
		out := make([]models.FeedItem, len(ranked))
		copy(out, ranked)
		return out
	}

	counts := make(map[string]int)
	out := make([]models.FeedItem, 0, len(ranked))
	for _, item := range ranked {
		if counts[item.SourceKey] >= k {
			continue
		}
		counts[item.SourceKey]++
		out = append(out, item)
	}
	return out
}
