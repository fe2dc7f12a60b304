package ranking

import (
	"fmt"
	"testing"
	"time"

	"github.com/pgm9-art/mcmahon-news/internal/models"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedRanker() *Ranker {
	return New(func() time.Time { return testNow })
}

func aged(id, source string, age time.Duration) models.FeedItem {
	return models.FeedItem{ID: id, SourceKey: source, Headline: id, PublishedAt: testNow.Add(-age)}
}

func TestRanker_Recency(t *testing.T) {
	r := fixedRanker()

	tests := []struct {
		age  time.Duration
		want float64
	}{
		{-time.Hour, 50},
		{0, 50},
		{3*time.Hour - time.Second, 50},
		{3 * time.Hour, 40},
		{7 * time.Hour, 30},
		{20 * time.Hour, 20},
		{47 * time.Hour, 10},
		{48 * time.Hour, 0},
		{30 * 24 * time.Hour, 0},
	}
	for _, tt := range tests {
		if got := r.recency(tt.age); got != tt.want {
			t.Errorf("recency(%v) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestRanker_Engagement(t *testing.T) {
	r := fixedRanker()

	if got := r.engagement(nil); got != 2 {
		t.Errorf("engagement(nil) = %v, want 2", got)
	}
	if got := r.engagement(&models.Engagement{Total: 0}); got != 0 {
		t.Errorf("engagement(0) = %v, want 0", got)
	}
	if got := r.engagement(&models.Engagement{Total: 1e9}); got != 20 {
		t.Errorf("engagement(1e9) = %v, want capped 20", got)
	}

	low := r.engagement(&models.Engagement{Total: 1000})
	high := r.engagement(&models.Engagement{Total: 10000})
	if high <= low || high >= 10*low {
		t.Errorf("engagement should grow logarithmically: 1000 -> %v, 10000 -> %v", low, high)
	}
}

func TestRanker_NewerBandScoresHigher(t *testing.T) {
	r := fixedRanker()
	fresh := r.Score(aged("a", "s", 2*time.Hour), 1.0, testNow)
	old := r.Score(aged("b", "s", 30*time.Hour), 1.0, testNow)
	if fresh <= old {
		t.Errorf("Score(2h) = %v, Score(30h) = %v, want strictly higher for newer", fresh, old)
	}
}

func TestRanker_RecencyAndWeightBeatEngagement(t *testing.T) {
	r := fixedRanker()

	x := aged("x1", "x", time.Hour)
	x.Engagement = models.NewEngagement(0, 0, 0)
	y := aged("y1", "y", 40*time.Hour)
	y.Engagement = &models.Engagement{Likes: 10000, Total: 10000}

	ranked := r.Rank([]models.FeedItem{y, x}, map[string]float64{"x": 1.0, "y": 0.5})
	if ranked[0].ID != "x1" || ranked[1].ID != "y1" {
		t.Fatalf("Rank() order = [%s %s], want [x1 y1]", ranked[0].ID, ranked[1].ID)
	}
	if ranked[0].Score != 80 {
		t.Errorf("x score = %v, want 80", ranked[0].Score)
	}
	if ranked[1].Score != 41 {
		t.Errorf("y score = %v, want 41", ranked[1].Score)
	}
}

func TestRanker_RankDoesNotMutateInput(t *testing.T) {
	r := fixedRanker()
	items := []models.FeedItem{aged("a", "s", time.Hour)}
	r.Rank(items, nil)
	if items[0].Score != 0 {
		t.Errorf("Rank() mutated input score to %v", items[0].Score)
	}
}

func TestSortByScore_TieBreaks(t *testing.T) {
	items := []models.FeedItem{
		{ID: "b", SourceKey: "s2", Score: 10, PublishedAt: testNow},
		{ID: "old", SourceKey: "s1", Score: 10, PublishedAt: testNow.Add(-time.Hour)},
		{ID: "a", SourceKey: "s2", Score: 10, PublishedAt: testNow},
		{ID: "c", SourceKey: "s1", Score: 10, PublishedAt: testNow},
		{ID: "top", SourceKey: "s9", Score: 11, PublishedAt: testNow.Add(-72 * time.Hour)},
	}

	SortByScore(items)

	want := []string{"top", "c", "a", "b", "old"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("SortByScore() position %d = %s, want %s (order %v)", i, items[i].ID, id, ids(items))
		}
	}
}

func ids(items []models.FeedItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestRanker_Deterministic(t *testing.T) {
	r := fixedRanker()
	var items []models.FeedItem
	for i := 0; i < 20; i++ {
		items = append(items, aged(fmt.Sprintf("i%02d", i), fmt.Sprintf("s%d", i%4), time.Duration(i%3)*time.Hour))
	}

	first := ids(r.Rank(items, nil))
	for n := 0; n < 5; n++ {
		again := ids(r.Rank(items, nil))
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("Rank() not deterministic at %d: %v vs %v", i, first, again)
			}
		}
	}
}
