package models

import "time"

type OutcomeStatus string

const (
	OutcomeLive   OutcomeStatus = "live"
	OutcomeStale  OutcomeStatus = "stale"
	OutcomeFailed OutcomeStatus = "failed"
)

// FetchOutcome is the transient result of fetching one source in a refresh.
type FetchOutcome struct {
	Source Source
	Items  []FeedItem
	Status OutcomeStatus
	Err    error
}

type ResultSet struct {
	Items       []FeedItem `json:"items"`
	Count       int        `json:"count"`
	Errors      []string   `json:"errors"`
	Stale       []string   `json:"stale"`
	GeneratedAt time.Time  `json:"lastUpdated"`
}

type RefreshCounts struct {
	RunID       string    `json:"runId"`
	Posts       int       `json:"posts"`
	Videos      int       `json:"videos"`
	Errors      int       `json:"errors"`
	Stale       int       `json:"stale"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

type Health struct {
	Status        string    `json:"status"`
	HasCredential bool      `json:"hasXToken"`
	PostSources   int       `json:"xAccounts"`
	VideoSources  int       `json:"videoFeeds"`
	Posts         int       `json:"posts"`
	Videos        int       `json:"videos"`
	ActiveSources []string  `json:"activeSources"`
	LastRefresh   time.Time `json:"lastRefresh"`
	LastRunID     string    `json:"lastRunId,omitempty"`
	RecentErrors  []string  `json:"recentErrors"`
	Refreshing    bool      `json:"refreshing"`
	Timestamp     time.Time `json:"timestamp"`
}
