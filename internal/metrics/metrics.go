// Package metrics holds the Prometheus instruments for the ingestion
// pipeline. All vars register with the default registry on import.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_source_fetches_total",
			Help: "Source fetch outcomes per refresh",
		},
		[]string{"source", "kind", "status"}, // status: live, stale, failed
	)

	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_source_fetch_duration_seconds",
			Help:    "Time spent fetching one source, including retries and fallbacks",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	ChainStrategyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_chain_strategy_attempts_total",
			Help: "Fallback chain strategy attempts",
		},
		[]string{"strategy", "result"}, // result: success, failure
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_upstream_retries_total",
			Help: "Retries issued against upstream hosts",
		},
		[]string{"host"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_upstream_requests_total",
			Help: "Upstream HTTP requests by host and status class",
		},
		[]string{"host", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_circuit_breaker_state",
			Help: "Circuit breaker state per host (0=closed, 1=half-open, 2=open)",
		},
		[]string{"host"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"host", "from", "to"},
	)

	StaleServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_stale_served_total",
			Help: "Sources served from the staleness cache",
		},
		[]string{"source"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_refresh_duration_seconds",
			Help:    "Full pipeline refresh duration",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	Refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_refreshes_total",
			Help: "Pipeline refreshes by result",
		},
		[]string{"result"}, // success, panic, skipped
	)

	PublishedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_published_items",
			Help: "Items in the currently published result set",
		},
		[]string{"category"},
	)

	LastRefreshTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_last_refresh_timestamp_seconds",
			Help: "Unix time of the last completed refresh",
		},
	)
)

// RecordSourceFetch records one source fetch and its latency
func RecordSourceFetch(source, kind, status string, d time.Duration) {
	SourceFetches.WithLabelValues(source, kind, status).Inc()
	SourceFetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordRefresh records one refresh cycle and its duration
func RecordRefresh(result string, d time.Duration) {
	Refreshes.WithLabelValues(result).Inc()
	if result == "success" {
		RefreshDuration.Observe(d.Seconds())
		LastRefreshTimestamp.SetToCurrentTime()
	}
}

// StatusClass buckets an HTTP status into 2xx..5xx, or "error" for transport
// failures.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "error"
	}
}
