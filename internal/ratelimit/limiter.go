// Package ratelimit paces outbound requests per upstream host and gates
// expensive inbound operations.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ManualRefreshKey is the gate key shared by every surface that can start a
// refresh on demand.
const ManualRefreshKey = "manual-refresh"

// RateLimiter gates an operation by key.
type RateLimiter interface {
	Allow(key string) bool
}

// Limiter enforces a minimum interval between requests to the same host.
type Limiter struct {
	mu          sync.Mutex
	hosts       map[string]*rate.Limiter
	minInterval time.Duration
}

// New creates a new in-memory rate limiter with the given minimum interval
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		hosts:       make(map[string]*rate.Limiter),
		minInterval: minInterval,
	}
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	rl, ok := l.hosts[host]
	if !ok {
		limit := rate.Inf
		if l.minInterval > 0 {
			limit = rate.Every(l.minInterval)
		}
		rl = rate.NewLimiter(limit, 1)
		l.hosts[host] = rl
	}
	return rl
}

// Allow reports whether a request to host may go out now. A refused call
// does not count against the interval.
func (l *Limiter) Allow(host string) bool {
	return l.forHost(host).Allow()
}

// Wait blocks until a request to host may go out or ctx ends.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.forHost(host).Wait(ctx)
}

func (l *Limiter) Reset(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hosts, host)
}

func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts = make(map[string]*rate.Limiter)
}

var _ RateLimiter = (*Limiter)(nil)
