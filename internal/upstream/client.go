// Package upstream is the single HTTP path every fetcher uses to reach an
// upstream host. Each call is paced per host, guarded by a per-host circuit
// breaker, bounded by a timeout and retried on transient failures.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/metrics"
	"github.com/pgm9-art/mcmahon-news/internal/ratelimit"
	"github.com/pgm9-art/mcmahon-news/internal/retry"
)

type Config struct {
	Timeout         time.Duration
	UserAgent       string
	MaxBodyBytes    int64
	Retry           retry.Policy
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns sensible defaults for the upstream client
func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		UserAgent:       "Mozilla/5.0 (compatible; McMahonNews/1.0)",
		MaxBodyBytes:    5 << 20,
		Retry:           retry.DefaultPolicy(),
		BreakerFailures: 5,
		BreakerTimeout:  2 * time.Minute,
	}
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	URL         string
}

type Client struct {
	http    *http.Client
	limiter *ratelimit.Limiter
	config  Config
	logger  *logging.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*Response]
}

// New builds a Client. limiter may be nil to disable per-host pacing.
func New(cfg Config, limiter *ratelimit.Limiter, logger *logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultConfig().BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = DefaultConfig().BreakerTimeout
	}
	return &Client{
		http:     &http.Client{},
		limiter:  limiter,
		config:   cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*Response]),
	}
}

func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, rawURL, headers, nil)
}

// Do issues the request with retries. Any 2xx status is success; other
// statuses come back as *retry.StatusError.
func (c *Client) Do(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", rawURL)
	}
	host := u.Host

	policy := c.config.Retry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		metrics.RetryAttempts.WithLabelValues(host).Inc()
		c.logger.Debug("Retrying upstream request", logging.WithFields(map[string]interface{}{
			"host":    host,
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		}))
	}

	return retry.Do(ctx, policy, func(ctx context.Context) (*Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, host); err != nil {
				return nil, err
			}
		}
		return c.breaker(host).Execute(func() (*Response, error) {
			return c.once(ctx, method, rawURL, host, headers, body)
		})
	})
}

func (c *Client) once(ctx context.Context, method, rawURL, host string, headers map[string]string, body []byte) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, rawURL, reader)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(host, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(host, metrics.StatusClass(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, retry.NewStatusError(rawURL, resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
		URL:         rawURL,
	}, nil
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker[*Response] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	metrics.CircuitBreakerState.WithLabelValues(host).Set(0)
	threshold := c.config.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     c.config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only transient failures say anything about host health. A 404 or a
		// malformed document does not.
		IsSuccessful: func(err error) bool {
			return err == nil || !retry.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Upstream circuit breaker state change", logging.WithFields(map[string]interface{}{
				"host": name,
				"from": stateToString(from),
				"to":   stateToString(to),
			}))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})
	c.breakers[host] = cb
	return cb
}

// BreakerState reports the current breaker state for host, "closed" if none
// exists yet.
func (c *Client) BreakerState(host string) string {
	c.mu.Lock()
	cb, ok := c.breakers[host]
	c.mu.Unlock()
	if !ok {
		return stateToString(gobreaker.StateClosed)
	}
	return stateToString(cb.State())
}

// IsOpen reports whether err came from a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
