// Package retry runs a single network operation with bounded retries on
// transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
)

const maxRetryAfter = 30 * time.Second

// Policy bounds the number of attempts and the wait between them. The last
// backoff step repeats when MaxAttempts exceeds len(Backoffs)+1.
type Policy struct {
	MaxAttempts int
	Backoffs    []time.Duration

	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns the default retry policy
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoffs:    []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second},
	}
}

func (p Policy) backoff(attempt int) time.Duration {
	if len(p.Backoffs) == 0 {
		return 0
	}
	if attempt >= len(p.Backoffs) {
		return p.Backoffs[len(p.Backoffs)-1]
	}
	return p.Backoffs[attempt]
}

// Do calls op until it succeeds, fails with a non-transient error, or the
// attempts run out. The last observed error is returned.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == attempts-1 {
			break
		}

		wait := p.backoff(attempt)
		var se *StatusError
		if errors.As(err, &se) && se.RetryAfter > wait {
			wait = se.RetryAfter
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	var perm *permanentError
	if errors.As(lastErr, &perm) {
		return zero, perm.err
	}
	return zero, lastErr
}

// StatusError reports a non-success HTTP status from an upstream.
type StatusError struct {
	StatusCode int
	URL        string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// NewStatusError builds a StatusError, reading Retry-After when present.
func NewStatusError(url string, resp *http.Response) *StatusError {
	se := &StatusError{StatusCode: resp.StatusCode, URL: url}
	if resp.StatusCode == http.StatusTooManyRequests {
		se.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return se
}

// ParseRetryAfter accepts the delta-seconds form and caps it at 30s.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTransient reports whether err belongs to a class that may succeed on a
// later attempt: 429, 5xx, connection failures and per-attempt timeouts.
// Parent context cancellation and open circuit breakers are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
