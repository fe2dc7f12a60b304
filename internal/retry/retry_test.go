package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, Backoffs: []time.Duration{time.Millisecond}}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Errorf("Do() = %q after %d calls, want ok after 1", got, calls)
	}
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &StatusError{StatusCode: http.StatusServiceUnavailable, URL: "u"}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("Do() = %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestDo_NonTransientFailsImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), func(ctx context.Context) (int, error) {
		calls++
		return 0, &StatusError{StatusCode: http.StatusNotFound, URL: "u"}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("Do() error = %v, want 404 StatusError", err)
	}
}

func TestDo_ExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, &StatusError{StatusCode: 500 + calls, URL: "u"}
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 503 {
		t.Errorf("Do() error = %v, want last error (503)", err)
	}
}

func TestDo_PermanentUnwrapped(t *testing.T) {
	sentinel := errors.New("bad document")
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(sentinel)
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err != sentinel {
		t.Errorf("Do() error = %v, want sentinel", err)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, Backoffs: []time.Duration{time.Hour}}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
			calls++
			return 0, &StatusError{StatusCode: http.StatusBadGateway, URL: "u"}
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Do() should fail when cancelled")
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do() did not return after cancellation")
	}
}

func TestDo_OnRetry(t *testing.T) {
	var attempts []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		attempts = append(attempts, attempt)
	}
	_, _ = Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, &StatusError{StatusCode: 500, URL: "u"}
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestPolicyBackoff(t *testing.T) {
	p := DefaultPolicy()
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 2 * time.Second}
	for i, w := range want {
		if got := p.backoff(i); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &StatusError{StatusCode: 429}, true},
		{"500", &StatusError{StatusCode: 500}, true},
		{"503 wrapped", fmt.Errorf("fetch: %w", &StatusError{StatusCode: 503}), true},
		{"404", &StatusError{StatusCode: 404}, false},
		{"401", &StatusError{StatusCode: 401}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"net op", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "x"}, true},
		{"breaker open", gobreaker.ErrOpenState, false},
		{"permanent", Permanent(&StatusError{StatusCode: 503}), false},
		{"plain", errors.New("parse failure"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"120", 30 * time.Second},
		{"-1", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := ParseRetryAfter(tt.in); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
