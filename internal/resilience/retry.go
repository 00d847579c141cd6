package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// RetryConfig controls exponential backoff retry behavior (spec.md §4.1).
type RetryConfig struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Multiplier        float64
	RetryableStatuses map[int]bool
}

// DefaultRetryConfig mirrors the Python original's RetryConfig defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		RetryableStatuses: map[int]bool{
			408: true, 429: true, 500: true, 502: true, 503: true, 504: true,
		},
	}
}

// Delay returns the backoff delay for the given zero-based attempt number.
func (c RetryConfig) Delay(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	// small jitter to avoid thundering herd across many adapters retrying together
	jitter := 1.0 + (rand.Float64()-0.5)*0.1
	return time.Duration(d * jitter)
}

// IsRetryableStatus reports whether an HTTP status code is in the retryable set.
func (c RetryConfig) IsRetryableStatus(status int) bool {
	return c.RetryableStatuses[status]
}

// IsRetryableErr reports whether err represents a timeout or transient
// network condition worth retrying.
func IsRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn up to cfg.MaxAttempts times, sleeping with exponential backoff
// between attempts, retrying only while shouldRetry(err) is true. Callers
// whose operation is not idempotent must pass a shouldRetry that always
// returns false, per spec.md §4.1.
func Do(ctx context.Context, cfg RetryConfig, shouldRetry func(err error) bool, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay(attempt)):
		}
	}
	return lastErr
}

// ShouldRetryHTTP builds a shouldRetry predicate from an HTTP response's
// status code (when available) combined with transient network errors.
func ShouldRetryHTTP(cfg RetryConfig, resp *http.Response, err error) bool {
	if err != nil {
		return IsRetryableErr(err)
	}
	if resp == nil {
		return false
	}
	return cfg.IsRetryableStatus(resp.StatusCode)
}
