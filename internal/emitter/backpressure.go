package emitter

import (
	"context"
	"math"
	"sync"
	"time"
)

// Backpressure tracks consecutive hot-path failures and imposes a sleep
// window once threshold is reached, per spec.md §4.9: "after threshold
// consecutive hot-path failures, enter a sleep window of
// min(max_backoff, 2^consecutive_failures) seconds; any emit during the
// window waits."
type Backpressure struct {
	mu        sync.Mutex
	threshold int
	maxBackoff time.Duration

	consecutiveFailures int
	resumeAt            time.Time
}

// NewBackpressure builds a controller that starts sleeping after threshold
// consecutive failures, capped at maxBackoff.
func NewBackpressure(threshold int, maxBackoff time.Duration) *Backpressure {
	if threshold <= 0 {
		threshold = 5
	}
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Minute
	}
	return &Backpressure{threshold: threshold, maxBackoff: maxBackoff}
}

// RecordSuccess clears the failure streak and any pending sleep window.
func (b *Backpressure) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.resumeAt = time.Time{}
}

// RecordFailure extends the failure streak and, once it reaches threshold,
// (re)computes the sleep window from the current streak length.
func (b *Backpressure) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	if b.consecutiveFailures < b.threshold {
		return
	}
	seconds := math.Pow(2, float64(b.consecutiveFailures))
	window := time.Duration(seconds) * time.Second
	if window > b.maxBackoff || seconds <= 0 {
		window = b.maxBackoff
	}
	b.resumeAt = time.Now().Add(window)
}

// WaitIfNeeded blocks until any active sleep window elapses, or ctx is
// cancelled. A call outside a sleep window returns immediately.
func (b *Backpressure) WaitIfNeeded(ctx context.Context) error {
	b.mu.Lock()
	wait := time.Until(b.resumeAt)
	b.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// InWindow reports whether a caller would currently have to wait.
func (b *Backpressure) InWindow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Now().Before(b.resumeAt)
}
