// Package resilience implements the ingestion fabric's failure-absorption
// primitives: a three-state circuit breaker with sliding-window failure
// rate tripping, exponential-backoff retry, and per-source health
// tracking (spec.md §4.1). The breaker wraps github.com/sony/gobreaker the
// way the teacher's internal/infrastructure/providers/circuitbreakers.go
// wraps it, adding the combined consecutive-failure OR sliding-window-rate
// trip condition the Python original implements by hand.
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// State mirrors gobreaker's three states under OMEN's own names so callers
// never import gobreaker directly.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config is the breaker's tunable thresholds (spec.md §4.1).
type Config struct {
	FailureThreshold    uint32        // consecutive failures to trip
	SuccessThreshold    uint32        // consecutive half-open successes to close
	Timeout             time.Duration // time in OPEN before probing
	HalfOpenMaxCalls    uint32        // concurrent probes admitted in HALF_OPEN
	WindowSize          time.Duration // sliding window for failure-rate trip
	FailureRateThreshold float64      // trip if window rate >= this
	MinCallsInWindow    uint32        // window must have at least this many calls
}

// DefaultConfig mirrors the Python original's CircuitBreakerConfig defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:     5,
		SuccessThreshold:     3,
		Timeout:              30 * time.Second,
		HalfOpenMaxCalls:     3,
		WindowSize:           60 * time.Second,
		FailureRateThreshold: 0.5,
		MinCallsInWindow:     10,
	}
}

// ErrOpen is returned (wrapped with retry-after) when a call is fast-failed.
type ErrOpen struct {
	Name       string
	RetryAfter time.Duration
}

func (e *ErrOpen) Error() string {
	return fmt.Sprintf("circuit %q is open, retry after %.1fs", e.Name, e.RetryAfter.Seconds())
}

// CircuitBreaker is a named, mutex-serialized breaker. The call itself runs
// outside the lock; only state transitions are serialized.
//
// gobreaker's own MaxRequests conflates two concerns: the number of probe
// calls admitted concurrently in HALF_OPEN, and the number of consecutive
// successes gobreaker itself requires before auto-closing. MaxRequests is
// set to cfg.HalfOpenMaxCalls for the former; cfg.SuccessThreshold is
// enforced independently as halfOpenSuccesses below, so the two thresholds
// stay distinct even when they differ (spec.md §4.1 invariant #7). Whichever
// threshold is reached first closes the breaker.
type CircuitBreaker struct {
	name   string
	cfg    Config
	mu     sync.Mutex
	cb     *gobreaker.CircuitBreaker
	opened time.Time

	halfOpenSuccesses uint32

	onStateChange func(from, to State)
}

// New constructs a breaker named for metrics/logging.
func New(name string, cfg Config, onStateChange func(from, to State)) *CircuitBreaker {
	b := &CircuitBreaker{name: name, cfg: cfg, onStateChange: onStateChange}
	b.cb = gobreaker.NewCircuitBreaker(b.buildSettings())
	return b
}

func (b *CircuitBreaker) buildSettings() gobreaker.Settings {
	cfg := b.cfg
	return gobreaker.Settings{
		Name:        b.name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Interval:    cfg.WindowSize,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			if counts.Requests >= cfg.MinCallsInWindow {
				rate := float64(counts.TotalFailures) / float64(counts.Requests)
				if rate >= cfg.FailureRateThreshold {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.mu.Lock()
			if to == gobreaker.StateOpen {
				b.opened = time.Now()
			}
			if to == gobreaker.StateHalfOpen {
				b.halfOpenSuccesses = 0
			}
			b.mu.Unlock()
			if b.onStateChange != nil {
				b.onStateChange(fromGobreaker(from), fromGobreaker(to))
			}
		},
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() State { return fromGobreaker(b.cb.State()) }

// Execute runs fn through the breaker. If the breaker is open it fails fast
// with *ErrOpen carrying a retry-after duration, without invoking fn.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	wasHalfOpen := b.cb.State() == gobreaker.StateHalfOpen
	result, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, &ErrOpen{Name: b.name, RetryAfter: b.retryAfter()}
	}
	if err == nil && wasHalfOpen {
		b.recordHalfOpenSuccess()
	}
	return result, err
}

// recordHalfOpenSuccess enforces cfg.SuccessThreshold as a close condition
// distinct from gobreaker's own MaxRequests-driven auto-close: once enough
// consecutive half-open successes land, the breaker is forced closed even
// if SuccessThreshold is smaller than HalfOpenMaxCalls.
func (b *CircuitBreaker) recordHalfOpenSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cb.State() != gobreaker.StateHalfOpen {
		return
	}
	b.halfOpenSuccesses++
	if b.halfOpenSuccesses >= b.cfg.SuccessThreshold {
		b.cb = gobreaker.NewCircuitBreaker(b.buildSettings())
	}
}

func (b *CircuitBreaker) retryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened.IsZero() {
		return b.cfg.Timeout
	}
	elapsed := time.Since(b.opened)
	remaining := b.cfg.Timeout - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset manually returns the breaker to CLOSED.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halfOpenSuccesses = 0
	b.cb = gobreaker.NewCircuitBreaker(b.buildSettings())
}

// Registry tracks named breakers for metrics exposure, mirroring the
// teacher's CircuitBreakerManager map-of-breakers structure.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry constructs an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker)}
}

// GetOrCreate returns the named breaker, creating it with cfg if absent.
func (r *Registry) GetOrCreate(name string, cfg Config, onStateChange func(from, to State)) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, cfg, onStateChange)
	r.breakers[name] = b
	return b
}

// Get returns the named breaker if registered.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[name]
	return b, ok
}

// All returns a snapshot of every registered breaker's name and state.
func (r *Registry) All() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}
