package resilience

import (
	"sync"
	"time"
)

// HealthStatus is the observed health of a source adapter.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "HEALTHY"
	HealthDegraded  HealthStatus = "DEGRADED"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
	HealthUnknown   HealthStatus = "UNKNOWN"
)

// HealthSnapshot is a point-in-time view of a source's health stats
// (spec.md §4.1).
type HealthSnapshot struct {
	TotalRequests       int64
	TotalFailures       int64
	ConsecutiveFailures int64
	FailureRatePct      float64
	AvgLatencyMs        float64
	LastSuccess         time.Time
	LastFailure         time.Time
	Healthy             bool
}

// HealthTracker accumulates per-source call outcomes under a single mutex,
// matching spec.md's "one mutex per health tracker" resource model.
type HealthTracker struct {
	mu                  sync.Mutex
	totalRequests       int64
	totalFailures       int64
	consecutiveFailures int64
	latencyTotal        time.Duration
	lastSuccess         time.Time
	lastFailure         time.Time
	unhealthyAfter      int64
}

// NewHealthTracker builds a tracker that flips unhealthy after N
// consecutive failures and recovers on the next success.
func NewHealthTracker(unhealthyAfterConsecutiveFailures int64) *HealthTracker {
	if unhealthyAfterConsecutiveFailures <= 0 {
		unhealthyAfterConsecutiveFailures = 3
	}
	return &HealthTracker{unhealthyAfter: unhealthyAfterConsecutiveFailures}
}

// RecordSuccess records a successful call and its latency.
func (h *HealthTracker) RecordSuccess(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalRequests++
	h.consecutiveFailures = 0
	h.latencyTotal += latency
	h.lastSuccess = time.Now()
}

// RecordFailure records a failed call.
func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalRequests++
	h.totalFailures++
	h.consecutiveFailures++
	h.lastFailure = time.Now()
}

// Snapshot returns the current derived health view.
func (h *HealthTracker) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	var failureRate, avgLatency float64
	if h.totalRequests > 0 {
		failureRate = float64(h.totalFailures) / float64(h.totalRequests) * 100
		avgLatency = float64(h.latencyTotal.Milliseconds()) / float64(h.totalRequests)
	}

	return HealthSnapshot{
		TotalRequests:       h.totalRequests,
		TotalFailures:       h.totalFailures,
		ConsecutiveFailures: h.consecutiveFailures,
		FailureRatePct:      failureRate,
		AvgLatencyMs:        avgLatency,
		LastSuccess:         h.lastSuccess,
		LastFailure:         h.lastFailure,
		Healthy:             h.consecutiveFailures < h.unhealthyAfter,
	}
}
