package sources

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HealthScheduler periodically probes every registered adapter's
// HealthCheck, independent of whether it's actively being fetched from.
// Supplemented feature grounded on
// original_source/.../health/source_health_registration.py.
type HealthScheduler struct {
	registry *Registry
	interval time.Duration
	log      zerolog.Logger

	mu      sync.RWMutex
	results map[string]HealthCheckResult

	stop chan struct{}
	done chan struct{}
}

// NewHealthScheduler builds a scheduler that probes every registered
// adapter every interval.
func NewHealthScheduler(registry *Registry, interval time.Duration, log zerolog.Logger) *HealthScheduler {
	return &HealthScheduler{
		registry: registry,
		interval: interval,
		log:      log.With().Str("component", "health_scheduler").Logger(),
		results:  make(map[string]HealthCheckResult),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the probe loop until ctx is cancelled or Stop is called.
func (s *HealthScheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *HealthScheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.probeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.probeAll(ctx)
		}
	}
}

func (s *HealthScheduler) probeAll(ctx context.Context) {
	for _, adapter := range s.registry.Enabled() {
		result := adapter.HealthCheck(ctx)
		s.mu.Lock()
		s.results[string(adapter.Name())] = result
		s.mu.Unlock()
		if result.Status != "HEALTHY" {
			s.log.Warn().
				Str("source", string(adapter.Name())).
				Str("status", string(result.Status)).
				Str("error", result.Error).
				Msg("source health probe degraded")
		}
	}
}

// Stop halts the probe loop and waits for it to exit.
func (s *HealthScheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Snapshot returns the most recent probe result for every source.
func (s *HealthScheduler) Snapshot() map[string]HealthCheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]HealthCheckResult, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}
