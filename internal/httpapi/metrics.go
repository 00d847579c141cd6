package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoangpro267200/omen/internal/resilience"
)

// Metrics holds the Prometheus collectors exposed at /metrics, grounded
// on the teacher's internal/interfaces/http/metrics.go MetricsRegistry
// (same NewXVec-then-MustRegister-then-expose-via-promhttp shape), scaled
// down to what this package directly observes: pipeline outcomes from
// /api/v1/live/generate, per-source health from /health, and per-source
// breaker state from the same health pass.
type Metrics struct {
	PipelineOutcomes *prometheus.CounterVec
	SourceHealth     *prometheus.GaugeVec
	BreakerState     *prometheus.GaugeVec
}

// NewMetrics registers and returns the OMEN metrics collectors on the
// default registry. A later call reuses the collectors an earlier call
// already registered, so several Servers can live in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		PipelineOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omen_pipeline_outcomes_total",
				Help: "Count of pipeline Process outcomes by kind (dedupe, rejected, filtered, emitted, error, noop).",
			},
			[]string{"outcome"},
		),
		SourceHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "omen_source_healthy",
				Help: "1 if the source adapter's last health check was HEALTHY, 0 otherwise.",
			},
			[]string{"source"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "omen_breaker_state",
				Help: "Circuit breaker state per source: 0=closed, 1=half_open, 2=open.",
			},
			[]string{"source"},
		),
	}

	register := func(c prometheus.Collector) prometheus.Collector {
		if err := prometheus.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				return are.ExistingCollector
			}
			panic(err)
		}
		return c
	}
	m.PipelineOutcomes = register(m.PipelineOutcomes).(*prometheus.CounterVec)
	m.SourceHealth = register(m.SourceHealth).(*prometheus.GaugeVec)
	m.BreakerState = register(m.BreakerState).(*prometheus.GaugeVec)
	return m
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPipelineOutcome increments the pipeline-outcome counter for outcome.
func (m *Metrics) RecordPipelineOutcome(outcome string) {
	m.PipelineOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSourceHealth sets the health gauge for a source.
func (m *Metrics) RecordSourceHealth(source string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.SourceHealth.WithLabelValues(source).Set(v)
}

// RecordBreakerState sets the breaker-state gauge for a source.
func (m *Metrics) RecordBreakerState(source string, state resilience.State) {
	v := 0.0
	switch state {
	case resilience.StateHalfOpen:
		v = 1.0
	case resilience.StateOpen:
		v = 2.0
	}
	m.BreakerState.WithLabelValues(source).Set(v)
}
