package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/resilience"
)

// Mock is a deterministic in-memory adapter used when a source is not
// REAL-classified (missing credentials, explicit --mock flag) or in tests.
// Grounded on the teacher's MockProvider pattern in
// internal/infrastructure/providers.
type Mock struct {
	Base
	name   domain.Source
	events []domain.RawEvent
}

// NewMock builds a mock adapter that always returns a fixed event set.
func NewMock(name domain.Source, registry *resilience.Registry, events []domain.RawEvent) *Mock {
	return &Mock{
		Base:   NewBase(name, registry, 5*time.Second),
		name:   name,
		events: events,
	}
}

func (m *Mock) Name() domain.Source { return m.name }
func (m *Mock) IsConfigured() bool  { return true }

func (m *Mock) FetchEvents(ctx context.Context, limit int) ([]domain.RawEvent, error) {
	n := len(m.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.RawEvent, n)
	copy(out, m.events[:n])
	return out, nil
}

func (m *Mock) HealthCheck(ctx context.Context) HealthCheckResult {
	return HealthCheckResult{Status: resilience.HealthHealthy}
}

// SampleEvent builds a deterministic synthetic RawEvent for a source, used
// to seed Mock adapters and in tests.
func SampleEvent(source domain.Source, idx int) domain.RawEvent {
	return domain.RawEvent{
		EventID:          fmt.Sprintf("%s:mock:%d", source, idx),
		Source:           source,
		Title:            fmt.Sprintf("mock %s event %d", source, idx),
		Description:      "synthetic event for mock source",
		Probability:      0.5,
		ProbabilityKnown: true,
		Keywords:         []string{"mock", string(source)},
		ObservedAt:       time.Unix(int64(1_700_000_000+idx), 0).UTC(),
	}
}
