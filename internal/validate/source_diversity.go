package validate

import (
	"context"

	"github.com/hoangpro267200/omen/internal/domain"
)

// SourceDiversityRule rewards a batch that is confirmed across fundamentally
// different data modalities (market, physical, economic, media) rather than
// multiple sources of the same kind. Grounded on
// original_source/.../cross_source_validation.py (SourceDiversityRule).
type SourceDiversityRule struct{}

func NewSourceDiversityRule() *SourceDiversityRule { return &SourceDiversityRule{} }

var sourceModalities = map[domain.Source]string{
	domain.SourcePolymarket: "market",
	domain.SourceEquities:   "market",
	domain.SourceAIS:        "physical",
	domain.SourceWeather:    "physical",
	domain.SourceFreight:    "economic",
	domain.SourceCommodity:  "economic",
	domain.SourceNews:       "media",
}

func (r *SourceDiversityRule) Name() string    { return "source_diversity" }
func (r *SourceDiversityRule) Version() string { return "1.0.0" }

func (r *SourceDiversityRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	modality := sourceModalities[event.Source]
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: 0,
		Reason: "source type: " + modality,
	}
}

func (r *SourceDiversityRule) ApplyBatch(ctx context.Context, events []domain.RawEvent) []domain.ValidationResult {
	modalities := make(map[string]bool)
	for _, e := range events {
		if m, ok := sourceModalities[e.Source]; ok {
			modalities[m] = true
		}
	}

	var score float64
	switch len(modalities) {
	case 0, 1:
		score = 0.0
	case 2:
		score = 0.5
	default:
		score = 1.0
	}

	results := make([]domain.ValidationResult, len(events))
	for i := range events {
		results[i] = domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationPassed, Score: score,
			Reason: "source diversity scored across batch modalities",
		}
	}
	return results
}
