package validate

import (
	"context"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
)

// TemporalFreshnessRule rejects events observed long enough ago that they
// can no longer be considered live signal.
type TemporalFreshnessRule struct {
	MaxAge time.Duration
	now    func() time.Time
}

func NewTemporalFreshnessRule(maxAge time.Duration) *TemporalFreshnessRule {
	if maxAge <= 0 {
		maxAge = 72 * time.Hour
	}
	return &TemporalFreshnessRule{MaxAge: maxAge, now: time.Now}
}

func (r *TemporalFreshnessRule) Name() string    { return "temporal_freshness" }
func (r *TemporalFreshnessRule) Version() string { return "1.0.0" }

func (r *TemporalFreshnessRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	if event.ObservedAt.IsZero() {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationRejected, Score: 0,
			Reason: "missing observed_at timestamp",
		}
	}
	age := r.now().UTC().Sub(event.ObservedAt.UTC())
	if age > r.MaxAge {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationRejected, Score: 0,
			Reason: "event is stale beyond max freshness window",
		}
	}
	score := clamp01(1.0 - float64(age)/float64(r.MaxAge))
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: score,
		Reason: "within freshness window",
	}
}

// ProbabilityBoundsRule rejects a known probability outside [0,1]; unknown
// probabilities pass through (the pipeline falls back to 0.5).
type ProbabilityBoundsRule struct{}

func NewProbabilityBoundsRule() *ProbabilityBoundsRule { return &ProbabilityBoundsRule{} }

func (r *ProbabilityBoundsRule) Name() string    { return "probability_bounds" }
func (r *ProbabilityBoundsRule) Version() string { return "1.0.0" }

func (r *ProbabilityBoundsRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	if !event.ProbabilityKnown {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationPassed, Score: 0.5,
			Reason: "probability unknown - defaulted downstream",
		}
	}
	if event.Probability < 0 || event.Probability > 1 {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationRejected, Score: 0,
			Reason: "probability outside [0,1]",
		}
	}
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: 1.0,
		Reason: "probability within bounds",
	}
}

// KeywordPresenceRule scores how much extractable keyword signal an event
// carries; never rejects, since some sources legitimately carry none.
type KeywordPresenceRule struct {
	TargetCount int
}

func NewKeywordPresenceRule() *KeywordPresenceRule { return &KeywordPresenceRule{TargetCount: 5} }

func (r *KeywordPresenceRule) Name() string    { return "keyword_presence" }
func (r *KeywordPresenceRule) Version() string { return "1.0.0" }

func (r *KeywordPresenceRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	n := len(event.Keywords)
	score := clamp01(float64(n) / float64(r.TargetCount))
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: score,
		Reason: "scored by keyword count",
	}
}

// TitleQualityRule rejects events with an empty or near-empty title, the
// minimum viable text needed for classification and fingerprinting.
type TitleQualityRule struct {
	MinLength int
}

func NewTitleQualityRule() *TitleQualityRule { return &TitleQualityRule{MinLength: 8} }

func (r *TitleQualityRule) Name() string    { return "title_quality" }
func (r *TitleQualityRule) Version() string { return "1.0.0" }

func (r *TitleQualityRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	if len(event.Title) < r.MinLength {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationRejected, Score: 0,
			Reason: "title too short to classify",
		}
	}
	score := clamp01(float64(len(event.Title)) / 120.0)
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: score,
		Reason: "title length scored",
	}
}

// MarketVolumeRule scores (never rejects) the traded volume behind a
// market-backed event, distinct from the liquidity gate's pass/fail check.
type MarketVolumeRule struct {
	ReferenceVolumeUSD float64
}

func NewMarketVolumeRule() *MarketVolumeRule { return &MarketVolumeRule{ReferenceVolumeUSD: 100000} }

func (r *MarketVolumeRule) Name() string    { return "market_volume" }
func (r *MarketVolumeRule) Version() string { return "1.0.0" }

func (r *MarketVolumeRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	if event.Market == nil {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationPassed, Score: 0,
			Reason: "no market metadata - scored zero",
		}
	}
	score := clamp01(event.Market.VolumeUSD / r.ReferenceVolumeUSD)
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: score,
		Reason: "scored against reference volume",
	}
}

// DescriptionRichnessRule scores (never rejects) how much descriptive text
// accompanies the event, a weak proxy for enrichment quality downstream.
type DescriptionRichnessRule struct {
	TargetLength int
}

func NewDescriptionRichnessRule() *DescriptionRichnessRule {
	return &DescriptionRichnessRule{TargetLength: 200}
}

func (r *DescriptionRichnessRule) Name() string    { return "description_richness" }
func (r *DescriptionRichnessRule) Version() string { return "1.0.0" }

func (r *DescriptionRichnessRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	score := clamp01(float64(len(event.Description)) / float64(r.TargetLength))
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: score,
		Reason: "scored by description length",
	}
}
