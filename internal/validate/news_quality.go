package validate

import (
	"context"

	"github.com/hoangpro267200/omen/internal/domain"
)

// NewsQualityGateRule fail-closes on low-credibility, stale, or duplicate
// news articles; non-news events pass through untouched. Grounded on
// original_source/tests/unit/domain/test_phase2_validation_rules.py
// (NewsQualityGateRule thresholds inferred from its fixtures: 0.1
// credibility and 0.05 recency reject, 0.9/0.9 pass; combined_score 0.15
// rejects, 0.97 passes with score > 0.5).
type NewsQualityGateRule struct {
	MinCredibility   float64
	MinRecency       float64
	MinCombinedScore float64
	MaxConfidenceBoost float64
}

func NewNewsQualityGateRule() *NewsQualityGateRule {
	return &NewsQualityGateRule{
		MinCredibility:     0.2,
		MinRecency:         0.1,
		MinCombinedScore:   0.2,
		MaxConfidenceBoost: 1.0,
	}
}

func (r *NewsQualityGateRule) Name() string    { return "news_quality_gate" }
func (r *NewsQualityGateRule) Version() string { return "1.0.0" }

func (r *NewsQualityGateRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	if len(event.SourceMetrics) == 0 {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationPassed, Score: 1.0,
			Reason: "not a news source - no source metrics to gate on",
		}
	}

	credibility, hasCred := floatMetric(event.SourceMetrics, "credibility_score")
	recency, hasRecency := floatMetric(event.SourceMetrics, "recency_score")
	combined, hasCombined := floatMetric(event.SourceMetrics, "combined_score")
	isDuplicate, _ := boolMetric(event.SourceMetrics, "is_duplicate")

	if !hasCred && !hasRecency && !hasCombined {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationPassed, Score: 1.0,
			Reason: "not a news source - no quality metrics present",
		}
	}

	if isDuplicate {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationRejected, Score: 0,
			Reason: "duplicate article detected",
		}
	}
	if hasCred && credibility < r.MinCredibility {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationRejected, Score: 0,
			Reason: "credibility score below minimum threshold",
		}
	}
	if hasRecency && recency < r.MinRecency {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationRejected, Score: 0,
			Reason: "stale article - recency score below minimum",
		}
	}
	if hasCombined && combined < r.MinCombinedScore {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationRejected, Score: 0,
			Reason: "combined quality score below minimum threshold",
		}
	}

	score := clamp01(combined * r.MaxConfidenceBoost)
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: score,
		Reason: "news quality within bounds",
	}
}

func floatMetric(metrics map[string]any, key string) (float64, bool) {
	v, ok := metrics[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func boolMetric(metrics map[string]any, key string) (bool, bool) {
	v, ok := metrics[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
