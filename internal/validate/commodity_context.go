package validate

import (
	"context"
	"fmt"

	"github.com/hoangpro267200/omen/internal/domain"
)

// CommodityContextRule is context-only: it never rejects and always scores
// 1.0; it annotates a commodity-sourced event's z-score/spike metadata into
// the result's reason for downstream explanation. Grounded on
// original_source/tests/unit/domain/test_phase2_validation_rules.py
// (CommodityContextRule: non-commodity and news signals pass through
// unchanged at score 1.0).
type CommodityContextRule struct{}

func NewCommodityContextRule() *CommodityContextRule { return &CommodityContextRule{} }

func (r *CommodityContextRule) Name() string    { return "commodity_context" }
func (r *CommodityContextRule) Version() string { return "1.0.0" }

func (r *CommodityContextRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	if event.Source != domain.SourceCommodity {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationPassed, Score: 1.0,
			Reason: "not a commodity source - context rule is a no-op",
		}
	}

	isSpike, _ := boolMetric(event.SourceMetrics, "is_spike")
	zscore, hasZ := floatMetric(event.SourceMetrics, "zscore")

	if !isSpike {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationPassed, Score: 1.0,
			Reason: "no commodity price spike detected",
		}
	}

	reason := "commodity price spike detected"
	if hasZ {
		reason = fmt.Sprintf("commodity price spike detected (zscore=%.2f)", zscore)
	}
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: 1.0,
		Reason: reason,
	}
}
