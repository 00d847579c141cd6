package validate

import (
	"context"
	"fmt"

	"github.com/hoangpro267200/omen/internal/domain"
)

// LiquidityRule rejects events whose backing market lacks a minimum level
// of committed capital, a proxy for how seriously the market is pricing the
// event. Grounded on
// original_source/src/omen/domain/rules/validation/liquidity_rule.py
// (LiquidityValidationRule, min_liquidity_usd default 1000.0).
type LiquidityRule struct {
	MinLiquidityUSD float64
}

// NewLiquidityRule builds the rule with the Python original's default
// threshold when min is zero.
func NewLiquidityRule(min float64) *LiquidityRule {
	if min <= 0 {
		min = 1000.0
	}
	return &LiquidityRule{MinLiquidityUSD: min}
}

func (r *LiquidityRule) Name() string    { return "liquidity_validation" }
func (r *LiquidityRule) Version() string { return "1.0.0" }

func (r *LiquidityRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	if event.Market == nil {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationRejected, Score: 0,
			Reason: "no market metadata present",
		}
	}

	liquidity := event.Market.LiquidityUSD
	if liquidity < r.MinLiquidityUSD {
		return domain.ValidationResult{
			RuleName: r.Name(), RuleVersion: r.Version(),
			Status: domain.ValidationRejected, Score: 0,
			Reason: fmt.Sprintf("liquidity $%.2f below minimum $%.2f", liquidity, r.MinLiquidityUSD),
		}
	}

	score := liquidity / (liquidity + r.MinLiquidityUSD)
	if score > 1.0 {
		score = 1.0
	}
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: score,
		Reason: fmt.Sprintf("sufficient liquidity (score=%.3f)", score),
	}
}
