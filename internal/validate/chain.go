package validate

import (
	"context"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/errkind"
)

// Chain runs an ordered, configured set of rules against events. Order is
// deterministic: rules fire in the slice order they were built with, and a
// REJECTED_RULE short-circuits the remaining rules (spec.md §4.3).
type Chain struct {
	rules []Rule
}

// NewChain builds a chain from an explicit rule list, replacing the
// plugin/middleware dynamism of the Python original with an explicit
// builder (spec.md §9).
func NewChain(rules ...Rule) *Chain {
	return &Chain{rules: rules}
}

// DefaultChain returns the twelve-rule chain in the canonical order:
// liquidity gates first (cheapest, highest rejection rate), followed by
// content-quality gates, then the batch-aware corroboration rules, then
// pure scoring rules.
func DefaultChain(minLiquidityUSD float64) *Chain {
	return NewChain(
		NewLiquidityRule(minLiquidityUSD),
		NewProbabilityBoundsRule(),
		NewTitleQualityRule(),
		NewTemporalFreshnessRule(0),
		NewNewsQualityGateRule(),
		NewGeographicRelevanceRule(nil),
		NewCrossSourceRule(),
		NewSourceDiversityRule(),
		NewCommodityContextRule(),
		NewKeywordPresenceRule(),
		NewMarketVolumeRule(),
		NewDescriptionRichnessRule(),
	)
}

// Outcome is the result of validating one event: either it passed (Signal
// is populated) or it was rejected (Err identifies the offending rule).
type Outcome struct {
	Signal domain.ValidatedSignal
	Err    error
}

// Validate applies the chain to a single event, outside of a batch. Rules
// implementing BatchRule fall back to their single-event Apply.
func (c *Chain) Validate(ctx context.Context, event domain.RawEvent, rulesetVersion string) Outcome {
	return c.validateWithBatchScores(ctx, event, rulesetVersion, nil)
}

// ValidateBatch applies the chain to every event in a scheduling tick,
// giving BatchRule implementations (cross-source corroboration, source
// diversity) the full batch to correlate against.
func (c *Chain) ValidateBatch(ctx context.Context, events []domain.RawEvent, rulesetVersion string) []Outcome {
	batchScores := make(map[string]map[string]domain.ValidationResult)
	for _, rule := range c.rules {
		batchRule, ok := rule.(BatchRule)
		if !ok {
			continue
		}
		results := batchRule.ApplyBatch(ctx, events)
		for i, res := range results {
			if i >= len(events) {
				break
			}
			id := events[i].EventID
			if batchScores[id] == nil {
				batchScores[id] = make(map[string]domain.ValidationResult)
			}
			batchScores[id][rule.Name()] = res
		}
	}

	outcomes := make([]Outcome, len(events))
	for i, event := range events {
		outcomes[i] = c.validateWithBatchScores(ctx, event, rulesetVersion, batchScores[event.EventID])
	}
	return outcomes
}

func (c *Chain) validateWithBatchScores(ctx context.Context, event domain.RawEvent, rulesetVersion string, precomputed map[string]domain.ValidationResult) Outcome {
	var results []domain.ValidationResult
	var passedScores []float64

	for _, rule := range c.rules {
		var result domain.ValidationResult
		if precomputed != nil {
			if pre, ok := precomputed[rule.Name()]; ok {
				result = pre
			} else {
				result = rule.Apply(ctx, event)
			}
		} else {
			result = rule.Apply(ctx, event)
		}

		results = append(results, result)

		switch result.Status {
		case domain.ValidationRejected:
			return Outcome{
				Err: errkind.NewRuleError(result.RuleName, result.Reason),
			}
		case domain.ValidationPassed:
			passedScores = append(passedScores, result.Score)
		}
	}

	overall := 0.0
	if len(passedScores) > 0 {
		sum := 0.0
		for _, s := range passedScores {
			sum += s
		}
		overall = sum / float64(len(passedScores))
	}

	var liquidityScore float64
	for _, r := range results {
		if r.RuleName == "liquidity_validation" {
			liquidityScore = r.Score
		}
	}

	return Outcome{
		Signal: domain.ValidatedSignal{
			RawEvent:               event,
			ValidationResults:      results,
			OverallValidationScore: overall,
			LiquidityScore:         liquidityScore,
			SignalStrength:         overall,
			RulesetVersion:         rulesetVersion,
		},
	}
}
