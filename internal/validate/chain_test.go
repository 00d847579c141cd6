package validate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redSeaEvent(liquidity float64) domain.RawEvent {
	return domain.RawEvent{
		EventID:          "test-hq-001",
		Source:           domain.SourcePolymarket,
		Title:            "Red Sea shipping disruption due to Houthi attacks",
		Description:      "Houthi forces have escalated attacks on commercial vessels transiting the Red Sea.",
		Probability:      0.75,
		ProbabilityKnown: true,
		Keywords:         []string{"red sea", "shipping", "houthi", "suez"},
		InferredLocations: []domain.Location{
			{Name: "Red Sea"},
		},
		Market: &domain.MarketMeta{
			LiquidityUSD: liquidity,
			VolumeUSD:    500000,
		},
		ObservedAt: time.Now().UTC(),
	}
}

func TestChain_S1_HighQualityRedSeaEvent(t *testing.T) {
	chain := DefaultChain(1000.0)
	outcome := chain.Validate(context.Background(), redSeaEvent(75000), "v1")

	require.NoError(t, outcome.Err)
	assert.Greater(t, outcome.Signal.OverallValidationScore, 0.0)
	assert.Equal(t, "v1", outcome.Signal.RulesetVersion)

	for _, r := range outcome.Signal.ValidationResults {
		assert.NotEqual(t, domain.ValidationRejected, r.Status)
	}
}

func TestChain_S2_LowLiquidityRejected(t *testing.T) {
	chain := DefaultChain(1000.0)
	outcome := chain.Validate(context.Background(), redSeaEvent(50), "v1")

	require.Error(t, outcome.Err)
	var ruleErr *errkind.RuleError
	require.True(t, errors.As(outcome.Err, &ruleErr))
	assert.Equal(t, "liquidity_validation", ruleErr.RuleName)
	assert.True(t, errors.Is(outcome.Err, errkind.ErrValidationRule) || ruleErr.Err != nil)
}

func TestChain_RejectionShortCircuits(t *testing.T) {
	calls := 0
	countingRule := &countingPassRule{calls: &calls}
	chain := NewChain(NewLiquidityRule(1000.0), countingRule)

	outcome := chain.Validate(context.Background(), redSeaEvent(0), "v1")
	require.Error(t, outcome.Err)
	assert.Equal(t, 0, calls, "later rules must not run after a rejection")
}

func TestChain_OverallScoreExcludesSkipped(t *testing.T) {
	chain := NewChain(NewLiquidityRule(1000.0), &skippingRule{})
	outcome := chain.Validate(context.Background(), redSeaEvent(75000), "v1")

	require.NoError(t, outcome.Err)
	// With one PASSED (liquidity) and one SKIPPED rule, overall score must
	// equal the liquidity score alone.
	var liquidityScore float64
	for _, r := range outcome.Signal.ValidationResults {
		if r.RuleName == "liquidity_validation" {
			liquidityScore = r.Score
		}
	}
	assert.Equal(t, liquidityScore, outcome.Signal.OverallValidationScore)
}

func TestChain_ValidateBatch_CrossSourceBoost(t *testing.T) {
	chain := NewChain(NewCrossSourceRule())
	events := []domain.RawEvent{
		{EventID: "e1", Source: domain.SourceAIS, Keywords: []string{"congestion", "port"}, InferredLocations: []domain.Location{{Name: "Singapore"}}},
		{EventID: "e2", Source: domain.SourceFreight, Keywords: []string{"congestion", "rate"}, InferredLocations: []domain.Location{{Name: "Singapore"}}},
	}
	outcomes := chain.ValidateBatch(context.Background(), events, "v1")
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		assert.Greater(t, o.Signal.OverallValidationScore, 0.0)
	}
}

type countingPassRule struct{ calls *int }

func (r *countingPassRule) Name() string    { return "counting" }
func (r *countingPassRule) Version() string { return "1.0.0" }
func (r *countingPassRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	*r.calls++
	return domain.ValidationResult{RuleName: r.Name(), RuleVersion: r.Version(), Status: domain.ValidationPassed, Score: 1.0}
}

type skippingRule struct{}

func (r *skippingRule) Name() string    { return "skipping" }
func (r *skippingRule) Version() string { return "1.0.0" }
func (r *skippingRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	return domain.ValidationResult{RuleName: r.Name(), RuleVersion: r.Version(), Status: domain.ValidationSkipped, Score: 0}
}
