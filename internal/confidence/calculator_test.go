package confidence

import (
	"testing"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCalculate_WeightedPointEstimate(t *testing.T) {
	c := NewCalculator()
	iv := c.Calculate(Input{BaseConfidence: 0.85, DataCompleteness: 0.90, SourceReliability: 0.95})

	assert.InDelta(t, 0.895, iv.Point, 1e-3)
	assert.Equal(t, "weighted_bayesian", iv.Method)
	assert.True(t, iv.Lower <= iv.Point && iv.Point <= iv.Upper)
	assert.True(t, iv.Lower >= 0 && iv.Upper <= 1)
}

func TestCalculate_SampleSizeTightensInterval(t *testing.T) {
	c := NewCalculator()
	narrow := c.Calculate(Input{BaseConfidence: 0.7, DataCompleteness: 0.5, SourceReliability: 0.5, SampleSize: 100})
	wide := c.Calculate(Input{BaseConfidence: 0.7, DataCompleteness: 0.5, SourceReliability: 0.5})

	assert.Less(t, narrow.Width(), wide.Width())
}

func TestCalculate_UncertaintyCappedAt025(t *testing.T) {
	c := NewCalculator()
	iv := c.Calculate(Input{BaseConfidence: 0.0, DataCompleteness: 0.0, SourceReliability: 0.0, ConfidenceLevel: 0.99})
	// z(0.99)=2.576; uncertainty capped at 0.25 => margin capped at 2.576*0.25=0.644
	assert.LessOrEqual(t, iv.Width(), 2*2.576*0.25+1e-6)
}

func TestCombine_SingleIntervalPassthrough(t *testing.T) {
	c := NewCalculator()
	iv := domain.ConfidenceInterval{Point: 0.6, Lower: 0.5, Upper: 0.7}
	combined := c.Combine([]domain.ConfidenceInterval{iv})
	assert.Equal(t, iv, combined)
}

func TestCombine_InverseVarianceWeighting(t *testing.T) {
	c := NewCalculator()
	precise := domain.ConfidenceInterval{Point: 0.8, Lower: 0.78, Upper: 0.82}
	imprecise := domain.ConfidenceInterval{Point: 0.3, Lower: 0.1, Upper: 0.5}

	combined := c.Combine([]domain.ConfidenceInterval{precise, imprecise})
	// combined should lean toward the precise (narrower) interval's point
	assert.Greater(t, combined.Point, 0.5)
	assert.Equal(t, "inverse_variance_weighted", combined.Method)
}

func TestAdjustForConflict_HighSeverityShiftsAndWidens(t *testing.T) {
	c := NewCalculator()
	iv := domain.ConfidenceInterval{Point: 0.8, Lower: 0.7, Upper: 0.9, Method: "weighted_bayesian"}

	adjusted := c.AdjustForConflict(iv, domain.ConflictHigh)
	assert.InDelta(t, 0.65, adjusted.Point, 1e-3)
	assert.Greater(t, adjusted.Width(), iv.Width())
	assert.Contains(t, adjusted.Method, "conflict_adjusted")
}

func TestAdjustForConflict_NoneIsNoOp(t *testing.T) {
	c := NewCalculator()
	iv := domain.ConfidenceInterval{Point: 0.8, Lower: 0.7, Upper: 0.9, Method: "weighted_bayesian"}
	adjusted := c.AdjustForConflict(iv, domain.ConflictNone)
	assert.Equal(t, iv.Point, adjusted.Point)
	assert.InDelta(t, iv.Width(), adjusted.Width(), 1e-9)
}

func TestLevel_Buckets(t *testing.T) {
	assert.Equal(t, domain.ConfidenceHigh, Level(0.75))
	assert.Equal(t, domain.ConfidenceMedium, Level(0.5))
	assert.Equal(t, domain.ConfidenceLow, Level(0.1))
}
