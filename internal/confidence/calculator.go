// Package confidence implements the C6 confidence calculator: a weighted
// Bayesian point estimate with a confidence interval, combination across
// multiple intervals by inverse-variance weighting, and conflict-severity
// adjustment (spec.md §4.5). Grounded on
// original_source/src/omen/domain/services/confidence_calculator.py
// (EnhancedConfidenceCalculator).
package confidence

import (
	"math"

	"github.com/hoangpro267200/omen/internal/domain"
)

const (
	weightBase         = 0.40
	weightCompleteness = 0.30
	weightReliability  = 0.30

	baseUncertainty = 0.05
	maxUncertainty  = 0.25

	defaultConfidenceLevel = 0.95
)

var zScores = map[float64]float64{
	0.90: 1.645,
	0.95: 1.960,
	0.99: 2.576,
}

// Calculator computes ConfidenceInterval values per spec.md §4.5.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

// Input bundles the three weighted components plus an optional sample size
// that tightens the uncertainty term via the central limit theorem.
type Input struct {
	BaseConfidence    float64
	DataCompleteness  float64
	SourceReliability float64
	SampleSize        int
	ConfidenceLevel   float64
}

// Calculate computes the point estimate and interval for a single signal.
func (c *Calculator) Calculate(in Input) domain.ConfidenceInterval {
	base := clamp01(in.BaseConfidence)
	completeness := clamp01(in.DataCompleteness)
	reliability := clamp01(in.SourceReliability)

	level := in.ConfidenceLevel
	if level == 0 {
		level = defaultConfidenceLevel
	}

	point := pointEstimate(base, completeness, reliability)
	uncertainty := uncertaintyFor(completeness, reliability, in.SampleSize)
	z := zScoreFor(level)
	margin := z * uncertainty

	return domain.ConfidenceInterval{
		Point:  round4(point),
		Lower:  round4(clampFloor(point-margin, 0.0)),
		Upper:  round4(clampCeil(point+margin, 1.0)),
		Level:  level,
		Method: "weighted_bayesian",
	}
}

func pointEstimate(base, completeness, reliability float64) float64 {
	estimate := weightBase*base + weightCompleteness*completeness + weightReliability*reliability
	return clamp01(estimate)
}

func uncertaintyFor(completeness, reliability float64, sampleSize int) float64 {
	u := baseUncertainty
	if completeness < 1.0 {
		u += (1.0 - completeness) * 0.10
	}
	if reliability < 0.9 {
		u += (0.9 - reliability) * 0.10
	}
	if sampleSize > 0 {
		u /= math.Sqrt(float64(sampleSize))
	}
	if u > maxUncertainty {
		u = maxUncertainty
	}
	return u
}

func zScoreFor(level float64) float64 {
	if z, ok := zScores[level]; ok {
		return z
	}
	return zScores[defaultConfidenceLevel]
}

// Combine merges multiple intervals via inverse-variance weighting: wider
// (less precise) intervals contribute less to the combined estimate.
func (c *Calculator) Combine(intervals []domain.ConfidenceInterval) domain.ConfidenceInterval {
	if len(intervals) == 0 {
		return domain.ConfidenceInterval{Point: 0.5, Lower: 0.0, Upper: 1.0, Level: defaultConfidenceLevel, Method: "default"}
	}
	if len(intervals) == 1 {
		return intervals[0]
	}

	weights := make([]float64, len(intervals))
	var totalWeight float64
	for i, iv := range intervals {
		width := iv.Width()
		if width > 0 {
			weights[i] = 1.0 / (width * width)
		} else {
			weights[i] = 100.0
		}
		totalWeight += weights[i]
	}

	var weightedSum float64
	for i, iv := range intervals {
		weightedSum += weights[i] * iv.Point
	}
	combinedPoint := weightedSum / totalWeight

	combinedVariance := 1.0 / totalWeight
	combinedSE := math.Sqrt(combinedVariance)
	margin := zScores[defaultConfidenceLevel] * combinedSE

	return domain.ConfidenceInterval{
		Point:  round4(combinedPoint),
		Lower:  round4(clampFloor(combinedPoint-margin, 0.0)),
		Upper:  round4(clampCeil(combinedPoint+margin, 1.0)),
		Level:  defaultConfidenceLevel,
		Method: "inverse_variance_weighted",
	}
}

// conflictAdjustments maps a conflict severity to (point shift, width
// multiplier), per spec.md §4.6.
var conflictAdjustments = map[domain.ConflictSeverity]struct {
	PointShift    float64
	WidthMultiplier float64
}{
	domain.ConflictNone:   {0.0, 1.0},
	domain.ConflictLow:    {-0.03, 1.1},
	domain.ConflictMedium: {-0.08, 1.3},
	domain.ConflictHigh:   {-0.15, 1.5},
}

// AdjustForConflict widens an interval and shifts its point estimate down
// in response to detected cross-source conflict (spec.md §4.6).
func (c *Calculator) AdjustForConflict(iv domain.ConfidenceInterval, severity domain.ConflictSeverity) domain.ConfidenceInterval {
	adj, ok := conflictAdjustments[severity]
	if !ok {
		adj = conflictAdjustments[domain.ConflictNone]
	}

	newPoint := clampRange(iv.Point+adj.PointShift, 0.1, 1.0)
	newWidth := iv.Width() * adj.WidthMultiplier

	newLower := clampFloor(newPoint-newWidth/2, 0.0)
	newUpper := clampCeil(newPoint+newWidth/2, 1.0)

	return domain.ConfidenceInterval{
		Point:  round4(newPoint),
		Lower:  round4(newLower),
		Upper:  round4(newUpper),
		Level:  iv.Level,
		Method: iv.Method + "_conflict_adjusted",
	}
}

// Level buckets a point estimate into HIGH/MEDIUM/LOW (spec.md §4.5).
func Level(point float64) domain.ConfidenceLevel {
	switch {
	case point >= 0.7:
		return domain.ConfidenceHigh
	case point >= 0.4:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFloor(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}

func clampCeil(v, ceil float64) float64 {
	if v > ceil {
		return ceil
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	return clampCeil(clampFloor(v, lo), hi)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
