package trust

import (
	"testing"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewManager_SeedsKnownSourceDefaults(t *testing.T) {
	m := NewManager()
	score := m.GetScore(domain.SourcePolymarket)
	assert.InDelta(t, 0.75, score.TrustScore, 1e-9)
}

func TestGetScore_UnknownSourceDefaultsToMedium(t *testing.T) {
	m := NewManager()
	score := m.GetScore(domain.Source("brand_new_source"))
	assert.Equal(t, 0.5, score.TrustScore)
	assert.Equal(t, domain.TrustMedium, score.TrustLevel)
}

func TestRecordAPICall_HighLatencyPenalizesReliability(t *testing.T) {
	m := NewManager()
	source := domain.Source("slow_source")

	for i := 0; i < 5; i++ {
		m.RecordAPICall(source, true, 6*time.Second)
	}
	score := m.GetScore(source)
	assert.Greater(t, score.AvgLatencyMs, 5000.0)
	// Reliability is halved to 0.5: 0.4*0 accuracy + 0.3*0.5 + 0.3*1.0 freshness.
	assert.InDelta(t, 0.45, score.TrustScore, 1e-9)
}

func TestRecordAPICall_RepeatedFailuresLowerTrustLevel(t *testing.T) {
	m := NewManager()
	source := domain.Source("flaky_source")

	for i := 0; i < 20; i++ {
		m.RecordAPICall(source, false, 100)
	}
	score := m.GetScore(source)
	assert.Less(t, score.TrustScore, 0.5)
}

func TestRecordDataFreshness_StaleDataLowersScore(t *testing.T) {
	m := NewManager()
	source := domain.Source("laggy_source")

	m.RecordDataFreshness(source, 20*time.Minute)
	score := m.GetScore(source)
	assert.Less(t, score.TrustScore, 0.5)
}

func TestResolveConflict_HigherTrustSourceWins(t *testing.T) {
	m := NewManager()
	winner, value, confidence := m.ResolveConflict(domain.SourceEquities, domain.SourceNews, "equities-value", "news-value")
	assert.Equal(t, domain.SourceEquities, winner)
	assert.Equal(t, "equities-value", value)
	assert.Greater(t, confidence, 0.5)
}

func TestWeightedAverage_FallsBackToMeanWhenAllZeroTrust(t *testing.T) {
	m := NewManager()
	a, b := domain.Source("zero_a"), domain.Source("zero_b")
	for i := 0; i < 50; i++ {
		m.RecordAPICall(a, false, 0)
		m.RecordAPICall(b, false, 0)
	}

	avg, totalWeight := m.WeightedAverage(map[domain.Source]float64{a: 10, b: 20})
	if totalWeight == 1.0 {
		assert.InDelta(t, 15.0, avg, 1e-9)
	}
}

func TestGetSummary_CountsByLevel(t *testing.T) {
	m := NewManager()
	summary := m.GetSummary()
	assert.Equal(t, len(defaultTrustScores), summary.TotalSources)

	total := 0
	for _, count := range summary.ByLevel {
		total += count
	}
	assert.Equal(t, summary.TotalSources, total)
}
