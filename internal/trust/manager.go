// Package trust tracks per-source reliability: accuracy, API call
// success/latency, and data freshness, rolled into a single trust score
// and level consumed by the confidence calculator (spec.md §4.5, §4.7) and
// conflict resolution. Grounded on
// original_source/src/omen/domain/services/source_trust_manager.py
// (SourceTrustManager / SourceTrustScore).
package trust

import (
	"sync"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
)

const (
	accuracyWeight    = 0.4
	reliabilityWeight = 0.3
	freshnessWeight   = 0.3

	latencyEMAAlpha    = 0.1
	errorRateEMAAlpha  = 0.05
	freshnessEMAAlpha  = 0.1
	highLatencyMs      = 5000.0
)

// defaultTrustScores seeds known sources at a plausible starting
// reliability rather than the cold-start 0.5 every unknown source gets.
var defaultTrustScores = map[domain.Source]float64{
	domain.SourcePolymarket: 0.75,
	domain.SourceEquities:   0.85,
	domain.SourceCommodity:  0.80,
	domain.SourceAIS:        0.70,
	domain.SourceWeather:    0.85,
	domain.SourceFreight:    0.75,
	domain.SourceNews:       0.60,
}

// Score is one source's current trust state. All mutation happens through
// Manager, which guards every score with its single manager-wide mutex.
type Score struct {
	SourceID domain.Source

	TrustLevel domain.TrustLevel
	TrustScore float64

	AccuracyRate    float64
	TotalSignals    int64
	AccurateSignals int64

	AvgLatencyMs float64
	ErrorRate    float64

	AvgDataAgeSeconds   float64
	LastSuccessfulFetch time.Time

	LastUpdated time.Time
}

func newScore(source domain.Source, initial float64) *Score {
	s := &Score{SourceID: source, TrustScore: initial, LastUpdated: time.Now().UTC()}
	// The seed stands as the score until the first recorded update
	// recalculates it from the component metrics.
	switch {
	case initial >= 0.9:
		s.TrustLevel = domain.TrustAuthoritative
	case initial >= 0.7:
		s.TrustLevel = domain.TrustHigh
	case initial >= 0.5:
		s.TrustLevel = domain.TrustMedium
	case initial >= 0.3:
		s.TrustLevel = domain.TrustLow
	default:
		s.TrustLevel = domain.TrustUntrusted
	}
	return s
}

func (s *Score) updateAccuracy(wasAccurate bool) {
	s.TotalSignals++
	if wasAccurate {
		s.AccurateSignals++
	}
	if s.TotalSignals > 0 {
		s.AccuracyRate = float64(s.AccurateSignals) / float64(s.TotalSignals)
	}
	s.recalculate()
}

func (s *Score) updateReliability(success bool, latencyMs float64) {
	if s.AvgLatencyMs == 0 {
		s.AvgLatencyMs = latencyMs
	} else {
		s.AvgLatencyMs = latencyEMAAlpha*latencyMs + (1-latencyEMAAlpha)*s.AvgLatencyMs
	}

	errorValue := 0.0
	if !success {
		errorValue = 1.0
	}
	s.ErrorRate = errorRateEMAAlpha*errorValue + (1-errorRateEMAAlpha)*s.ErrorRate

	if success {
		s.LastSuccessfulFetch = time.Now().UTC()
	}
	s.recalculate()
}

func (s *Score) updateFreshness(dataAgeSeconds float64) {
	if s.AvgDataAgeSeconds == 0 {
		s.AvgDataAgeSeconds = dataAgeSeconds
	} else {
		s.AvgDataAgeSeconds = freshnessEMAAlpha*dataAgeSeconds + (1-freshnessEMAAlpha)*s.AvgDataAgeSeconds
	}
	s.recalculate()
}

func (s *Score) recalculate() {
	accuracyScore := s.AccuracyRate

	reliabilityScore := 1.0 - s.ErrorRate
	if reliabilityScore < 0 {
		reliabilityScore = 0
	}
	if s.AvgLatencyMs > highLatencyMs {
		reliabilityScore *= 0.5
	}

	var freshnessScore float64
	switch {
	case s.AvgDataAgeSeconds < 60:
		freshnessScore = 1.0
	case s.AvgDataAgeSeconds < 300:
		freshnessScore = 0.8
	case s.AvgDataAgeSeconds < 900:
		freshnessScore = 0.6
	default:
		freshnessScore = 0.3
	}

	s.TrustScore = accuracyWeight*accuracyScore + reliabilityWeight*reliabilityScore + freshnessWeight*freshnessScore

	switch {
	case s.TrustScore >= 0.9:
		s.TrustLevel = domain.TrustAuthoritative
	case s.TrustScore >= 0.7:
		s.TrustLevel = domain.TrustHigh
	case s.TrustScore >= 0.5:
		s.TrustLevel = domain.TrustMedium
	case s.TrustScore >= 0.3:
		s.TrustLevel = domain.TrustLow
	default:
		s.TrustLevel = domain.TrustUntrusted
	}

	s.LastUpdated = time.Now().UTC()
}

func (s Score) clone() Score { return s }

// Manager holds every source's trust score in one map behind a single
// mutex. Locking is not per source: updates to different sources are
// serialized on that one mutex.
type Manager struct {
	mu     sync.Mutex
	scores map[domain.Source]*Score
}

// NewManager builds a manager pre-seeded with plausible defaults for every
// known source.
func NewManager() *Manager {
	m := &Manager{scores: make(map[domain.Source]*Score)}
	for source, initial := range defaultTrustScores {
		m.scores[source] = newScore(source, initial)
	}
	return m
}

func (m *Manager) getOrCreateLocked(source domain.Source) *Score {
	if s, ok := m.scores[source]; ok {
		return s
	}
	s := newScore(source, 0.5)
	m.scores[source] = s
	return s
}

// GetScore returns a snapshot of the source's current trust state,
// creating a medium-trust default entry if none exists yet.
func (m *Manager) GetScore(source domain.Source) Score {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(source).clone()
}

// GetWeight returns the source's trust score as a [0,1] weight, used
// directly as the confidence calculator's "source reliability" input.
func (m *Manager) GetWeight(source domain.Source) float64 {
	return m.GetScore(source).TrustScore
}

// RecordSignalAccuracy updates accuracy metrics after a signal is later
// confirmed correct or incorrect.
func (m *Manager) RecordSignalAccuracy(source domain.Source, wasAccurate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrCreateLocked(source).updateAccuracy(wasAccurate)
}

// RecordAPICall updates reliability metrics (latency EMA, error-rate EMA)
// after an adapter fetch.
func (m *Manager) RecordAPICall(source domain.Source, success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrCreateLocked(source).updateReliability(success, float64(latency.Milliseconds()))
}

// RecordDataFreshness updates the freshness EMA from an event's observed
// age at ingestion time.
func (m *Manager) RecordDataFreshness(source domain.Source, dataAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrCreateLocked(source).updateFreshness(dataAge.Seconds())
}

// ResolveConflict picks the higher-trust source's value as the winner,
// with a confidence equal to the winner's share of the two sources'
// combined trust (0.5 when both are zero).
func (m *Manager) ResolveConflict(sourceA, sourceB domain.Source, valueA, valueB any) (domain.Source, any, float64) {
	trustA := m.GetWeight(sourceA)
	trustB := m.GetWeight(sourceB)

	total := trustA + trustB
	if trustA >= trustB {
		confidence := 0.5
		if total > 0 {
			confidence = trustA / total
		}
		return sourceA, valueA, confidence
	}
	confidence := 0.5
	if total > 0 {
		confidence = trustB / total
	}
	return sourceB, valueB, confidence
}

// WeightedAverage combines per-source values using each source's current
// trust weight; falls back to an unweighted mean when every source has
// zero trust.
func (m *Manager) WeightedAverage(values map[domain.Source]float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var weightedSum, totalWeight float64
	for source, value := range values {
		w := m.GetWeight(source)
		weightedSum += value * w
		totalWeight += w
	}
	if totalWeight == 0 {
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), 1.0
	}
	return weightedSum / totalWeight, totalWeight
}

// Summary buckets every tracked source by trust level.
type Summary struct {
	TotalSources int
	ByLevel      map[domain.TrustLevel]int
	Sources      map[domain.Source]Score
}

// GetSummary returns a point-in-time view of all tracked sources, grouped
// by trust level.
func (m *Manager) GetSummary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := Summary{
		TotalSources: len(m.scores),
		ByLevel:      make(map[domain.TrustLevel]int),
		Sources:      make(map[domain.Source]Score, len(m.scores)),
	}
	for _, level := range []domain.TrustLevel{
		domain.TrustUntrusted, domain.TrustLow, domain.TrustMedium, domain.TrustHigh, domain.TrustAuthoritative,
	} {
		summary.ByLevel[level] = 0
	}
	for source, score := range m.scores {
		summary.ByLevel[score.TrustLevel]++
		summary.Sources[source] = score.clone()
	}
	return summary
}
