package correlate

import (
	"fmt"
	"sort"

	"github.com/hoangpro267200/omen/internal/domain"
)

const (
	probabilityDiffLow    = 0.10
	probabilityDiffMedium = 0.20
	probabilityDiffHigh   = 0.30

	sentimentConflictThreshold = 0.30
)

var confidenceAdjustments = map[domain.ConflictSeverity]float64{
	domain.ConflictNone:   0.0,
	domain.ConflictLow:    -0.05,
	domain.ConflictMedium: -0.15,
	domain.ConflictHigh:   -0.25,
}

// Conflict is one detected disagreement between sources describing the
// same underlying situation.
type Conflict struct {
	HasConflict         bool
	Severity            domain.ConflictSeverity
	ConflictingSources  []domain.Source
	Description         string
	ConfidenceAdjustment float64
}

// Detector groups events by a similarity key and checks each group for
// probability, sentiment, and geographic conflicts (spec.md §4.6).
// Grounded on
// original_source/src/omen/domain/services/conflict_detector.py
// (SignalConflictDetector).
type Detector struct{}

func NewDetector() *Detector { return &Detector{} }

// Detect returns every conflict found across groups of events sharing a
// similarity key; fewer than two events can never conflict.
func (d *Detector) Detect(events []domain.RawEvent) []Conflict {
	if len(events) < 2 {
		return nil
	}

	groups := groupSimilar(events)
	var conflicts []Conflict

	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	for _, key := range groupKeys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		if c := d.checkProbabilityConflict(group); c != nil && c.HasConflict {
			conflicts = append(conflicts, *c)
		}
		if c := d.checkSentimentConflict(group); c != nil && c.HasConflict {
			conflicts = append(conflicts, *c)
		}
		if c := d.checkGeographicConflict(group); c != nil && c.HasConflict {
			conflicts = append(conflicts, *c)
		}
	}
	return conflicts
}

func groupSimilar(events []domain.RawEvent) map[string][]domain.RawEvent {
	groups := make(map[string][]domain.RawEvent)
	for _, e := range events {
		key := groupKey(e)
		groups[key] = append(groups[key], e)
	}
	return groups
}

func groupKey(e domain.RawEvent) string {
	keywords := append([]string(nil), e.Keywords...)
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	sort.Strings(keywords)

	var locations []string
	n := len(e.InferredLocations)
	if n > 2 {
		n = 2
	}
	for _, loc := range e.InferredLocations[:n] {
		locations = append(locations, loc.Name)
	}
	sort.Strings(locations)

	parts := append(keywords, locations...)
	if len(parts) == 0 {
		if len(e.EventID) > 10 {
			return e.EventID[:10]
		}
		if e.EventID != "" {
			return e.EventID
		}
		return "unknown"
	}

	key := ""
	for i, p := range parts {
		if i > 0 {
			key += "|"
		}
		key += p
	}
	return key
}

func (d *Detector) checkProbabilityConflict(events []domain.RawEvent) *Conflict {
	type srcProb struct {
		source domain.Source
		prob   float64
	}
	var probs []srcProb
	for _, e := range events {
		if e.ProbabilityKnown {
			probs = append(probs, srcProb{e.Source, e.Probability})
		}
	}
	if len(probs) < 2 {
		return nil
	}

	minP, maxP := probs[0], probs[0]
	for _, p := range probs {
		if p.prob < minP.prob {
			minP = p
		}
		if p.prob > maxP.prob {
			maxP = p
		}
	}
	diff := maxP.prob - minP.prob

	var severity domain.ConflictSeverity
	switch {
	case diff < probabilityDiffLow:
		return &Conflict{HasConflict: false, Severity: domain.ConflictNone}
	case diff < probabilityDiffMedium:
		severity = domain.ConflictLow
	case diff < probabilityDiffHigh:
		severity = domain.ConflictMedium
	default:
		severity = domain.ConflictHigh
	}

	sources := uniqueSourceList(probs, func(p srcProb) domain.Source { return p.source })

	return &Conflict{
		HasConflict:        true,
		Severity:           severity,
		ConflictingSources: sources,
		Description: fmt.Sprintf("probability disagreement: %s reports %.0f%% vs %s reports %.0f%% (diff %.0f%%)",
			minP.source, minP.prob*100, maxP.source, maxP.prob*100, diff*100),
		ConfidenceAdjustment: confidenceAdjustments[severity],
	}
}

func (d *Detector) checkSentimentConflict(events []domain.RawEvent) *Conflict {
	type srcSentiment struct {
		source    domain.Source
		sentiment float64
	}
	var sentiments []srcSentiment
	for _, e := range events {
		if v, ok := floatMetric(e.SourceMetrics, "sentiment"); ok {
			sentiments = append(sentiments, srcSentiment{e.Source, v})
		}
	}
	if len(sentiments) < 2 {
		return nil
	}

	var hasPositive, hasNegative bool
	positive, negative := sentiments[0], sentiments[0]
	for _, s := range sentiments {
		if s.sentiment > sentimentConflictThreshold {
			hasPositive = true
		}
		if s.sentiment < -sentimentConflictThreshold {
			hasNegative = true
		}
		if s.sentiment > positive.sentiment {
			positive = s
		}
		if s.sentiment < negative.sentiment {
			negative = s
		}
	}

	if !(hasPositive && hasNegative) {
		return &Conflict{HasConflict: false, Severity: domain.ConflictNone}
	}

	return &Conflict{
		HasConflict:        true,
		Severity:           domain.ConflictMedium,
		ConflictingSources: []domain.Source{positive.source, negative.source},
		Description: fmt.Sprintf("sentiment conflict: %s is positive (%.2f) while %s is negative (%.2f)",
			positive.source, positive.sentiment, negative.source, negative.sentiment),
		ConfidenceAdjustment: confidenceAdjustments[domain.ConflictMedium],
	}
}

func (d *Detector) checkGeographicConflict(events []domain.RawEvent) *Conflict {
	type srcLocations struct {
		source    domain.Source
		locations map[string]bool
	}
	var sets []srcLocations
	for _, e := range events {
		if len(e.InferredLocations) == 0 {
			continue
		}
		locs := make(map[string]bool)
		for _, l := range e.InferredLocations {
			locs[l.Name] = true
		}
		sets = append(sets, srcLocations{e.Source, locs})
	}
	if len(sets) < 2 {
		return nil
	}

	allLocations := make(map[string]bool)
	locationCounts := make(map[string]int)
	for _, s := range sets {
		for loc := range s.locations {
			allLocations[loc] = true
			locationCounts[loc]++
		}
	}

	var exclusive []string
	for loc, count := range locationCounts {
		if count == 1 {
			exclusive = append(exclusive, loc)
		}
	}

	if float64(len(exclusive)) > float64(len(allLocations))/2 {
		var sources []domain.Source
		for _, s := range sets {
			sources = append(sources, s.source)
		}
		return &Conflict{
			HasConflict:        true,
			Severity:           domain.ConflictLow,
			ConflictingSources: sources,
			Description: fmt.Sprintf("geographic disagreement: %d of %d locations mentioned by only one source",
				len(exclusive), len(allLocations)),
			ConfidenceAdjustment: confidenceAdjustments[domain.ConflictLow],
		}
	}
	return &Conflict{HasConflict: false, Severity: domain.ConflictNone}
}

func uniqueSourceList[T any](items []T, get func(T) domain.Source) []domain.Source {
	seen := make(map[domain.Source]bool)
	var out []domain.Source
	for _, i := range items {
		s := get(i)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// OverallSeverity returns the highest severity among a set of conflicts, or
// ConflictNone when there are none.
func OverallSeverity(conflicts []Conflict) domain.ConflictSeverity {
	rank := map[domain.ConflictSeverity]int{
		domain.ConflictNone: 0, domain.ConflictLow: 1,
		domain.ConflictMedium: 2, domain.ConflictHigh: 3,
	}
	worst := domain.ConflictNone
	for _, c := range conflicts {
		if c.HasConflict && rank[c.Severity] > rank[worst] {
			worst = c.Severity
		}
	}
	return worst
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
