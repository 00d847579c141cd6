package validate

import (
	"context"

	"github.com/hoangpro267200/omen/internal/domain"
)

// GeographicRelevanceRule scores how much of an event's free text and
// inferred locations fall within the logistics/shipping chokepoints and
// producing regions OMEN cares about. Never rejects on its own; it is a
// scoring rule, not a gate. Grounded on
// original_source/src/omen/domain/rules/validation/geographic_relevance_rule.py.
type GeographicRelevanceRule struct {
	relevantPlaces map[string]bool
}

var defaultRelevantPlaces = []string{
	"red sea", "suez canal", "strait of hormuz", "strait of malacca",
	"panama canal", "bosphorus", "gibraltar", "cape of good hope",
	"south china sea", "taiwan strait", "bab-el-mandeb",
	"persian gulf", "black sea", "english channel",
}

// NewGeographicRelevanceRule builds the rule with the default chokepoint
// gazetteer, or an override set when provided.
func NewGeographicRelevanceRule(places []string) *GeographicRelevanceRule {
	if len(places) == 0 {
		places = defaultRelevantPlaces
	}
	set := make(map[string]bool, len(places))
	for _, p := range places {
		set[lower(p)] = true
	}
	return &GeographicRelevanceRule{relevantPlaces: set}
}

func (r *GeographicRelevanceRule) Name() string    { return "geographic_relevance" }
func (r *GeographicRelevanceRule) Version() string { return "1.0.0" }

func (r *GeographicRelevanceRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	hits := 0
	total := len(event.InferredLocations)
	for _, loc := range event.InferredLocations {
		if r.relevantPlaces[lower(loc.Name)] {
			hits++
		}
	}

	text := lower(event.Title + " " + event.Description)
	for place := range r.relevantPlaces {
		if contains(text, place) {
			hits++
			total++
		}
	}

	score := 0.0
	if total > 0 {
		score = float64(hits) / float64(total)
	}
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: clamp01(score),
		Reason: "geographic relevance scored against chokepoint gazetteer",
	}
}
