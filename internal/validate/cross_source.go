package validate

import (
	"context"
	"fmt"
	"sort"

	"github.com/hoangpro267200/omen/internal/domain"
)

// CrossSourceRule rewards events confirmed by other sources observing the
// same location in the same scheduling batch: OMEN's "killer feature" is
// noticing when AIS congestion and a freight rate spike point at the same
// port. Grounded on
// original_source/src/omen/domain/rules/validation/cross_source_validation.py
// (CrossSourceValidationRule).
type CrossSourceRule struct {
	MinSourcesForBoost int
	Boost2Sources      float64
	Boost3PlusSources  float64
	KeywordOverlapBonus float64
	MaxBoost           float64
}

// NewCrossSourceRule builds the rule with the Python original's defaults.
func NewCrossSourceRule() *CrossSourceRule {
	return &CrossSourceRule{
		MinSourcesForBoost:  2,
		Boost2Sources:       0.2,
		Boost3PlusSources:   0.3,
		KeywordOverlapBonus: 0.1,
		MaxBoost:            0.4,
	}
}

func (r *CrossSourceRule) Name() string    { return "cross_source_validation" }
func (r *CrossSourceRule) Version() string { return "1.0.0" }

// Apply is the single-event fallback: without a batch, no cross-validation
// is possible and the rule always passes with a zero score.
func (r *CrossSourceRule) Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult {
	return domain.ValidationResult{
		RuleName: r.Name(), RuleVersion: r.Version(),
		Status: domain.ValidationPassed, Score: 0,
		Reason: "single event - no cross-validation",
	}
}

func (r *CrossSourceRule) ApplyBatch(ctx context.Context, events []domain.RawEvent) []domain.ValidationResult {
	results := make([]domain.ValidationResult, len(events))
	if len(events) < r.MinSourcesForBoost {
		for i := range events {
			results[i] = domain.ValidationResult{
				RuleName: r.Name(), RuleVersion: r.Version(),
				Status: domain.ValidationPassed, Score: 0,
				Reason: fmt.Sprintf("need %d+ events for cross-validation", r.MinSourcesForBoost),
			}
		}
		return results
	}

	groups := groupByLocation(events)
	for i, event := range events {
		locKey := primaryLocationKey(event)
		group := groups[locKey]
		sources := uniqueSources(group)

		if len(sources) >= r.MinSourcesForBoost {
			boost := r.confidenceBoost(group, sources)
			results[i] = domain.ValidationResult{
				RuleName: r.Name(), RuleVersion: r.Version(),
				Status: domain.ValidationPassed, Score: boost,
				Reason: fmt.Sprintf("confirmed by %d sources: %s", len(sources), joinSorted(sources)),
			}
		} else {
			results[i] = domain.ValidationResult{
				RuleName: r.Name(), RuleVersion: r.Version(),
				Status: domain.ValidationPassed, Score: 0,
				Reason: "single source - no cross-validation boost",
			}
		}
	}
	return results
}

func (r *CrossSourceRule) confidenceBoost(group []domain.RawEvent, sources map[domain.Source]bool) float64 {
	var boost float64
	if len(sources) == 2 {
		boost = r.Boost2Sources
	} else {
		boost = r.Boost3PlusSources
	}
	if keywordOverlap(group) > 0.3 {
		boost += r.KeywordOverlapBonus
	}
	if boost > r.MaxBoost {
		boost = r.MaxBoost
	}
	return boost
}

func primaryLocationKey(e domain.RawEvent) string {
	if len(e.InferredLocations) == 0 {
		return "unknown"
	}
	return e.InferredLocations[0].Name
}

func groupByLocation(events []domain.RawEvent) map[string][]domain.RawEvent {
	groups := make(map[string][]domain.RawEvent)
	for _, e := range events {
		key := primaryLocationKey(e)
		groups[key] = append(groups[key], e)
	}
	return groups
}

func uniqueSources(events []domain.RawEvent) map[domain.Source]bool {
	set := make(map[domain.Source]bool)
	for _, e := range events {
		set[e.Source] = true
	}
	return set
}

func joinSorted(sources map[domain.Source]bool) string {
	names := make([]string, 0, len(sources))
	for s := range sources {
		names = append(names, string(s))
	}
	sort.Strings(names)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// keywordOverlap returns the Jaccard similarity of keyword sets across a
// group of events with non-empty keyword lists.
func keywordOverlap(events []domain.RawEvent) float64 {
	var sets []map[string]bool
	for _, e := range events {
		if len(e.Keywords) == 0 {
			continue
		}
		set := make(map[string]bool, len(e.Keywords))
		for _, k := range e.Keywords {
			set[k] = true
		}
		sets = append(sets, set)
	}
	if len(sets) < 2 {
		return 0
	}

	intersection := make(map[string]bool)
	for k := range sets[0] {
		intersection[k] = true
	}
	union := make(map[string]bool)
	for _, s := range sets {
		for k := range s {
			union[k] = true
		}
	}
	for _, s := range sets[1:] {
		for k := range intersection {
			if !s[k] {
				delete(intersection, k)
			}
		}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(len(intersection)) / float64(len(union))
}
