// Package validate implements the C4 validator: an ordered chain of
// bounded-score rules that a RawEvent passes through before it is enriched
// (spec.md §4.3). Grounded on
// original_source/src/omen/domain/rules/validation/*.py and
// original_source/src/omen/domain/rules/base.py.
package validate

import (
	"context"

	"github.com/hoangpro267200/omen/internal/domain"
)

// Rule is one bounded-score, versioned check in the validator chain. Apply
// has no error return: every outcome, including an ordinary REJECTED_RULE,
// is returned as a ValidationResult (spec.md §9: exceptions are replaced by
// result values).
type Rule interface {
	Name() string
	Version() string
	Apply(ctx context.Context, event domain.RawEvent) domain.ValidationResult
}

// BatchRule is additionally offered by rules that score higher when run
// against the batch of events observed in the same scheduling tick
// (cross-source corroboration, source diversity).
type BatchRule interface {
	Rule
	ApplyBatch(ctx context.Context, events []domain.RawEvent) []domain.ValidationResult
}
