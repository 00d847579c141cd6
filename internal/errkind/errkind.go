// Package errkind names the error taxonomy from spec.md §7 as sentinel
// errors, checked with errors.Is/As rather than the raise-and-catch control
// flow of the Python original (spec.md §9).
package errkind

import "errors"

var (
	// ErrConfiguration is fatal at startup: missing or invalid mandatory config.
	ErrConfiguration = errors.New("configuration error")
	// ErrAdapterUnavailable means a source refused or timed out; recoverable,
	// absorbed by the circuit breaker.
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	// ErrValidationRule means a rule raised; the event is routed to the DLQ.
	ErrValidationRule = errors.New("validation rule error")
	// ErrTranslationRule means enrichment/classification failed; DLQ.
	ErrTranslationRule = errors.New("translation rule error")
	// ErrPersistence means the ledger write failed; terminal for that emit.
	ErrPersistence = errors.New("persistence error")
	// ErrPublish means the hot path failed; swallowed to LEDGER_ONLY.
	ErrPublish = errors.New("publish error")
	// ErrDuplicateSignal means downstream already has the id; treated as success.
	ErrDuplicateSignal = errors.New("duplicate signal")
	// ErrCircuitOpen means the call fast-failed because the breaker is open.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrValidationInput means a client-submitted request failed validation.
	ErrValidationInput = errors.New("validation error")
	// ErrAuthentication means the request lacked valid credentials.
	ErrAuthentication = errors.New("authentication required")
	// ErrAuthorization means the credentials lacked the required scope.
	ErrAuthorization = errors.New("insufficient permissions")
)

// RuleError annotates ErrValidationRule with the offending rule's name.
type RuleError struct {
	RuleName string
	Err      error
}

func (e *RuleError) Error() string { return e.RuleName + ": " + e.Err.Error() }

// Unwrap exposes both the specific reason and the ErrValidationRule
// sentinel, so callers can errors.Is(err, errkind.ErrValidationRule)
// without losing the reason text via errors.As(&RuleError{}).
func (e *RuleError) Unwrap() []error { return []error{e.Err, ErrValidationRule} }

// NewRuleError wraps ErrValidationRule with a rule name for DLQ annotation.
func NewRuleError(ruleName, reason string) error {
	return &RuleError{RuleName: ruleName, Err: errors.New(reason)}
}
