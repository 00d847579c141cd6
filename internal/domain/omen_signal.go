package domain

import "time"

// ConfidenceInterval bounds a point estimate at a stated confidence level.
type ConfidenceInterval struct {
	Point  float64 `json:"point"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Level  float64 `json:"level"`
	Method string  `json:"method"`
}

// Width is upper minus lower.
func (c ConfidenceInterval) Width() float64 { return c.Upper - c.Lower }

// Geographic carries routing-only location metadata: named regions and any
// maritime/supply-chain chokepoints mentioned.
type Geographic struct {
	Regions     []string `json:"regions,omitempty"`
	Chokepoints []string `json:"chokepoints,omitempty"`
}

// Temporal carries the event's time horizon.
type Temporal struct {
	EventHorizon   *time.Time `json:"event_horizon,omitempty"`
	ResolutionDate *time.Time `json:"resolution_date,omitempty"`
}

// ImpactHints is ROUTING METADATA ONLY. It must never grow a severity,
// urgency, delay, cost, or recommendation field — see the forbidden-field
// invariant in spec.md §3 and the compliance scan in internal/httpapi.
type ImpactHints struct {
	Domains           []AffectedDomain `json:"domains,omitempty"`
	Direction         Direction        `json:"direction"`
	AffectedAssetTypes []string        `json:"affected_asset_types,omitempty"`
	Keywords          []string         `json:"keywords,omitempty"`
}

// Evidence is one piece of supporting material for a signal.
type Evidence struct {
	Description string    `json:"description"`
	Source      Source    `json:"source"`
	ObservedAt  time.Time `json:"observed_at"`
}

// OmenSignal is the enriched, confidence-scored public contract. It
// intentionally has no field for severity, urgency, is_actionable,
// delay_days, risk_exposure, recommendation, action, or alert_level.
type OmenSignal struct {
	SignalID          string             `json:"signal_id"`
	SourceEventID     string             `json:"source_event_id"`
	TraceID           string             `json:"trace_id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Probability       float64            `json:"probability"`
	ProbabilitySource Source             `json:"probability_source"`
	ConfidenceScore   float64            `json:"confidence_score"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	ConfidenceLevel   ConfidenceLevel    `json:"confidence_level"`
	Category          Category           `json:"category"`
	SignalType        SignalType         `json:"signal_type"`
	Status            Status             `json:"status"`
	Geographic        Geographic         `json:"geographic"`
	Temporal          Temporal           `json:"temporal"`
	ImpactHints       ImpactHints        `json:"impact_hints"`
	Evidence          []Evidence         `json:"evidence,omitempty"`
	RulesetVersion    string             `json:"ruleset_version"`
	GeneratedAt       time.Time          `json:"generated_at"`
	InputEventHash    string             `json:"input_event_hash"`
}
