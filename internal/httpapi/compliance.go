package httpapi

import (
	"encoding/json"
	"fmt"
)

// ForbiddenFields are the risk/decision vocabulary spec.md §3/§6/§8
// forbids anywhere in a partner-facing signal response. OMEN reports
// neutral, calibrated signals — never a verdict.
var ForbiddenFields = []string{
	"risk_status", "overall_risk", "risk_breakdown", "risk_level",
	"risk_score", "risk_verdict", "recommendation", "decision",
	"action_required", "alert_level",
	"severity", "urgency", "is_actionable", "delay_days",
	"risk_exposure", "action", "alert",
}

// ScanForForbiddenFields marshals v to JSON and recursively walks every
// object key, returning the forbidden field names it finds (empty if
// none). Used defensively by the partner-signals handler before
// responding, and by its own test — the deep-scan helper
// original_source's test_signal_engine_compliance.py exercises at the
// Python layer, reimplemented here as a reusable Go helper rather than a
// one-off assertion.
func ScanForForbiddenFields(v any) ([]string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("httpapi: marshal for compliance scan: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("httpapi: unmarshal for compliance scan: %w", err)
	}

	forbidden := make(map[string]bool, len(ForbiddenFields))
	for _, f := range ForbiddenFields {
		forbidden[f] = true
	}

	var found []string
	seen := map[string]bool{}
	var walk func(node any)
	walk = func(node any) {
		switch n := node.(type) {
		case map[string]any:
			for key, val := range n {
				if forbidden[key] && !seen[key] {
					seen[key] = true
					found = append(found, key)
				}
				walk(val)
			}
		case []any:
			for _, item := range n {
				walk(item)
			}
		}
	}
	walk(decoded)
	return found, nil
}
