// Package enrich implements the C5 enricher/classifier: it assigns a
// signal_type, semantic polarity, routing domain, and impact hints from an
// event's title and description only — never from metadata fields
// (spec.md §4.4). Grounded on
// original_source/src/omen/domain/services/signal_classifier.py (its
// docstring's hard constraint: classification and semantic analysis only,
// never severity/delay/cost/risk) and the signal_type vocabulary in
// internal/domain/enums.go.
package enrich

import (
	"strings"

	"github.com/hoangpro267200/omen/internal/domain"
)

// keywordPattern lists are fixed per signal_type; a title/description hit
// increments that type's count. Authored against spec.md's worked examples
// (S1 Red Sea/Houthi, S3 port, S4 weather) since the reference
// implementation's classifier body was not retained in original_source.
var signalTypeKeywords = map[domain.SignalType][]string{
	domain.SignalTypeGeopoliticalConflict: {
		"war", "conflict", "attack", "attacks", "strike", "strikes", "houthi",
		"military", "invasion", "militant", "insurgent", "airstrike", "combat",
	},
	domain.SignalTypeGeopoliticalSanctions: {
		"sanction", "sanctions", "embargo", "export ban", "trade restriction",
		"blacklist", "asset freeze",
	},
	domain.SignalTypeGeopoliticalDiplomatic: {
		"summit", "treaty", "negotiation", "ceasefire", "diplomatic", "talks",
		"accord", "agreement",
	},
	domain.SignalTypeSupplyChainDisruption: {
		"supply chain", "shortage", "backlog", "bottleneck", "disruption",
		"delay", "delays", "logistics",
	},
	domain.SignalTypeShippingRouteRisk: {
		"shipping", "vessel", "tanker", "container ship", "strait", "canal",
		"chokepoint", "re-route", "reroute",
	},
	domain.SignalTypePortOperations: {
		"port", "terminal", "berth", "congestion", "dockworker", "stevedore",
		"harbor", "harbour",
	},
	domain.SignalTypeEnergySupply: {
		"oil", "gas supply", "opec", "crude", "pipeline flow", "lng cargo",
		"refinery output",
	},
	domain.SignalTypeEnergyInfrastructure: {
		"refinery", "pipeline", "power grid", "grid failure", "substation",
		"energy infrastructure",
	},
	domain.SignalTypeLaborDisruption: {
		"strike", "walkout", "union", "labor dispute", "labour dispute",
		"picket", "work stoppage",
	},
	domain.SignalTypeClimateEvent: {
		"drought", "heatwave", "flooding", "wildfire", "climate", "monsoon",
	},
	domain.SignalTypeNaturalDisaster: {
		"hurricane", "typhoon", "earthquake", "tsunami", "cyclone", "storm",
		"volcanic", "landslide",
	},
	domain.SignalTypeRegulatoryChange: {
		"regulation", "regulatory", "tariff", "tariffs", "policy change",
		"legislation", "compliance deadline",
	},
}

// alwaysNegative signal types are negative by definition regardless of
// keyword sentiment counting (spec.md §4.4).
var alwaysNegative = map[domain.SignalType]bool{
	domain.SignalTypeGeopoliticalConflict:  true,
	domain.SignalTypeNaturalDisaster:       true,
	domain.SignalTypeLaborDisruption:       true,
	domain.SignalTypeSupplyChainDisruption: true,
}

var negativeSentimentWords = []string{
	"disrupt", "disruption", "crisis", "collapse", "halt", "halted", "ban",
	"banned", "conflict", "attack", "shortage", "delay", "risk", "threat",
	"damage", "closed", "closure", "suspend", "suspended",
}

var positiveSentimentWords = []string{
	"resolve", "resolved", "agreement", "recovery", "recovered", "reopen",
	"reopened", "deal", "ceasefire", "stabilize", "stabilized", "resume",
	"resumed", "improve", "improved",
}

// domainRouting is a fixed lookup from signal_type to the routing domain it
// is dispatched to, per spec.md §4.4.
var domainRouting = map[domain.SignalType]domain.AffectedDomain{
	domain.SignalTypeGeopoliticalConflict:   domain.DomainShipping,
	domain.SignalTypeGeopoliticalSanctions:  domain.DomainFinance,
	domain.SignalTypeGeopoliticalDiplomatic: domain.DomainFinance,
	domain.SignalTypeSupplyChainDisruption:  domain.DomainLogistics,
	domain.SignalTypeShippingRouteRisk:      domain.DomainShipping,
	domain.SignalTypePortOperations:         domain.DomainLogistics,
	domain.SignalTypeEnergySupply:           domain.DomainEnergy,
	domain.SignalTypeEnergyInfrastructure:   domain.DomainInfrastructure,
	domain.SignalTypeLaborDisruption:        domain.DomainManufacturing,
	domain.SignalTypeClimateEvent:           domain.DomainAgriculture,
	domain.SignalTypeNaturalDisaster:        domain.DomainInfrastructure,
	domain.SignalTypeRegulatoryChange:       domain.DomainFinance,
}

// Classifier assigns signal_type, direction, and routing domain from an
// event's free text alone.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classify sums keyword-pattern hits per signal_type over title+description
// and returns the highest-count type, UNCLASSIFIED on a zero-count tie.
func (c *Classifier) Classify(event domain.RawEvent) domain.SignalType {
	text := strings.ToLower(event.Title + " " + event.Description)

	best := domain.SignalTypeUnclassified
	bestCount := 0
	for _, st := range orderedSignalTypes() {
		count := countHits(text, signalTypeKeywords[st])
		if count > bestCount {
			bestCount = count
			best = st
		}
	}
	return best
}

// orderedSignalTypes returns signal types in a fixed, deterministic order so
// ties always resolve to the same winner across runs.
func orderedSignalTypes() []domain.SignalType {
	return []domain.SignalType{
		domain.SignalTypeGeopoliticalConflict,
		domain.SignalTypeGeopoliticalSanctions,
		domain.SignalTypeGeopoliticalDiplomatic,
		domain.SignalTypeSupplyChainDisruption,
		domain.SignalTypeShippingRouteRisk,
		domain.SignalTypePortOperations,
		domain.SignalTypeEnergySupply,
		domain.SignalTypeEnergyInfrastructure,
		domain.SignalTypeLaborDisruption,
		domain.SignalTypeClimateEvent,
		domain.SignalTypeNaturalDisaster,
		domain.SignalTypeRegulatoryChange,
	}
}

func countHits(text string, patterns []string) int {
	count := 0
	for _, p := range patterns {
		count += strings.Count(text, p)
	}
	return count
}

// Direction resolves semantic polarity: fixed-negative types always return
// NEGATIVE; otherwise a neg/pos keyword-count comparison decides.
func (c *Classifier) Direction(event domain.RawEvent, signalType domain.SignalType) domain.Direction {
	if alwaysNegative[signalType] {
		return domain.DirectionNegative
	}

	text := strings.ToLower(event.Title + " " + event.Description)
	neg := countHits(text, negativeSentimentWords)
	pos := countHits(text, positiveSentimentWords)

	switch {
	case neg == 0 && pos == 0:
		return domain.DirectionUnknown
	case neg > pos:
		return domain.DirectionNegative
	case pos > neg:
		return domain.DirectionPositive
	default:
		return domain.DirectionNeutral
	}
}

// RoutingDomain looks up the fixed domain a signal_type routes to.
func (c *Classifier) RoutingDomain(signalType domain.SignalType) domain.AffectedDomain {
	d, ok := domainRouting[signalType]
	if !ok {
		return domain.DomainInfrastructure
	}
	return d
}
