package enrich

import (
	"github.com/hoangpro267200/omen/internal/domain"
)

// categoryBySignalType is the fixed signal_type → category rollup Enrich
// applies after classification to set Result.Category from the
// finer-grained signal_type (spec.md §3: category is the coarse
// classification, signal_type the precise one).
var categoryBySignalType = map[domain.SignalType]domain.Category{
	domain.SignalTypeGeopoliticalConflict:   domain.CategoryGeopolitical,
	domain.SignalTypeGeopoliticalSanctions:  domain.CategoryGeopolitical,
	domain.SignalTypeGeopoliticalDiplomatic: domain.CategoryGeopolitical,
	domain.SignalTypeSupplyChainDisruption:  domain.CategoryInfrastructure,
	domain.SignalTypeShippingRouteRisk:      domain.CategoryInfrastructure,
	domain.SignalTypePortOperations:         domain.CategoryInfrastructure,
	domain.SignalTypeEnergySupply:           domain.CategoryEconomic,
	domain.SignalTypeEnergyInfrastructure:   domain.CategoryInfrastructure,
	domain.SignalTypeLaborDisruption:        domain.CategoryEconomic,
	domain.SignalTypeClimateEvent:           domain.CategoryClimate,
	domain.SignalTypeNaturalDisaster:        domain.CategoryClimate,
	domain.SignalTypeRegulatoryChange:       domain.CategoryRegulatory,
}

// Result is everything the enricher derives from a ValidatedSignal, fed
// forward into confidence calculation and final OmenSignal assembly.
type Result struct {
	Category    domain.Category
	SignalType  domain.SignalType
	Direction   domain.Direction
	Geographic  domain.Geographic
	ImpactHints domain.ImpactHints
}

// Enricher classifies a validated signal's text and assembles the routing
// metadata the rest of the pipeline (confidence, correlation, emission)
// depends on.
type Enricher struct {
	classifier *Classifier
}

func NewEnricher() *Enricher {
	return &Enricher{classifier: NewClassifier()}
}

// Enrich runs classification, direction, geographic extraction, and impact
// hint assembly over a validated signal's underlying event.
func (e *Enricher) Enrich(signal domain.ValidatedSignal) Result {
	event := signal.RawEvent

	signalType := e.classifier.Classify(event)
	direction := e.classifier.Direction(event, signalType)
	routingDomain := e.classifier.RoutingDomain(signalType)
	geo := ExtractGeographic(event)
	hints := BuildImpactHints(event, signalType, direction, routingDomain)

	category, ok := categoryBySignalType[signalType]
	if !ok {
		category = domain.CategoryOther
	}

	return Result{
		Category:    category,
		SignalType:  signalType,
		Direction:   direction,
		Geographic:  geo,
		ImpactHints: hints,
	}
}
