package domain

import "time"

// Location is a named, optionally geocoded place mentioned by an event.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat,omitempty"`
	Lon  float64 `json:"lon,omitempty"`
}

// MarketMeta carries source-native market metadata (prediction market id,
// liquidity, volume, etc). Fields are optional because not every source
// (AIS, weather) has a market backing it.
type MarketMeta struct {
	ID              string    `json:"id,omitempty"`
	URL             string    `json:"url,omitempty"`
	LiquidityUSD    float64   `json:"liquidity_usd,omitempty"`
	VolumeUSD       float64   `json:"volume_usd,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	ResolutionDate  time.Time `json:"resolution_date,omitempty"`
	HasResolution   bool      `json:"has_resolution,omitempty"`
}

// RawEvent is the immutable, source-neutral ingestion record every adapter
// produces. Once constructed it is never mutated; it moves into the
// pipeline by value.
type RawEvent struct {
	EventID           string                 `json:"event_id"`
	Source            Source                 `json:"source"`
	SourceMetrics     map[string]any         `json:"source_metrics,omitempty"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Probability       float64                `json:"probability"`
	ProbabilityKnown  bool                   `json:"-"`
	Keywords          []string               `json:"keywords,omitempty"`
	InferredLocations []Location             `json:"inferred_locations,omitempty"`
	Market            *MarketMeta            `json:"market,omitempty"`
	ObservedAt        time.Time              `json:"observed_at"`
}

// EffectiveProbability returns the observed probability, falling back to
// 0.5 when the source did not provide one (spec.md §3).
func (e RawEvent) EffectiveProbability() float64 {
	if !e.ProbabilityKnown {
		return 0.5
	}
	return e.Probability
}

// DataCompleteness is the fraction of a fixed checklist of semantically
// meaningful fields that are present. Resolves Open Question (a): explicit
// zero values count as present, only nil/empty counts as missing.
func (e RawEvent) DataCompleteness() float64 {
	total := 5.0
	present := 0.0
	if e.ProbabilityKnown {
		present++
	}
	if len(e.Keywords) > 0 {
		present++
	}
	if len(e.InferredLocations) > 0 {
		present++
	}
	if e.Market != nil && (e.Market.LiquidityUSD != 0 || e.Market.VolumeUSD != 0) {
		present++
	}
	if e.Market != nil && e.Market.HasResolution {
		present++
	}
	return present / total
}
