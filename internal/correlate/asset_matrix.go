package correlate

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

// EventCategory is the asset-correlation matrix's own category axis,
// distinct from domain.Category: it groups events by what KIND of market
// reaction they provoke rather than by OMEN's routing taxonomy. Grounded
// on
// original_source/src/omen/domain/rules/correlation/asset_correlation_matrix.py
// (AssetCorrelationMatrix).
type EventCategory string

const (
	EventCategoryGeopolitical EventCategory = "geopolitical"
	EventCategoryEconomic     EventCategory = "economic"
	EventCategoryWeather      EventCategory = "weather"
	EventCategoryPolitical    EventCategory = "political"
	EventCategoryMarket       EventCategory = "market"
	EventCategorySupplyChain  EventCategory = "supply_chain"
)

//go:embed asset_matrix.yaml
var assetMatrixYAML []byte

// keywordMapping is one ordered entry of the keyword pattern list: the
// first entry whose keyword is a substring of the input wins.
type keywordMapping struct {
	Keyword   string        `yaml:"keyword"`
	Category  EventCategory `yaml:"category"`
	EventType string        `yaml:"event_type"`
}

// assetMatrixFixture mirrors the teacher's config-as-yaml convention
// (internal/config/guards.go's GuardsConfig) for loading a fixed,
// hand-maintained rule table instead of hardcoding it as Go literals.
type assetMatrixFixture struct {
	Correlations map[EventCategory]map[string][]string `yaml:"correlations"`
	Keywords     []keywordMapping                      `yaml:"keywords"`
}

var (
	correlations    map[EventCategory]map[string][]string
	keywordMappings []keywordMapping
)

func init() {
	var fixture assetMatrixFixture
	if err := yaml.Unmarshal(assetMatrixYAML, &fixture); err != nil {
		panic("correlate: embedded asset_matrix.yaml is malformed: " + err.Error())
	}
	correlations = fixture.Correlations
	keywordMappings = fixture.Keywords
}

// MatchKeyword returns the event category + type the first matching
// keyword pattern maps a free-text keyword to, if any.
func MatchKeyword(keyword string) (category EventCategory, eventType string, ok bool) {
	lower := strings.ToLower(keyword)
	for _, mapping := range keywordMappings {
		if strings.Contains(lower, mapping.Keyword) {
			return mapping.Category, mapping.EventType, true
		}
	}
	return "", "", false
}

// GetCorrelatedAssets returns the affected-asset list for an event
// category + type, or nil when unmapped.
func GetCorrelatedAssets(category EventCategory, eventType string) []string {
	return correlations[category][eventType]
}

// SuggestAssetsToCheck maps free-text keywords to suggested assets via the
// first matching keyword pattern for each keyword (spec.md §4.6).
func SuggestAssetsToCheck(keywords []string) map[string][]string {
	suggestions := make(map[string][]string)
	for _, keyword := range keywords {
		category, eventType, ok := MatchKeyword(keyword)
		if !ok {
			continue
		}
		if assets := GetCorrelatedAssets(category, eventType); len(assets) > 0 {
			suggestions[keyword] = assets
		}
	}
	return suggestions
}

// CorrelationStrength returns how strongly an asset correlates with an
// event type: first-listed asset scores 1.0, last scores 0.5, scaled
// linearly by list position.
func CorrelationStrength(category EventCategory, eventType, asset string) float64 {
	assets := GetCorrelatedAssets(category, eventType)
	position := -1
	for i, a := range assets {
		if a == asset {
			position = i
			break
		}
	}
	if position < 0 {
		return 0.0
	}
	if len(assets) == 1 {
		return 1.0
	}
	last := float64(len(assets) - 1)
	return 1.0 - (float64(position)/last)*0.5
}
