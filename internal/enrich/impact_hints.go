package enrich

import (
	"sort"
	"strings"

	"github.com/hoangpro267200/omen/internal/domain"
)

// chokepoints is the fixed gazetteer of maritime/logistics chokepoints the
// geographic extractor recognizes in free text, shared with
// internal/validate's geographic relevance rule.
var chokepoints = []string{
	"Red Sea", "Suez Canal", "Strait of Hormuz", "Strait of Malacca",
	"Panama Canal", "Bosphorus", "Gibraltar", "Cape of Good Hope",
	"South China Sea", "Taiwan Strait", "Bab-el-Mandeb", "Persian Gulf",
	"Black Sea", "English Channel",
}

// chokepointAliases maps short-hand tokens (the kind a source's keyword
// extractor emits) to the canonical gazetteer name they refer to. A bare
// keyword like "suez" does not contain the full name "Suez Canal", so
// without the alias the chokepoint would only surface when the full name
// is spelled out in the title/description text.
var chokepointAliases = map[string]string{
	"suez":    "Suez Canal",
	"hormuz":  "Strait of Hormuz",
	"malacca": "Strait of Malacca",
	"panama":  "Panama Canal",
	"bosphorus": "Bosphorus",
	"gibraltar": "Gibraltar",
	"bab-el-mandeb": "Bab-el-Mandeb",
	"mandeb":  "Bab-el-Mandeb",
}

// assetTypePatterns maps free-text tokens to the asset class they hint at.
// "resolution" is deliberately excluded since it collides with market
// metadata field names (spec.md §4.4).
var assetTypePatterns = map[string][]string{
	"energy":      {"oil", "crude", "gas", "lng", "opec", "refinery", "pipeline"},
	"shipping":    {"vessel", "tanker", "container", "freight", "shipping", "port"},
	"defense":     {"military", "defense", "weapons", "arms"},
	"agriculture": {"wheat", "grain", "crop", "harvest", "drought"},
	"fx":          {"currency", "exchange rate", "devaluation"},
	"equity_index": {"index", "stock market", "equities"},
}

// ExtractGeographic derives chokepoints and named regions mentioned in an
// event's title, description, and keywords, plus its inferred_locations.
func ExtractGeographic(event domain.RawEvent) domain.Geographic {
	text := strings.ToLower(event.Title + " " + event.Description + " " + strings.Join(event.Keywords, " "))

	hit := make(map[string]bool)
	for _, cp := range chokepoints {
		if strings.Contains(text, strings.ToLower(cp)) {
			hit[cp] = true
		}
	}
	for alias, cp := range chokepointAliases {
		if strings.Contains(text, alias) {
			hit[cp] = true
		}
	}
	chokepointHits := make([]string, 0, len(hit))
	for cp := range hit {
		chokepointHits = append(chokepointHits, cp)
	}
	sort.Strings(chokepointHits)

	var regions []string
	seen := make(map[string]bool)
	for _, loc := range event.InferredLocations {
		if loc.Name == "" || seen[loc.Name] {
			continue
		}
		seen[loc.Name] = true
		regions = append(regions, loc.Name)
	}
	sort.Strings(regions)

	return domain.Geographic{Regions: regions, Chokepoints: chokepointHits}
}

// ExtractAssetTypes scans free text for fixed asset-class patterns,
// excluding any token colliding with a market metadata field name.
func ExtractAssetTypes(event domain.RawEvent) []string {
	text := strings.ToLower(event.Title + " " + event.Description)

	var hits []string
	for assetType, patterns := range assetTypePatterns {
		for _, p := range patterns {
			if strings.Contains(text, p) {
				hits = append(hits, assetType)
				break
			}
		}
	}
	sort.Strings(hits)
	return hits
}

// BuildImpactHints assembles the routing-only ImpactHints block. It must
// never be extended with a severity, urgency, or recommendation field.
func BuildImpactHints(event domain.RawEvent, signalType domain.SignalType, direction domain.Direction, routingDomain domain.AffectedDomain) domain.ImpactHints {
	keywords := make([]string, len(event.Keywords))
	copy(keywords, event.Keywords)
	sort.Strings(keywords)

	return domain.ImpactHints{
		Domains:            []domain.AffectedDomain{routingDomain},
		Direction:          direction,
		AffectedAssetTypes: ExtractAssetTypes(event),
		Keywords:           keywords,
	}
}
