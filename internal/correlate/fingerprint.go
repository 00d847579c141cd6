// Package correlate implements the C7 cross-source correlator: event
// fingerprinting, a bounded fingerprint cache, conflict detection, and the
// asset correlation matrix (spec.md §4.6). Grounded on
// original_source/src/omen/domain/services/event_fingerprint.py,
// conflict_detector.py, and
// src/omen/domain/rules/correlation/asset_correlation_matrix.py.
package correlate

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/hoangpro267200/omen/internal/domain"
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "must": true, "shall": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true,
}

var highValueKeywords = map[string]bool{
	"war": true, "conflict": true, "attack": true, "houthi": true, "rebel": true,
	"military": true, "missile": true, "drone": true, "strike": true,
	"blockade": true, "sanction": true, "tariff": true,
	"red sea": true, "suez": true, "panama": true, "malacca": true,
	"strait": true, "canal": true, "gulf": true, "china": true, "russia": true,
	"ukraine": true, "iran": true, "yemen": true, "asia": true, "europe": true,
	"port": true, "shipping": true, "vessel": true, "cargo": true,
	"container": true, "freight": true, "supply chain": true, "disruption": true,
	"delay": true, "congestion": true, "closure": true,
	"oil": true, "gas": true, "commodity": true, "price": true, "spike": true,
	"surge": true, "crash": true,
	"storm": true, "typhoon": true, "hurricane": true, "flood": true, "drought": true,
}

// locationKeywords is the subset of highValueKeywords treated as a place
// name when scanning title text for the fingerprint's location component.
var locationKeywords = []string{
	"red sea", "suez", "panama", "malacca", "strait", "canal", "china",
	"russia", "ukraine", "iran", "yemen", "asia", "europe", "gulf",
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]`)

// Generate produces the 16-hex-char fingerprint for an event: the SHA-256
// of four pipe-joined components (normalized title, sorted keywords,
// sorted locations, UTC date bucket), truncated to 16 characters.
func Generate(event domain.RawEvent) string {
	parts := []string{
		normalizeTitle(event.Title),
		normalizeKeywords(event.Keywords),
		normalizeLocation(event),
		dateBucket(event),
	}
	joined := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])[:16]
}

func normalizeTitle(title string) string {
	cleaned := nonAlphanumeric.ReplaceAllString(strings.ToLower(title), "")
	words := strings.Fields(cleaned)

	var meaningful []string
	for _, w := range words {
		if len(w) > 2 && !stopWords[w] {
			meaningful = append(meaningful, w)
		}
	}

	var highValue []string
	meaningfulSet := make(map[string]bool)
	for _, w := range meaningful {
		meaningfulSet[w] = true
		if highValueKeywords[w] {
			highValue = append(highValue, w)
		}
	}

	var selected []string
	if len(highValue) > 0 {
		sort.Strings(highValue)
		selected = append(selected, takeTop(dedupe(highValue), 3)...)

		remaining := make([]string, 0)
		highSet := make(map[string]bool, len(highValue))
		for _, w := range highValue {
			highSet[w] = true
		}
		for w := range meaningfulSet {
			if !highSet[w] {
				remaining = append(remaining, w)
			}
		}
		sort.Strings(remaining)
		selected = append(selected, takeTop(remaining, 2)...)
	} else {
		sort.Strings(meaningful)
		selected = takeTop(dedupe(meaningful), 5)
	}

	return strings.Join(selected, " ")
}

func normalizeKeywords(keywords []string) string {
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			set[k] = true
		}
	}
	sorted := make([]string, 0, len(set))
	for k := range set {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	return strings.Join(takeTop(sorted, 5), " ")
}

func normalizeLocation(event domain.RawEvent) string {
	set := make(map[string]bool)

	n := len(event.InferredLocations)
	if n > 3 {
		n = 3
	}
	for _, loc := range event.InferredLocations[:n] {
		if loc.Name != "" {
			set[strings.ToLower(loc.Name)] = true
		}
	}

	titleLower := strings.ToLower(event.Title)
	for _, kw := range locationKeywords {
		if strings.Contains(titleLower, kw) {
			set[kw] = true
		}
	}

	sorted := make([]string, 0, len(set))
	for k := range set {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	return strings.Join(takeTop(sorted, 3), " ")
}

func dateBucket(event domain.RawEvent) string {
	t := event.ObservedAt
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func dedupe(items []string) []string {
	set := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, i := range items {
		if !set[i] {
			set[i] = true
			out = append(out, i)
		}
	}
	return out
}

func takeTop(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// Similarity computes the character-level Jaccard similarity of two
// fingerprints (spec.md §4.6); identical strings score 1.0, and an empty
// operand scores 0.0.
func Similarity(fp1, fp2 string) float64 {
	if fp1 == fp2 {
		return 1.0
	}
	if fp1 == "" || fp2 == "" {
		return 0.0
	}

	set1 := charSet(fp1)
	set2 := charSet(fp2)

	intersection := 0
	for c := range set1 {
		if set2[c] {
			intersection++
		}
	}
	union := make(map[rune]bool, len(set1)+len(set2))
	for c := range set1 {
		union[c] = true
	}
	for c := range set2 {
		union[c] = true
	}
	if len(union) == 0 {
		return 0.0
	}
	return float64(intersection) / float64(len(union))
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range s {
		set[r] = true
	}
	return set
}
