package enrich

import (
	"testing"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/stretchr/testify/assert"
)

func redSeaSignal() domain.ValidatedSignal {
	return domain.ValidatedSignal{
		RawEvent: domain.RawEvent{
			EventID:          "test-hq-001",
			Title:            "Red Sea shipping disruption due to Houthi attacks",
			Probability:      0.75,
			ProbabilityKnown: true,
			Keywords:         []string{"red sea", "shipping", "houthi", "suez"},
		},
	}
}

func TestEnrich_S1_RedSeaClassification(t *testing.T) {
	e := NewEnricher()
	result := e.Enrich(redSeaSignal())

	assert.Equal(t, domain.CategoryGeopolitical, result.Category)
	assert.Equal(t, domain.SignalTypeGeopoliticalConflict, result.SignalType)
	assert.Equal(t, domain.DirectionNegative, result.Direction)
	assert.Contains(t, result.Geographic.Chokepoints, "Red Sea")
	assert.Contains(t, result.Geographic.Chokepoints, "Suez Canal")
}

func TestEnrich_UnclassifiedOnNoKeywordHits(t *testing.T) {
	e := NewEnricher()
	signal := domain.ValidatedSignal{
		RawEvent: domain.RawEvent{
			Title:       "Quarterly earnings call scheduled",
			Description: "The company will hold its quarterly call next week.",
		},
	}
	result := e.Enrich(signal)
	assert.Equal(t, domain.SignalTypeUnclassified, result.SignalType)
	assert.Equal(t, domain.CategoryOther, result.Category)
}

func TestEnrich_AlwaysNegativeOverridesKeywordSentiment(t *testing.T) {
	e := NewEnricher()
	signal := domain.ValidatedSignal{
		RawEvent: domain.RawEvent{
			Title:       "Ceasefire agreement reached after military conflict",
			Description: "A peace deal was reached following the war, and recovery has resumed.",
		},
	}
	result := e.Enrich(signal)
	// GEOPOLITICAL_CONFLICT keyword hits ("conflict", "war", "military")
	// outnumber diplomatic hits, and conflict types are always negative
	// regardless of the positive-leaning recovery language.
	assert.Equal(t, domain.SignalTypeGeopoliticalConflict, result.SignalType)
	assert.Equal(t, domain.DirectionNegative, result.Direction)
}

func TestExtractAssetTypes_ExcludesMetadataCollisions(t *testing.T) {
	event := domain.RawEvent{
		Title:       "Market resolution pending for oil futures contract",
		Description: "Resolution is expected after the contract expires.",
	}
	types := ExtractAssetTypes(event)
	assert.Contains(t, types, "energy")
	assert.NotContains(t, types, "resolution")
}
