package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redSeaEvent(id string, liquidity float64) domain.RawEvent {
	return domain.RawEvent{
		EventID:          id,
		Source:           domain.SourcePolymarket,
		Title:            "Red Sea shipping disruption due to Houthi attacks",
		Description:      "Houthi forces have escalated attacks on commercial vessels transiting the Red Sea near Suez.",
		Probability:      0.75,
		ProbabilityKnown: true,
		Keywords:         []string{"red sea", "shipping", "houthi", "suez"},
		InferredLocations: []domain.Location{
			{Name: "Red Sea"},
		},
		Market: &domain.MarketMeta{
			LiquidityUSD: liquidity,
			VolumeUSD:    500000,
		},
		ObservedAt: time.Now().UTC(),
	}
}

type fakeRepository struct {
	knownHashes map[string]bool
}

func (f *fakeRepository) FindByInputHash(ctx context.Context, hash string) (domain.SignalEvent, bool, error) {
	if f.knownHashes[hash] {
		return domain.SignalEvent{InputEventHash: hash}, true, nil
	}
	return domain.SignalEvent{}, false, nil
}

type fakeEmitter struct {
	emitted []domain.OmenSignal
}

func (f *fakeEmitter) Emit(ctx context.Context, signal domain.OmenSignal) (EmitResult, error) {
	f.emitted = append(f.emitted, signal)
	return EmitResult{Status: domain.EmitDelivered}, nil
}

type fakeAssetPort struct{}

func (fakeAssetPort) FetchQuote(ctx context.Context, symbol string) (AssetQuote, error) {
	return AssetQuote{Symbol: symbol, Price: 100, Change24hPct: 1.5}, nil
}

func TestProcess_S1_HighQualityEventEmitsSignal(t *testing.T) {
	emitter := &fakeEmitter{}
	p := New(&fakeRepository{}, emitter, fakeAssetPort{}, nil, DefaultConfig())

	result := p.Process(context.Background(), redSeaEvent("e1", 75000))

	require.NoError(t, result.Err)
	assert.True(t, result.OK)
	require.Len(t, result.Signals, 1)
	assert.Equal(t, 1, result.Stats.Emitted)
	assert.Equal(t, "e1", result.Signals[0].SourceEventID)
	assert.NotEmpty(t, result.Signals[0].SignalID)
	require.Len(t, emitter.emitted, 1)
}

func TestProcess_S2_LowLiquidityGoesToRejectedAndDLQ(t *testing.T) {
	emitter := &fakeEmitter{}
	p := New(&fakeRepository{}, emitter, nil, nil, DefaultConfig())

	result := p.Process(context.Background(), redSeaEvent("e2", 50))

	assert.False(t, result.OK)
	assert.Equal(t, 1, result.Stats.Rejected)
	require.Error(t, result.Err)

	var ruleErr *errkind.RuleError
	require.ErrorAs(t, result.Err, &ruleErr)
	assert.Equal(t, "liquidity_validation", ruleErr.RuleName)

	assert.Equal(t, 1, p.DLQ().Len())
	assert.Empty(t, emitter.emitted)
}

func TestProcess_DedupeShortCircuitsOnKnownHash(t *testing.T) {
	event := redSeaEvent("e3", 75000)
	hash := InputEventHash(event)

	repo := &fakeRepository{knownHashes: map[string]bool{hash: true}}
	emitter := &fakeEmitter{}
	p := New(repo, emitter, nil, nil, DefaultConfig())

	result := p.Process(context.Background(), event)

	assert.True(t, result.OK)
	assert.Equal(t, 1, result.Stats.Dedupe)
	assert.Empty(t, result.Signals)
	assert.Empty(t, emitter.emitted)
}

func TestProcess_DryRunSkipsEmission(t *testing.T) {
	emitter := &fakeEmitter{}
	cfg := DefaultConfig()
	cfg.EnableDryRun = true
	p := New(&fakeRepository{}, emitter, nil, nil, cfg)

	result := p.Process(context.Background(), redSeaEvent("e4", 75000))

	assert.True(t, result.OK)
	require.Len(t, result.Signals, 1)
	assert.Empty(t, emitter.emitted)
}

func TestProcess_MinConfidenceThresholdFilters(t *testing.T) {
	emitter := &fakeEmitter{}
	cfg := DefaultConfig()
	cfg.MinConfidenceForOutput = 0.999
	p := New(&fakeRepository{}, emitter, nil, nil, cfg)

	result := p.Process(context.Background(), redSeaEvent("e5", 75000))

	assert.True(t, result.OK)
	assert.Equal(t, 1, result.Stats.Filtered)
	assert.Empty(t, result.Signals)
	assert.Empty(t, emitter.emitted)
}

func TestProcess_CrossSourceCorroborationAddsEvidence(t *testing.T) {
	p := New(&fakeRepository{}, &fakeEmitter{}, nil, nil, DefaultConfig())

	first := p.Process(context.Background(), redSeaEvent("corrob-1", 75000))
	require.True(t, first.OK)

	second := redSeaEvent("corrob-2", 75000)
	second.Source = domain.SourceNews
	result := p.Process(context.Background(), second)

	require.True(t, result.OK)
	require.Len(t, result.Signals, 1)
	assert.NotEmpty(t, result.Signals[0].Evidence)
}

func TestReprocessDLQ_SuccessRemovesEntryFailureRequeues(t *testing.T) {
	p := New(&fakeRepository{}, &fakeEmitter{}, nil, nil, DefaultConfig())

	lowLiquidity := redSeaEvent("dlq-1", 50)
	p.Process(context.Background(), lowLiquidity)
	require.Equal(t, 1, p.DLQ().Len())

	succeeded, failed := p.ReprocessDLQ(context.Background(), 10)
	assert.Equal(t, 0, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, p.DLQ().Len())

	entries := p.DLQ().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RetryCount)
}

func TestInputEventHash_StableForIdenticalEvent(t *testing.T) {
	e := redSeaEvent("hash-1", 75000)
	assert.Equal(t, InputEventHash(e), InputEventHash(e))
}
