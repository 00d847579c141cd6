// Package pipeline implements the C8 signal pipeline: the single-event
// orchestration of validate → enrich/classify → confidence → correlate →
// emit, plus a dead-letter queue for failed events (spec.md §4.7).
// Grounded on the teacher's internal/scan/pipeline/momentum_pipeline.go
// (struct-of-stages orchestrator, Process-one-item contract,
// attribution/explainability bookkeeping) generalized from momentum
// scanning to signal intelligence.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hoangpro267200/omen/internal/confidence"
	"github.com/hoangpro267200/omen/internal/correlate"
	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/enrich"
	"github.com/hoangpro267200/omen/internal/errkind"
	"github.com/hoangpro267200/omen/internal/trust"
	"github.com/hoangpro267200/omen/internal/validate"
)

// Repository is the subset of signal persistence the pipeline needs for
// deduplication; the ledger/emitter packages satisfy it.
type Repository interface {
	FindByInputHash(ctx context.Context, hash string) (domain.SignalEvent, bool, error)
}

// EmitResult is what the dual-path emitter (C10) reports back for a single
// OmenSignal; the pipeline only needs the outcome, not its internals.
type EmitResult struct {
	Status          domain.EmitStatus
	LedgerPartition string
	AckID           string
	Err             error
}

// Emitter persists-and-publishes a built OmenSignal.
type Emitter interface {
	Emit(ctx context.Context, signal domain.OmenSignal) (EmitResult, error)
}

// AssetQuote is a point-in-time price observation used to annotate
// correlated assets.
type AssetQuote struct {
	Symbol      string
	Price       float64
	Change24hPct float64
}

// AssetDataPort fetches the latest quote for a correlated asset symbol.
// Optional: a pipeline built without one skips live price annotation and
// reports correlation strength only.
type AssetDataPort interface {
	FetchQuote(ctx context.Context, symbol string) (AssetQuote, error)
}

// CorrelatedAsset is one asset suggested by the correlation matrix,
// annotated with its fixed correlation strength and (if an AssetDataPort
// was configured) its latest quote.
type CorrelatedAsset struct {
	Symbol              string
	CorrelationStrength float64
	Quote               *AssetQuote
}

// Config tunes pipeline behavior (spec.md §4.7, §6).
type Config struct {
	EnableDedupe         bool
	EnableDryRun         bool
	EnableCorrelation    bool
	MinConfidenceForOutput float64
	MinLiquidityUSD      float64
	RulesetVersion       string
	AssetFetchTimeout    time.Duration
	DLQCapacity          int
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		EnableDedupe:           true,
		EnableDryRun:           false,
		EnableCorrelation:      true,
		MinConfidenceForOutput: 0.0,
		MinLiquidityUSD:        1000.0,
		RulesetVersion:         "omen-ruleset-v1",
		AssetFetchTimeout:      3 * time.Second,
		DLQCapacity:            1000,
	}
}

// Stats accumulates per-call outcome counters (spec.md §4.7's stats.*).
type Stats struct {
	Dedupe   int
	Rejected int
	Filtered int
	Emitted  int
}

// Result is the pipeline's Process-single contract output.
type Result struct {
	OK      bool
	Signals []domain.OmenSignal
	Stats   Stats
	Err     error
}

// Pipeline wires together every per-event stage (C4–C7) plus the DLQ and
// emitter (C10). It holds no per-event mutable state; concurrent Process
// calls across different events are safe.
type Pipeline struct {
	validator  *validate.Chain
	enricher   *enrich.Enricher
	confidence *confidence.Calculator
	fingerprintCache *correlate.Cache
	conflicts  *correlate.Detector
	trust      *trust.Manager
	assetPort  AssetDataPort
	repository Repository
	emitter    Emitter
	dlq        *DLQ
	config     Config
}

// New builds a pipeline. repository and emitter may be nil only in
// dry-run-only test configurations; assetPort is always optional.
func New(repository Repository, emitter Emitter, assetPort AssetDataPort, trustManager *trust.Manager, cfg Config) *Pipeline {
	if cfg.DLQCapacity <= 0 {
		cfg.DLQCapacity = 1000
	}
	if trustManager == nil {
		trustManager = trust.NewManager()
	}
	return &Pipeline{
		validator:        validate.DefaultChain(cfg.MinLiquidityUSD),
		enricher:         enrich.NewEnricher(),
		confidence:       confidence.NewCalculator(),
		fingerprintCache: correlate.NewCache(0, 0),
		conflicts:        correlate.NewDetector(),
		trust:            trustManager,
		assetPort:        assetPort,
		repository:       repository,
		emitter:          emitter,
		dlq:              NewDLQ(cfg.DLQCapacity),
		config:           cfg,
	}
}

// DLQ returns the pipeline's dead-letter queue, for inspection or draining
// via ReprocessDLQ.
func (p *Pipeline) DLQ() *DLQ { return p.dlq }

// Process runs the full validate→enrich→confidence→correlate→emit
// sequence for a single event (spec.md §4.7 steps 1-8).
func (p *Pipeline) Process(ctx context.Context, event domain.RawEvent) Result {
	hash := InputEventHash(event)

	if p.config.EnableDedupe && p.repository != nil {
		if _, found, err := p.repository.FindByInputHash(ctx, hash); err == nil && found {
			return Result{OK: true, Stats: Stats{Dedupe: 1}}
		}
	}

	outcome := p.validator.Validate(ctx, event, p.config.RulesetVersion)
	if outcome.Err != nil {
		p.dlq.Enqueue(event, outcome.Err)
		return Result{OK: false, Stats: Stats{Rejected: 1}, Err: outcome.Err}
	}
	signal := outcome.Signal

	enrichResult := p.enricher.Enrich(signal)

	reliability := p.trust.GetWeight(event.Source)
	interval := p.confidence.Calculate(confidence.Input{
		BaseConfidence:    signal.OverallValidationScore,
		DataCompleteness:  event.DataCompleteness(),
		SourceReliability: reliability,
	})

	var correlatedAssets []CorrelatedAsset
	var evidence []domain.Evidence
	if p.config.EnableCorrelation {
		matches := p.fingerprintCache.FindSimilar(event, 0.6, event.Source)
		p.fingerprintCache.Add(event)

		boost := crossSourceBoost(matches)
		interval = widenPoint(interval, boost)

		matchedIDs := make([]string, len(matches))
		for i, m := range matches {
			matchedIDs[i] = m.EventID
			evidence = append(evidence, domain.Evidence{
				Description: fmt.Sprintf("corroborated by %s: %s", m.Source, m.Title),
				Source:      m.Source,
				ObservedAt:  event.ObservedAt,
			})
		}

		group := append([]domain.RawEvent{event}, p.fingerprintCache.RawEvents(matchedIDs)...)
		if conflicts := p.conflicts.Detect(group); len(conflicts) > 0 {
			severity := correlate.OverallSeverity(conflicts)
			interval = p.confidence.AdjustForConflict(interval, severity)
		}

		correlatedAssets = p.correlateAssets(ctx, event)
		for _, ca := range correlatedAssets {
			if ca.Quote == nil {
				continue
			}
			evidence = append(evidence, domain.Evidence{
				Description: fmt.Sprintf("correlated asset %s: %.2f (%.2f%% 24h), strength %.2f",
					ca.Symbol, ca.Quote.Price, ca.Quote.Change24hPct, ca.CorrelationStrength),
				Source:     event.Source,
				ObservedAt: event.ObservedAt,
			})
		}
	}

	confidenceScore := interval.Point

	if confidenceScore < p.config.MinConfidenceForOutput {
		return Result{OK: true, Stats: Stats{Filtered: 1}}
	}

	omenSignal := domain.OmenSignal{
		SignalID:           uuid.NewString(),
		SourceEventID:      event.EventID,
		TraceID:            uuid.NewString(),
		Title:              event.Title,
		Description:        event.Description,
		Probability:        event.EffectiveProbability(),
		ProbabilitySource:  event.Source,
		ConfidenceScore:    confidenceScore,
		ConfidenceInterval: interval,
		ConfidenceLevel:    confidence.Level(confidenceScore),
		Category:           enrichResult.Category,
		SignalType:         enrichResult.SignalType,
		Status:             domain.StatusActive,
		Geographic:         enrichResult.Geographic,
		Temporal:           buildTemporal(event),
		ImpactHints:        enrichResult.ImpactHints,
		Evidence:           evidence,
		RulesetVersion:     p.config.RulesetVersion,
		GeneratedAt:        time.Now().UTC(),
		InputEventHash:     hash,
	}

	if p.config.EnableDryRun {
		return Result{OK: true, Signals: []domain.OmenSignal{omenSignal}}
	}

	if p.emitter == nil {
		return Result{OK: false, Err: errors.New("pipeline: no emitter configured")}
	}

	emitResult, err := p.emitter.Emit(ctx, omenSignal)
	if err != nil && !errors.Is(err, errkind.ErrDuplicateSignal) {
		return Result{OK: false, Err: err}
	}
	_ = emitResult

	return Result{OK: true, Signals: []domain.OmenSignal{omenSignal}, Stats: Stats{Emitted: 1}}
}

func (p *Pipeline) correlateAssets(ctx context.Context, event domain.RawEvent) []CorrelatedAsset {
	seen := make(map[string]bool)
	var out []CorrelatedAsset
	for _, keyword := range event.Keywords {
		category, eventType, ok := correlate.MatchKeyword(keyword)
		if !ok {
			continue
		}
		assets := correlate.GetCorrelatedAssets(category, eventType)
		for _, symbol := range assets {
			if seen[symbol] {
				continue
			}
			seen[symbol] = true

			ca := CorrelatedAsset{
				Symbol:              symbol,
				CorrelationStrength: correlate.CorrelationStrength(category, eventType, symbol),
			}
			if p.assetPort != nil {
				fetchCtx := ctx
				var cancel context.CancelFunc
				if p.config.AssetFetchTimeout > 0 {
					fetchCtx, cancel = context.WithTimeout(ctx, p.config.AssetFetchTimeout)
				}
				if quote, err := p.assetPort.FetchQuote(fetchCtx, symbol); err == nil {
					ca.Quote = &quote
				}
				if cancel != nil {
					cancel()
				}
			}
			out = append(out, ca)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// crossSourceBoost mirrors spec.md §4.6: +0.10 for >=2 corroborating
// sources, +0.15 for >=3, clamped to [-0.3, 0.3].
func crossSourceBoost(matches []correlate.Match) float64 {
	sources := make(map[domain.Source]bool)
	for _, m := range matches {
		sources[m.Source] = true
	}
	n := len(sources)
	switch {
	case n >= 3:
		return 0.15
	case n >= 2:
		return 0.10
	default:
		return 0.0
	}
}

func widenPoint(iv domain.ConfidenceInterval, boost float64) domain.ConfidenceInterval {
	if boost == 0 {
		return iv
	}
	if boost > 0.3 {
		boost = 0.3
	}
	if boost < -0.3 {
		boost = -0.3
	}
	iv.Point = clamp01(iv.Point + boost)
	iv.Lower = clamp01(iv.Lower + boost)
	iv.Upper = clamp01(iv.Upper + boost)
	return iv
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func buildTemporal(event domain.RawEvent) domain.Temporal {
	t := domain.Temporal{}
	if event.Market != nil && !event.Market.ResolutionDate.IsZero() {
		rd := event.Market.ResolutionDate
		t.ResolutionDate = &rd
		t.EventHorizon = &rd
	}
	return t
}

// InputEventHash computes sha256(canonical_json(event)) as a stable
// dedupe key (spec.md §4.7 step 9: "Compute input_event_hash =
// sha256(canonical_json(input_event))").
func InputEventHash(event domain.RawEvent) string {
	canonical, _ := json.Marshal(event)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
