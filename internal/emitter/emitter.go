// Package emitter implements the dual-path emitter (C10, spec.md §4.9):
// every signal must durably land in the ledger before any push is
// attempted (the ledger-first invariant), after which an idempotent hot
// push is attempted through a circuit breaker with backpressure.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hoangpro267200/omen/internal/broadcast"
	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/errkind"
	"github.com/hoangpro267200/omen/internal/ledger"
	"github.com/hoangpro267200/omen/internal/pipeline"
	"github.com/hoangpro267200/omen/internal/resilience"
)

// Config tunes the emitter's backpressure and breaker (spec.md §4.9).
type Config struct {
	BackpressureThreshold int
	MaxBackoff            time.Duration
	Breaker               resilience.Config
}

// DefaultConfig mirrors the Python original's EmitterConfig defaults.
func DefaultConfig() Config {
	return Config{
		BackpressureThreshold: 5,
		MaxBackoff:            5 * time.Minute,
		Breaker:               resilience.DefaultConfig(),
	}
}

// Emitter implements pipeline.Emitter: ledger write first, then a
// best-effort idempotent hot push.
type Emitter struct {
	ledger       *ledger.Writer
	hotPath      HotPathClient
	breaker      *resilience.CircuitBreaker
	backpressure *Backpressure
	broadcaster  *broadcast.Broadcaster
	log          zerolog.Logger
}

// New wires a dual-path emitter. hotPath may be nil for ledger-only
// deployments with no downstream push configured; broadcaster may be nil
// to skip realtime fan-out entirely.
func New(ledgerWriter *ledger.Writer, hotPath HotPathClient, broadcaster *broadcast.Broadcaster, cfg Config, log zerolog.Logger) *Emitter {
	log = log.With().Str("component", "emitter").Logger()
	return &Emitter{
		ledger:       ledgerWriter,
		hotPath:      hotPath,
		breaker:      resilience.New("emitter_hot_path", cfg.Breaker, nil),
		backpressure: NewBackpressure(cfg.BackpressureThreshold, cfg.MaxBackoff),
		broadcaster:  broadcaster,
		log:          log,
	}
}

// Emit implements pipeline.Emitter.Emit. The returned error is non-nil
// only when the ledger write itself failed — status FAILED, no push
// attempted. Every other outcome (DELIVERED, DUPLICATE, LEDGER_ONLY) is
// reported through EmitResult.Status with a nil error, since the signal is
// already durably recorded either way.
func (e *Emitter) Emit(ctx context.Context, signal domain.OmenSignal) (pipeline.EmitResult, error) {
	event := domain.SignalEvent{
		Signal:         signal,
		InputEventHash: signal.InputEventHash,
		EmittedAt:      time.Now().UTC(),
	}

	written, err := e.ledger.Write(ctx, event)
	if err != nil {
		return pipeline.EmitResult{Status: domain.EmitFailed, Err: err},
			fmt.Errorf("%w: ledger write failed, no push attempted: %v", errkind.ErrPersistence, err)
	}

	result := e.pushAfterLedgerWrite(ctx, signal, written)
	if e.broadcaster != nil {
		e.broadcaster.NotifyEmit(ctx, signal, result.Status)
	}
	return result, nil
}

// pushAfterLedgerWrite attempts the hot-path push once the ledger write has
// already succeeded. Every branch here reports through EmitResult.Status
// with a nil error — the signal is durably recorded regardless of outcome.
func (e *Emitter) pushAfterLedgerWrite(ctx context.Context, signal domain.OmenSignal, written domain.SignalEvent) pipeline.EmitResult {
	if e.hotPath == nil {
		return pipeline.EmitResult{Status: domain.EmitLedgerOnly, LedgerPartition: written.LedgerPartition}
	}

	if err := e.backpressure.WaitIfNeeded(ctx); err != nil {
		return pipeline.EmitResult{Status: domain.EmitLedgerOnly, LedgerPartition: written.LedgerPartition}
	}

	type pushOutcome struct{ ackID string }
	result, err := e.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		ackID, err := e.hotPath.Push(ctx, written)
		return pushOutcome{ackID: ackID}, err
	})

	var breakerOpen *resilience.ErrOpen
	if errors.As(err, &breakerOpen) {
		return pipeline.EmitResult{Status: domain.EmitLedgerOnly, LedgerPartition: written.LedgerPartition}
	}

	if errors.Is(err, errkind.ErrDuplicateSignal) {
		e.backpressure.RecordSuccess()
		return pipeline.EmitResult{Status: domain.EmitDuplicate, LedgerPartition: written.LedgerPartition}
	}

	if err != nil {
		e.backpressure.RecordFailure()
		e.log.Warn().Err(err).Str("signal_id", signal.SignalID).
			Msg("emitter: hot path push failed, signal is ledger-only; reconcile pass must resend")
		return pipeline.EmitResult{Status: domain.EmitLedgerOnly, LedgerPartition: written.LedgerPartition}
	}

	e.backpressure.RecordSuccess()
	outcome := result.(pushOutcome)
	return pipeline.EmitResult{
		Status:          domain.EmitDelivered,
		LedgerPartition: written.LedgerPartition,
		AckID:           outcome.ackID,
	}
}

// BreakerState exposes the hot-path breaker's state for health reporting.
func (e *Emitter) BreakerState() resilience.State { return e.breaker.State() }

// InBackpressure reports whether the emitter is currently sleeping through
// a backpressure window.
func (e *Emitter) InBackpressure() bool { return e.backpressure.InWindow() }
