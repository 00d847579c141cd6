package emitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/errkind"
	"github.com/hoangpro267200/omen/internal/ledger"
	"github.com/hoangpro267200/omen/internal/resilience"
)

func testSignal(id string) domain.OmenSignal {
	return domain.OmenSignal{
		SignalID:       id,
		SourceEventID:  "evt-" + id,
		InputEventHash: "hash-" + id,
		GeneratedAt:    time.Now().UTC(),
	}
}

type fakeHotPath struct {
	pushErr error
	ackID   string
	calls   int
}

func (f *fakeHotPath) Push(ctx context.Context, event domain.SignalEvent) (string, error) {
	f.calls++
	if f.pushErr != nil {
		return "", f.pushErr
	}
	return f.ackID, nil
}

func newTestEmitter(t *testing.T, hotPath HotPathClient) *Emitter {
	t.Helper()
	w, err := ledger.NewWriter(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Breaker.FailureThreshold = 100 // don't trip the breaker mid-test unless asserted
	return New(w, hotPath, nil, cfg, zerolog.Nop())
}

func TestEmit_SuccessfulPushReportsDelivered(t *testing.T) {
	hp := &fakeHotPath{ackID: "ack-1"}
	e := newTestEmitter(t, hp)

	result, err := e.Emit(context.Background(), testSignal("s1"))

	require.NoError(t, err)
	assert.Equal(t, domain.EmitDelivered, result.Status)
	assert.Equal(t, "ack-1", result.AckID)
	assert.NotEmpty(t, result.LedgerPartition)
	assert.Equal(t, 1, hp.calls)
}

func TestEmit_DuplicateHotPathResponseIsTreatedAsSuccess(t *testing.T) {
	hp := &fakeHotPath{pushErr: errkind.ErrDuplicateSignal}
	e := newTestEmitter(t, hp)

	result, err := e.Emit(context.Background(), testSignal("s2"))

	require.NoError(t, err)
	assert.Equal(t, domain.EmitDuplicate, result.Status)
}

func TestEmit_NoHotPathConfiguredIsLedgerOnly(t *testing.T) {
	e := newTestEmitter(t, nil)

	result, err := e.Emit(context.Background(), testSignal("s3"))

	require.NoError(t, err)
	assert.Equal(t, domain.EmitLedgerOnly, result.Status)
}

func TestEmit_HotPathFailureIsLedgerOnlyNotError(t *testing.T) {
	hp := &fakeHotPath{pushErr: errors.New("boom")}
	e := newTestEmitter(t, hp)
	e.breaker = resilience.New("test", resilience.Config{
		FailureThreshold: 100, SuccessThreshold: 1, Timeout: time.Second,
		HalfOpenMaxCalls: 1, WindowSize: time.Minute, FailureRateThreshold: 1, MinCallsInWindow: 1000,
	}, nil)

	result, err := e.Emit(context.Background(), testSignal("s4"))

	require.NoError(t, err, "the signal is already durably ledgered; push failure is not a pipeline error")
	assert.Equal(t, domain.EmitLedgerOnly, result.Status)
}

func TestEmit_BreakerOpenSkipsPushAndReportsLedgerOnly(t *testing.T) {
	hp := &fakeHotPath{pushErr: errors.New("boom")}
	e := newTestEmitter(t, hp)
	e.breaker = resilience.New("test-open", resilience.Config{
		FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute,
		HalfOpenMaxCalls: 1, WindowSize: time.Minute, FailureRateThreshold: 1, MinCallsInWindow: 1000,
	}, nil)

	_, err := e.Emit(context.Background(), testSignal("s5"))
	require.NoError(t, err)

	result, err := e.Emit(context.Background(), testSignal("s6"))
	require.NoError(t, err)
	assert.Equal(t, domain.EmitLedgerOnly, result.Status)
}

func TestBackpressure_TripsAfterThresholdAndClearsOnSuccess(t *testing.T) {
	bp := NewBackpressure(2, time.Minute)
	bp.RecordFailure()
	assert.False(t, bp.InWindow())
	bp.RecordFailure()
	assert.True(t, bp.InWindow())

	bp.RecordSuccess()
	assert.False(t, bp.InWindow())
}
