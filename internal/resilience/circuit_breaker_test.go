package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripBreaker(t *testing.T, b *CircuitBreaker, failures int) {
	t.Helper()
	for i := 0; i < failures; i++ {
		_, err := b.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, errors.New("boom")
		})
		require.Error(t, err)
	}
	require.Equal(t, StateOpen, b.State())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 2
	b := New("test", cfg, nil)

	tripBreaker(t, b, 2)
}

func TestCircuitBreaker_FastFailsWhileOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	b := New("test", cfg, nil)

	tripBreaker(t, b, 1)

	_, err := b.Execute(context.Background(), func(ctx context.Context) (any, error) {
		t.Fatal("fn must not run while breaker is open")
		return nil, nil
	})
	var openErr *ErrOpen
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "test", openErr.Name)
}

// TestCircuitBreaker_SuccessThresholdClosesBeforeHalfOpenMaxCalls verifies
// SuccessThreshold is enforced as its own close condition, distinct from
// HalfOpenMaxCalls, by setting SuccessThreshold well below HalfOpenMaxCalls
// and confirming the breaker closes after exactly SuccessThreshold probes
// rather than waiting for HalfOpenMaxCalls.
func TestCircuitBreaker_SuccessThresholdClosesBeforeHalfOpenMaxCalls(t *testing.T) {
	cfg := Config{
		FailureThreshold:     1,
		SuccessThreshold:     1,
		Timeout:              10 * time.Millisecond,
		HalfOpenMaxCalls:     5,
		WindowSize:           time.Second,
		FailureRateThreshold: 0.5,
		MinCallsInWindow:     100,
	}
	b := New("test", cfg, nil)

	tripBreaker(t, b, 1)

	time.Sleep(cfg.Timeout * 2)

	_, err := b.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	assert.Equal(t, StateClosed, b.State(),
		"breaker should close after a single half-open success since SuccessThreshold=1, without waiting for HalfOpenMaxCalls=5")
}

func TestCircuitBreaker_Reset_ReturnsToClosed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	b := New("test", cfg, nil)

	tripBreaker(t, b, 1)

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}
