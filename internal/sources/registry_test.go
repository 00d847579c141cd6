package sources

import (
	"context"
	"testing"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryClassification(t *testing.T) {
	reg := NewRegistry()
	resReg := resilience.NewRegistry()

	real := NewMock(domain.SourcePolymarket, resReg, []domain.RawEvent{SampleEvent(domain.SourcePolymarket, 1)})
	reg.Register(real, ProviderConfig{Provider: "polymarket-live", CredentialsPresent: true, Enabled: true})

	mockNoCreds := NewMock(domain.SourceNews, resReg, nil)
	reg.Register(mockNoCreds, ProviderConfig{Provider: "newsapi", CredentialsPresent: false, Enabled: true})

	disabled := NewMock(domain.SourceWeather, resReg, nil)
	reg.Register(disabled, ProviderConfig{Provider: "noaa", CredentialsPresent: true, Enabled: false})

	kind, ok := reg.Kind(domain.SourcePolymarket)
	require.True(t, ok)
	assert.Equal(t, domain.SourceKindReal, kind)

	kind, ok = reg.Kind(domain.SourceNews)
	require.True(t, ok)
	assert.Equal(t, domain.SourceKindMock, kind)

	kind, ok = reg.Kind(domain.SourceWeather)
	require.True(t, ok)
	assert.Equal(t, domain.SourceKindDisabled, kind)

	enabled := reg.Enabled()
	assert.Len(t, enabled, 2)
}

func TestRegistryCanGoLive(t *testing.T) {
	reg := NewRegistry()
	resReg := resilience.NewRegistry()

	reg.Register(NewMock(domain.SourcePolymarket, resReg, nil), ProviderConfig{Provider: "live", CredentialsPresent: true, Enabled: true})
	canGo, blockers := reg.CanGoLive()
	assert.True(t, canGo)
	assert.Empty(t, blockers)

	reg.Register(NewMock(domain.SourceNews, resReg, nil), ProviderConfig{Provider: "", CredentialsPresent: false, Enabled: true})
	canGo, blockers = reg.CanGoLive()
	assert.False(t, canGo)
	assert.Len(t, blockers, 1)
}

func TestRegistryFetchWithFallback(t *testing.T) {
	reg := NewRegistry()
	resReg := resilience.NewRegistry()

	failing := &failingAdapter{name: domain.SourceFreight}
	fallback := NewMock(domain.SourceEquities, resReg, []domain.RawEvent{SampleEvent(domain.SourceEquities, 1)})

	reg.Register(failing, ProviderConfig{Provider: "primary", CredentialsPresent: true, Enabled: true}, string(domain.SourceEquities))
	reg.Register(fallback, ProviderConfig{Provider: "secondary", CredentialsPresent: true, Enabled: true})

	events, err := reg.FetchWithFallback(context.Background(), domain.SourceFreight, 5)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

type failingAdapter struct {
	name domain.Source
}

func (f *failingAdapter) Name() domain.Source { return f.name }
func (f *failingAdapter) IsConfigured() bool  { return true }
func (f *failingAdapter) FetchEvents(ctx context.Context, limit int) ([]domain.RawEvent, error) {
	return nil, assert.AnError
}
func (f *failingAdapter) HealthCheck(ctx context.Context) HealthCheckResult {
	return HealthCheckResult{Status: resilience.HealthUnhealthy}
}
