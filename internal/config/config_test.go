package config

import (
	"testing"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "./data/ledger", cfg.LedgerBasePath)
	assert.Equal(t, 60, cfg.RateLimitRPM)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.False(t, cfg.ExplanationsHotPath)
}

func TestLoad_SourceProviderAndCredentials(t *testing.T) {
	t.Setenv("POLYMARKET_PROVIDER", "polymarket")
	t.Setenv("POLYMARKET_API_KEY", "secret-key")

	cfg, err := Load()
	require.NoError(t, err)

	src := cfg.Sources[domain.SourcePolymarket]
	assert.Equal(t, "polymarket", src.Provider)
	assert.True(t, src.CredentialsPresent)
	assert.Equal(t, "secret-key", src.APIKey)
}

func TestLoad_SourceDefaultsToMockWithoutProvider(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	src := cfg.Sources[domain.SourceWeather]
	assert.Equal(t, "mock", src.Provider)
	assert.False(t, src.CredentialsPresent)
}

func TestValidate_ProductionRequiresAPIKeyPepper(t *testing.T) {
	cfg := Config{
		Env:            EnvProduction,
		LedgerBasePath: "/data",
		RateLimitRPM:   60,
		RateLimitBurst: 10,
	}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "OMEN_API_KEY_PEPPER")
}

func TestValidate_DevelopmentAllowsMissingAPIKeyPepper(t *testing.T) {
	cfg := Config{
		Env:            EnvDevelopment,
		LedgerBasePath: "/data",
		RateLimitRPM:   60,
		RateLimitBurst: 10,
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsUnknownEnv(t *testing.T) {
	cfg := Config{Env: "staging", LedgerBasePath: "/data", RateLimitRPM: 1, RateLimitBurst: 1}
	assert.Error(t, cfg.Validate())
}

func TestEnvInt_FallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("OMEN_TEST_INT", "not-a-number")
	assert.Equal(t, 5, EnvInt("OMEN_TEST_INT", 5))
}

func TestEnvBool_FallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("OMEN_TEST_BOOL", "not-a-bool")
	assert.True(t, EnvBool("OMEN_TEST_BOOL", true))
}
