// Package config loads the process configuration from environment
// variables (spec.md §6's enumerated option list), following the
// teacher's typed-getter style in internal/secrets/env.go (EnvString,
// EnvInt, EnvDuration, EnvBool with defaults) rather than a YAML/viper
// layer — the spec frames every option as "environment-style", so there
// is no config file to parse.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/sources"
)

// Env is the deployment environment. Production enforces mandatory
// options that development tolerates being absent.
type Env string

const (
	EnvDevelopment Env = "development"
	EnvProduction  Env = "production"
)

// SourceConfig is the per-source slice of ProviderConfig plus the raw
// API key, read from "<SOURCE>_PROVIDER" / "<SOURCE>_API_KEY".
type SourceConfig struct {
	sources.ProviderConfig
	APIKey string
}

// Config is the complete set of options spec.md §6 enumerates.
type Config struct {
	Env Env

	LedgerBasePath      string
	BackupDir           string
	BackupRetentionDays int

	DatabaseURL string // optional
	RedisURL    string // optional

	Sources map[domain.Source]SourceConfig

	APIKeyPepper string // mandatory in production

	RateLimitRPM   int
	RateLimitBurst int

	OTLPEndpoint string // optional

	ExplanationsHotPath bool
}

// sourceEnvPrefix maps each enumerated source to the env-var prefix used
// for its "<PREFIX>_PROVIDER" / "<PREFIX>_API_KEY" pair.
var sourceEnvPrefix = map[domain.Source]string{
	domain.SourcePolymarket: "POLYMARKET",
	domain.SourceAIS:        "AIS",
	domain.SourceWeather:    "WEATHER",
	domain.SourceNews:       "NEWS",
	domain.SourceFreight:    "FREIGHT",
	domain.SourceEquities:   "EQUITIES",
	domain.SourceCommodity:  "COMMODITY",
}

// Load reads Config from the process environment and validates it
// against Env-dependent mandatory fields (spec.md §6).
func Load() (Config, error) {
	cfg := Config{
		Env:                 Env(EnvString("OMEN_ENV", string(EnvDevelopment))),
		LedgerBasePath:      EnvString("OMEN_LEDGER_BASE_PATH", "./data/ledger"),
		BackupDir:           EnvString("OMEN_BACKUP_DIR", "./data/backup"),
		BackupRetentionDays: EnvInt("OMEN_BACKUP_RETENTION_DAYS", 30),
		DatabaseURL:         EnvString("DATABASE_URL", ""),
		RedisURL:            EnvString("REDIS_URL", ""),
		APIKeyPepper:        EnvString("OMEN_API_KEY_PEPPER", ""),
		RateLimitRPM:        EnvInt("RATE_LIMIT_RPM", 60),
		RateLimitBurst:      EnvInt("RATE_LIMIT_BURST", 10),
		OTLPEndpoint:        EnvString("OTLP_ENDPOINT", ""),
		ExplanationsHotPath: EnvBool("EXPLANATIONS_HOT_PATH", false),
	}

	cfg.Sources = make(map[domain.Source]SourceConfig, len(sourceEnvPrefix))
	for name, prefix := range sourceEnvPrefix {
		provider := EnvString(prefix+"_PROVIDER", "mock")
		apiKey := EnvString(prefix+"_API_KEY", "")
		cfg.Sources[name] = SourceConfig{
			ProviderConfig: sources.ProviderConfig{
				Provider:           provider,
				CredentialsPresent: apiKey != "",
				Enabled:            EnvBool(prefix+"_ENABLED", true),
			},
			APIKey: apiKey,
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the options spec.md §6 marks mandatory in production.
func (c Config) Validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("config: OMEN_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if c.LedgerBasePath == "" {
		return fmt.Errorf("config: OMEN_LEDGER_BASE_PATH must not be empty")
	}
	if c.Env == EnvProduction && strings.TrimSpace(c.APIKeyPepper) == "" {
		return fmt.Errorf("config: OMEN_API_KEY_PEPPER is mandatory in production")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_RPM must be positive, got %d", c.RateLimitRPM)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	}
	return nil
}

// EnvString reads key, returning fallback if unset or empty.
func EnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt reads key as an integer, returning fallback if unset or invalid.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// EnvBool reads key as a boolean, returning fallback if unset or invalid.
func EnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// EnvDuration reads key via time.ParseDuration, returning fallback if
// unset or invalid.
func EnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
