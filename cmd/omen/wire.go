package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for audit.Logger/AttestationStore
	"github.com/rs/zerolog"

	"github.com/hoangpro267200/omen/internal/audit"
	"github.com/hoangpro267200/omen/internal/broadcast"
	"github.com/hoangpro267200/omen/internal/config"
	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/emitter"
	"github.com/hoangpro267200/omen/internal/httpapi"
	"github.com/hoangpro267200/omen/internal/ledger"
	"github.com/hoangpro267200/omen/internal/lifecycle"
	"github.com/hoangpro267200/omen/internal/pipeline"
	"github.com/hoangpro267200/omen/internal/resilience"
	"github.com/hoangpro267200/omen/internal/sources"
	"github.com/hoangpro267200/omen/internal/trust"
)

// runtime bundles every long-lived subsystem runServe starts and stops
// together. Nothing outside main owns these references.
type runtime struct {
	writer      *ledger.Writer
	reader      *ledger.Reader
	registry    *sources.Registry
	pipeline    *pipeline.Pipeline
	broadcaster *broadcast.Broadcaster
	lifecycle   *lifecycle.Manager
	httpSrv     *httpapi.Server
	auditDB     *sqlx.DB
	auditLogger *audit.Logger
	attestation *audit.AttestationStore
}

// buildRuntime wires config into every subsystem, in dependency order:
// ledger → source registry → broadcaster → emitter → pipeline → lifecycle →
// optional audit store → HTTP API. Grounded on the teacher's
// db.NewManager "enabled iff DSN present, otherwise degrade gracefully"
// pattern for the optional Postgres-backed audit trail.
func buildRuntime(ctx context.Context, cfg config.Config, log zerolog.Logger) (*runtime, error) {
	writer, err := ledger.NewWriter(cfg.LedgerBasePath, log)
	if err != nil {
		return nil, fmt.Errorf("open ledger writer: %w", err)
	}
	reader := ledger.NewReader(cfg.LedgerBasePath, log)
	if err := writer.Hydrate(reader); err != nil {
		return nil, fmt.Errorf("hydrate ledger dedupe index: %w", err)
	}

	breakers := resilience.NewRegistry()
	registry := buildSourceRegistry(cfg, breakers)

	broadcaster := broadcast.New(broadcast.Config{RedisURL: cfg.RedisURL}, log)

	var hotPath emitter.HotPathClient
	if cfg.ExplanationsHotPath {
		endpoint := config.EnvString("RISKCAST_URL", "")
		key := config.EnvString("RISKCAST_API_KEY", "")
		if endpoint != "" {
			hotPath = emitter.NewHTTPHotPathClient(endpoint, "Bearer "+key, 10*time.Second, resilience.DefaultRetryConfig())
		} else {
			log.Warn().Msg("omen: EXPLANATIONS_HOT_PATH is set but RISKCAST_URL is empty, running ledger-only")
		}
	}
	em := emitter.New(writer, hotPath, broadcaster, emitter.DefaultConfig(), log)

	pl := pipeline.New(writer, em, nil, trust.NewManager(), pipeline.DefaultConfig())

	lcCfg := lifecycle.DefaultConfig(cfg.BackupDir)
	lc := lifecycle.New(cfg.LedgerBasePath, writer, lcCfg, log)

	rt := &runtime{
		writer:      writer,
		reader:      reader,
		registry:    registry,
		pipeline:    pl,
		broadcaster: broadcaster,
		lifecycle:   lc,
	}

	if cfg.DatabaseURL != "" {
		db, err := sqlx.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open audit database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping audit database: %w", err)
		}
		rt.auditDB = db
		rt.auditLogger = audit.NewLogger(db, 5*time.Second)
		rt.attestation = audit.NewAttestationStore(db, 5*time.Second)
	} else {
		log.Warn().Msg("omen: DATABASE_URL not configured, audit trail disabled")
	}

	auth := httpapi.NewAuthenticator(cfg.APIKeyPepper, nil)
	seedDevAPIKey(auth, cfg, log)

	rt.httpSrv = httpapi.New(
		config.EnvString("OMEN_HTTP_ADDR", ":8080"),
		httpapi.DefaultConfig(),
		auth,
		reader,
		registry,
		pl,
		broadcaster,
		breakers,
		log,
	)

	return rt, nil
}

// seedDevAPIKey registers a single well-known admin key in development so
// the API is usable without a provisioning flow; production deployments
// must provision keys out of band (spec.md never specifies a provisioning
// endpoint, so none is built).
func seedDevAPIKey(auth *httpapi.Authenticator, cfg config.Config, log zerolog.Logger) {
	if cfg.Env != config.EnvDevelopment {
		return
	}
	auth.Register("dev-local-key", httpapi.APIKeyRecord{Name: "dev", Scopes: []string{"admin"}, Active: true})
	log.Warn().Msg("omen: development mode, seeded X-API-Key 'dev-local-key' with admin scope")
}

// Close releases every subsystem the runtime owns, in roughly reverse
// wiring order. Errors are collected, not short-circuited, so a single
// failure doesn't skip releasing the rest.
func (rt *runtime) Close() error {
	var errs []string
	if err := rt.broadcaster.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("broadcaster: %v", err))
	}
	if rt.auditDB != nil {
		if err := rt.auditDB.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("audit db: %v", err))
		}
	}
	if err := rt.writer.FlushAndClose(); err != nil {
		errs = append(errs, fmt.Sprintf("ledger: %v", err))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("runtime shutdown: %s", strings.Join(errs, "; "))
}

// sourceTimeout bounds every adapter's outbound call; uniform across
// sources, same as the teacher's per-provider timeout in
// internal/infrastructure/providers.
const sourceTimeout = 10 * time.Second

// buildSourceRegistry constructs one adapter per enumerated source,
// wiring the real provider implementation when credentials are present
// and falling back to sources.Mock otherwise. Registration always records
// cfg's classification (REAL/MOCK/DISABLED) regardless of which concrete
// adapter backs it, per spec.md §4.2/C3.
func buildSourceRegistry(cfg config.Config, breakers *resilience.Registry) *sources.Registry {
	registry := sources.NewRegistry()

	for name, sc := range cfg.Sources {
		adapter := buildAdapter(name, sc, breakers)
		registry.Register(adapter, sc.ProviderConfig)
	}
	return registry
}

func buildAdapter(name domain.Source, sc config.SourceConfig, breakers *resilience.Registry) sources.Adapter {
	real := sc.Enabled && sc.Provider != "" && sc.Provider != "mock" && sc.CredentialsPresent

	if !real {
		return sources.NewMock(name, breakers, sampleEvents(name))
	}

	switch name {
	case domain.SourcePolymarket:
		baseURL := config.EnvString("POLYMARKET_BASE_URL", "https://gamma-api.polymarket.com")
		return sources.NewPolymarket(breakers, baseURL, sc.APIKey, sourceTimeout)
	case domain.SourceAIS:
		streamURL := config.EnvString("AIS_STREAM_URL", "wss://ais.example.internal/stream")
		return sources.NewAIS(breakers, streamURL, sc.APIKey, sourceTimeout)
	case domain.SourceWeather:
		baseURL := config.EnvString("WEATHER_BASE_URL", "https://api.weather.gov")
		return sources.NewWeather(breakers, baseURL, sc.APIKey, sourceTimeout)
	case domain.SourceNews:
		baseURL := config.EnvString("NEWS_BASE_URL", "https://newsapi.org/v2")
		query := config.EnvString("NEWS_QUERY", "supply chain OR shipping OR port closure OR tariff")
		return sources.NewNews(breakers, baseURL, sc.APIKey, query, sourceTimeout)
	case domain.SourceFreight:
		baseURL := config.EnvString("FREIGHT_BASE_URL", "https://markets.example.internal")
		return sources.NewFreight(breakers, baseURL, sc.APIKey, splitCSV(config.EnvString("FREIGHT_INSTRUMENTS", "BDIY")), sourceTimeout)
	case domain.SourceEquities:
		baseURL := config.EnvString("EQUITIES_BASE_URL", "https://markets.example.internal")
		return sources.NewEquities(breakers, baseURL, sc.APIKey, splitCSV(config.EnvString("EQUITIES_INSTRUMENTS", "FDX,UPS,MAERSK-B.CO")), sourceTimeout)
	case domain.SourceCommodity:
		baseURL := config.EnvString("COMMODITY_BASE_URL", "https://markets.example.internal")
		return sources.NewCommodity(breakers, baseURL, sc.APIKey, splitCSV(config.EnvString("COMMODITY_INSTRUMENTS", "BRENT,WTI,NATGAS")), sourceTimeout)
	default:
		return sources.NewMock(name, breakers, sampleEvents(name))
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sampleEvents seeds a mock adapter with a handful of deterministic
// synthetic events so a from-scratch development run still has something
// to score.
func sampleEvents(name domain.Source) []domain.RawEvent {
	events := make([]domain.RawEvent, 0, 3)
	for i := 1; i <= 3; i++ {
		events = append(events, sources.SampleEvent(name, i))
	}
	return events
}
