// Package httpapi implements the subset of spec.md §6's public HTTP
// surface needed to exercise the pipeline/ledger/emitter/broadcast stack
// end to end: /health, /api/v1/signals[/{id}], /api/v1/live/generate,
// /api/v1/partner-signals, /activity, /metrics, and a WebSocket upgrade
// wired to internal/broadcast's hub. Grounded on the teacher's
// internal/interfaces/http/server.go (gorilla/mux router, a chained
// middleware stack, a request-ID-carrying context) generalized from a
// read-only local scanner API to an authenticated signal-intelligence
// API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/hoangpro267200/omen/internal/broadcast"
	"github.com/hoangpro267200/omen/internal/ledger"
	"github.com/hoangpro267200/omen/internal/pipeline"
	"github.com/hoangpro267200/omen/internal/resilience"
	"github.com/hoangpro267200/omen/internal/sources"
)

// Config configures the HTTP surface.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig mirrors the teacher's DefaultServerConfig timeouts.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server wires the router, auth, and the subsystems every handler reads
// from: the ledger reader, the registry, the pipeline, and the
// broadcaster's hub (for the WebSocket upgrade endpoint).
type Server struct {
	router   *mux.Router
	server   *http.Server
	log      zerolog.Logger
	cfg      Config
	auth     *Authenticator
	reader   *ledger.Reader
	registry *sources.Registry
	pipeline *pipeline.Pipeline
	breakers *resilience.Registry
	hub      *broadcast.Hub
	metrics  *Metrics
	startedAt time.Time
}

// New builds a Server bound to addr; it does not start listening until
// Start. breakers is optional (nil disables the breaker-state gauge) —
// callers that don't share a resilience.Registry with their adapters can
// pass nil without losing any other endpoint.
func New(addr string, cfg Config, auth *Authenticator, reader *ledger.Reader, registry *sources.Registry, pl *pipeline.Pipeline, bc *broadcast.Broadcaster, breakers *resilience.Registry, log zerolog.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		log:       log.With().Str("component", "httpapi").Logger(),
		cfg:       cfg,
		auth:      auth,
		reader:    reader,
		registry:  registry,
		pipeline:  pl,
		breakers:  breakers,
		metrics:   NewMetrics(),
		startedAt: time.Now().UTC(),
	}
	if bc != nil {
		s.hub = bc.Hub()
	}

	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.jsonContentTypeMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.metrics.Handler().ServeHTTP).Methods(http.MethodGet)
	s.router.HandleFunc("/activity", s.RequireAuth("read:signals", s.handleActivity)).Methods(http.MethodGet)

	s.router.HandleFunc("/api/v1/signals", s.RequireAuth("read:signals", s.handleListSignals)).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/signals/{signal_id}", s.RequireAuth("read:signals", s.handleGetSignal)).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/live/generate", s.RequireAuth("write:signals", s.handleLiveGenerate)).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/partner-signals", s.RequireAuth("read:signals", s.handlePartnerSignals)).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/partner-signals/{symbol}", s.RequireAuth("read:signals", s.handlePartnerSignals)).Methods(http.MethodGet)

	s.router.HandleFunc("/ws/realtime", s.handleWebSocket)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.log.Info().
			Str("request_id", requestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

func requestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Start begins serving; it blocks until the server stops or errors.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("httpapi: starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
