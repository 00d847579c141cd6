package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/hoangpro267200/omen/internal/broadcast"
	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/pipeline"
	"github.com/hoangpro267200/omen/internal/resilience"
)

// healthResponse is GET /health's body (spec.md §6).
type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	UptimeSecs float64                    `json:"uptime"`
	Sources    map[string]sourceHealth    `json:"sources"`
	Components map[string]string          `json:"components"`
}

type sourceHealth struct {
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// Version is stamped at build time by cmd/omen; a plain var keeps this
// package link-compatible with -ldflags -X.
var Version = "dev"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sources := map[string]sourceHealth{}
	overallDegraded := false
	overallUnhealthy := false

	if s.registry != nil {
		for _, adapter := range s.registry.Enabled() {
			result := adapter.HealthCheck(r.Context())
			sources[string(adapter.Name())] = sourceHealth{
				Status:    string(result.Status),
				LatencyMs: result.LatencyMs,
				Error:     result.Error,
			}
			s.metrics.RecordSourceHealth(string(adapter.Name()), result.Status == resilience.HealthHealthy)
			switch result.Status {
			case resilience.HealthUnhealthy:
				overallUnhealthy = true
			case resilience.HealthDegraded:
				overallDegraded = true
			}
		}
	}

	if s.breakers != nil {
		for name, state := range s.breakers.All() {
			s.metrics.RecordBreakerState(name, state)
		}
	}

	status := "healthy"
	if overallUnhealthy {
		status = "unhealthy"
	} else if overallDegraded {
		status = "degraded"
	}

	writeJSON(w, healthResponse{
		Status:     status,
		Version:    Version,
		UptimeSecs: time.Since(s.startedAt).Seconds(),
		Sources:    sources,
		Components: map[string]string{
			"ledger":    "ok",
			"pipeline":  "ok",
			"broadcast": componentStatus(s.hub != nil),
		},
	})
}

func componentStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "disabled"
}

// signalsListResponse is GET /api/v1/signals's body.
type signalsListResponse struct {
	Items   []domain.OmenSignal `json:"items"`
	HasMore bool                 `json:"has_more"`
	Cursor  string               `json:"cursor,omitempty"`
}

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	statusFilter := domain.Status(r.URL.Query().Get("status"))

	if s.reader == nil {
		writeJSON(w, signalsListResponse{Items: []domain.OmenSignal{}})
		return
	}

	partitions, err := s.reader.ListPartitions()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "LEDGER_READ_FAILED", err.Error(), nil)
		return
	}

	var items []domain.OmenSignal
	for i := len(partitions) - 1; i >= 0 && len(items) < limit; i-- {
		events, err := s.reader.ReadPartition(partitions[i], true, true)
		if err != nil {
			continue
		}
		for j := len(events) - 1; j >= 0 && len(items) < limit; j-- {
			sig := events[j].Signal
			if statusFilter != "" && sig.Status != statusFilter {
				continue
			}
			items = append(items, sig)
		}
	}

	writeJSON(w, signalsListResponse{Items: items, HasMore: len(items) == limit})
}

func (s *Server) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	signalID := mux.Vars(r)["signal_id"]
	if s.reader == nil {
		writeError(w, r, http.StatusNotFound, "SIGNAL_NOT_FOUND", "no ledger reader configured", nil)
		return
	}

	partitions, err := s.reader.ListPartitions()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "LEDGER_READ_FAILED", err.Error(), nil)
		return
	}

	for _, p := range partitions {
		if event, found, err := s.reader.GetSignal(trimLateSuffix(p), signalID); err == nil && found {
			writeJSON(w, event.Signal)
			return
		}
	}
	writeError(w, r, http.StatusNotFound, "SIGNAL_NOT_FOUND", "no signal with that id", nil)
}

func trimLateSuffix(partition string) string {
	const suffix = "-late"
	if len(partition) > len(suffix) && partition[len(partition)-len(suffix):] == suffix {
		return partition[:len(partition)-len(suffix)]
	}
	return partition
}

// liveGenerateResponse is POST /api/v1/live/generate's body.
type liveGenerateResponse struct {
	Success        bool                      `json:"success"`
	SignalsCreated int                        `json:"signals_created"`
	Sources        map[string]sourceFetchResult `json:"sources"`
	SignalIDs      []string                  `json:"signal_ids"`
}

type sourceFetchResult struct {
	Status string `json:"status"`
	Count  int    `json:"count,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleLiveGenerate(w http.ResponseWriter, r *http.Request) {
	resp := liveGenerateResponse{
		Sources:   map[string]sourceFetchResult{},
		SignalIDs: []string{},
	}

	if s.registry == nil || s.pipeline == nil {
		writeError(w, r, http.StatusServiceUnavailable, "PIPELINE_UNAVAILABLE", "no registry/pipeline configured", nil)
		return
	}

	for _, adapter := range s.registry.Enabled() {
		events, err := s.registry.FetchWithFallback(r.Context(), adapter.Name(), 50)
		if err != nil {
			resp.Sources[string(adapter.Name())] = sourceFetchResult{Status: "error", Error: err.Error()}
			continue
		}

		created := 0
		for _, event := range events {
			result := s.pipeline.Process(r.Context(), event)
			s.metrics.RecordPipelineOutcome(pipelineOutcomeName(result))
			if result.OK && len(result.Signals) > 0 {
				created++
				for _, sig := range result.Signals {
					resp.SignalIDs = append(resp.SignalIDs, sig.SignalID)
				}
			}
		}
		resp.Sources[string(adapter.Name())] = sourceFetchResult{Status: "ok", Count: created}
		resp.SignalsCreated += created
	}

	resp.Success = true
	writeJSON(w, resp)
}

func pipelineOutcomeName(result pipeline.Result) string {
	switch {
	case result.Stats.Emitted > 0:
		return "emitted"
	case result.Stats.Dedupe > 0:
		return "dedupe"
	case result.Stats.Filtered > 0:
		return "filtered"
	case result.Stats.Rejected > 0:
		return "rejected"
	case !result.OK:
		return "error"
	default:
		return "noop"
	}
}

// handlePartnerSignals serves §6's partner-signals contract, which must
// never carry any of the ForbiddenFields — scanned defensively before
// the response is written (supplemented feature, spec.md's
// test_signal_engine_compliance.py).
func (s *Server) handlePartnerSignals(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	type partnerSignal struct {
		SignalID        string                     `json:"signal_id"`
		Title           string                     `json:"title"`
		Category        domain.Category            `json:"category"`
		Probability     float64                    `json:"probability"`
		ConfidenceScore float64                     `json:"confidence_score"`
		ConfidenceInterval domain.ConfidenceInterval `json:"confidence_interval"`
		Evidence        []domain.Evidence          `json:"evidence,omitempty"`
		GeneratedAt     time.Time                  `json:"generated_at"`
	}

	var items []partnerSignal
	if s.reader != nil {
		partitions, _ := s.reader.ListPartitions()
		for _, p := range partitions {
			events, err := s.reader.ReadPartition(trimLateSuffix(p), true, false)
			if err != nil {
				continue
			}
			for _, e := range events {
				if symbol != "" {
					matched := false
					for _, asset := range e.Signal.ImpactHints.AffectedAssetTypes {
						if asset == symbol {
							matched = true
							break
						}
					}
					if !matched {
						continue
					}
				}
				items = append(items, partnerSignal{
					SignalID:           e.Signal.SignalID,
					Title:              e.Signal.Title,
					Category:           e.Signal.Category,
					Probability:        e.Signal.Probability,
					ConfidenceScore:    e.Signal.ConfidenceScore,
					ConfidenceInterval: e.Signal.ConfidenceInterval,
					Evidence:           e.Signal.Evidence,
					GeneratedAt:        e.Signal.GeneratedAt,
				})
			}
		}
	}

	response := map[string]any{"items": items}
	if forbidden, err := ScanForForbiddenFields(response); err == nil && len(forbidden) > 0 {
		s.log.Error().Strs("forbidden_fields", forbidden).Msg("httpapi: partner-signals response carried forbidden fields, refusing to serve")
		writeError(w, r, http.StatusInternalServerError, "COMPLIANCE_VIOLATION", "response construction error", nil)
		return
	}

	writeJSON(w, response)
}

// activityEvent is one entry of GET /activity's feed.
type activityEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	var events []activityEvent
	if s.reader != nil {
		partitions, _ := s.reader.ListPartitions()
		for i := len(partitions) - 1; i >= 0 && len(events) < 50; i-- {
			signalEvents, err := s.reader.ReadPartition(trimLateSuffix(partitions[i]), true, true)
			if err != nil {
				continue
			}
			for j := len(signalEvents) - 1; j >= 0 && len(events) < 50; j-- {
				sig := signalEvents[j].Signal
				events = append(events, activityEvent{
					Type:      "signal",
					Message:   sig.Title,
					Timestamp: sig.GeneratedAt,
				})
			}
		}
	}
	writeJSON(w, map[string]any{"items": events})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and registers it with the
// broadcaster's hub on the "signals" channel (internal/broadcast's C12).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, r, http.StatusServiceUnavailable, "BROADCAST_UNAVAILABLE", "realtime broadcast is not configured", nil)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("httpapi: websocket upgrade failed")
		return
	}
	s.hub.Register(broadcast.SignalsChannel, conn)
}
