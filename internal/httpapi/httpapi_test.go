package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangpro267200/omen/internal/broadcast"
	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/emitter"
	"github.com/hoangpro267200/omen/internal/ledger"
	"github.com/hoangpro267200/omen/internal/pipeline"
	"github.com/hoangpro267200/omen/internal/resilience"
	"github.com/hoangpro267200/omen/internal/sources"
)

// --- ScanForForbiddenFields ---------------------------------------------

func TestScanForForbiddenFields_CleanSignalPassesThrough(t *testing.T) {
	sig := domain.OmenSignal{
		SignalID:    "sig-1",
		Title:       "Red Sea disruption",
		Category:    domain.CategoryGeopolitical,
		Probability: 0.6,
	}
	found, err := ScanForForbiddenFields(sig)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestScanForForbiddenFields_DetectsNestedForbiddenKey(t *testing.T) {
	payload := map[string]any{
		"items": []any{
			map[string]any{
				"signal_id":  "sig-1",
				"risk_level": "high",
			},
		},
	}
	found, err := ScanForForbiddenFields(payload)
	require.NoError(t, err)
	assert.Contains(t, found, "risk_level")
}

func TestScanForForbiddenFields_DetectsMultipleDistinctFields(t *testing.T) {
	payload := map[string]any{
		"recommendation": "buy",
		"nested": map[string]any{
			"severity": "high",
			"urgency":  "now",
		},
	}
	found, err := ScanForForbiddenFields(payload)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"recommendation", "severity", "urgency"}, found)
}

// --- Authenticator --------------------------------------------------------

func TestAuthenticator_VerifyAcceptsRegisteredKey(t *testing.T) {
	auth := NewAuthenticator("pepper", nil)
	auth.Register("plaintext-key", APIKeyRecord{Name: "partner-a", Scopes: []string{"read:signals"}, Active: true})

	rec, ok := auth.Verify("plaintext-key")
	require.True(t, ok)
	assert.Equal(t, "partner-a", rec.Name)
}

func TestAuthenticator_VerifyRejectsUnknownKey(t *testing.T) {
	auth := NewAuthenticator("pepper", nil)
	auth.Register("plaintext-key", APIKeyRecord{Name: "partner-a", Active: true})

	_, ok := auth.Verify("wrong-key")
	assert.False(t, ok)
}

func TestAuthenticator_VerifyRejectsRevokedKey(t *testing.T) {
	auth := NewAuthenticator("pepper", nil)
	auth.Register("plaintext-key", APIKeyRecord{Name: "partner-a", Active: false})

	_, ok := auth.Verify("plaintext-key")
	assert.False(t, ok)
}

func TestAuthenticator_VerifyRejectsEmptyKey(t *testing.T) {
	auth := NewAuthenticator("pepper", nil)
	_, ok := auth.Verify("")
	assert.False(t, ok)
}

func TestHashAPIKey_DifferentPeppersProduceDifferentHashes(t *testing.T) {
	a := HashAPIKey("pepper-one", "same-key")
	b := HashAPIKey("pepper-two", "same-key")
	assert.NotEqual(t, a, b)
}

// --- test harness ---------------------------------------------------------

type testServer struct {
	srv      *Server
	writer   *ledger.Writer
	reader   *ledger.Reader
	registry *sources.Registry
	auth     *Authenticator
	httpSrv  *httptest.Server
}

func newTestServer(t *testing.T, events map[domain.Source][]domain.RawEvent) *testServer {
	t.Helper()
	log := zerolog.Nop()

	ledgerDir := t.TempDir()
	writer, err := ledger.NewWriter(ledgerDir, log)
	require.NoError(t, err)
	reader := ledger.NewReader(ledgerDir, log)

	emitCfg := emitter.DefaultConfig()
	emitCfg.Breaker.FailureThreshold = 100
	em := emitter.New(writer, nil, nil, emitCfg, log)

	pl := pipeline.New(writer, em, nil, nil, pipeline.DefaultConfig())

	registry := sources.NewRegistry()
	breakerRegistry := resilience.NewRegistry()
	for name, evts := range events {
		mock := sources.NewMock(name, breakerRegistry, evts)
		registry.Register(mock, sources.ProviderConfig{Provider: "mock", Enabled: true})
	}

	bc := broadcast.New(broadcast.Config{}, log)
	t.Cleanup(func() { bc.Close() })

	auth := NewAuthenticator("test-pepper", nil)
	auth.Register("good-key", APIKeyRecord{Name: "tester", Scopes: []string{"read:signals", "write:signals"}, Active: true})

	s := New("127.0.0.1:0", DefaultConfig(), auth, reader, registry, pl, bc, breakerRegistry, log)

	httpSrv := httptest.NewServer(s.router)
	t.Cleanup(httpSrv.Close)

	return &testServer{srv: s, writer: writer, reader: reader, registry: registry, auth: auth, httpSrv: httpSrv}
}

func (ts *testServer) get(t *testing.T, path string, withAuth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.httpSrv.URL+path, nil)
	require.NoError(t, err)
	if withAuth {
		req.Header.Set("X-API-Key", "good-key")
	}
	resp, err := ts.httpSrv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) post(t *testing.T, path string, withAuth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.httpSrv.URL+path, nil)
	require.NoError(t, err)
	if withAuth {
		req.Header.Set("X-API-Key", "good-key")
	}
	resp, err := ts.httpSrv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// --- handlers --------------------------------------------------------------

func TestHandleHealth_HealthyWhenEverySourceHealthy(t *testing.T) {
	ts := newTestServer(t, map[domain.Source][]domain.RawEvent{
		domain.SourcePolymarket: {sources.SampleEvent(domain.SourcePolymarket, 1)},
	})

	resp := ts.get(t, "/health", false)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Contains(t, body.Sources, string(domain.SourcePolymarket))
}

func TestHandleListSignals_RequiresAuth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.get(t, "/api/v1/signals", false)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "AUTHENTICATION_REQUIRED", env.ErrorCode)
}

func TestHandleListSignals_RejectsInvalidKey(t *testing.T) {
	ts := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodGet, ts.httpSrv.URL+"/api/v1/signals", nil)
	req.Header.Set("X-API-Key", "not-a-real-key")
	resp, err := ts.httpSrv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleLiveGenerate_ProcessesMockSourceEventsIntoLedger(t *testing.T) {
	event := sources.SampleEvent(domain.SourcePolymarket, 1)
	event.ProbabilityKnown = true
	ts := newTestServer(t, map[domain.Source][]domain.RawEvent{
		domain.SourcePolymarket: {event},
	})

	resp := ts.post(t, "/api/v1/live/generate", true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body liveGenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Contains(t, body.Sources, string(domain.SourcePolymarket))
}

func TestHandleLiveGenerate_RequiresWriteScope(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.auth.Register("read-only-key", APIKeyRecord{Name: "reader", Scopes: []string{"read:signals"}, Active: true})

	req, _ := http.NewRequest(http.MethodPost, ts.httpSrv.URL+"/api/v1/live/generate", nil)
	req.Header.Set("X-API-Key", "read-only-key")
	resp, err := ts.httpSrv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "INSUFFICIENT_PERMISSIONS", env.ErrorCode)
}

func TestHandlePartnerSignals_ResponseNeverCarriesForbiddenFields(t *testing.T) {
	event := sources.SampleEvent(domain.SourceNews, 2)
	event.ProbabilityKnown = true
	ts := newTestServer(t, map[domain.Source][]domain.RawEvent{
		domain.SourceNews: {event},
	})

	gen := ts.post(t, "/api/v1/live/generate", true)
	gen.Body.Close()
	require.Equal(t, http.StatusOK, gen.StatusCode)

	resp := ts.get(t, "/api/v1/partner-signals", true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))

	found, err := ScanForForbiddenFields(raw)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestHandleGetSignal_NotFoundForUnknownID(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.get(t, "/api/v1/signals/does-not-exist", true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "SIGNAL_NOT_FOUND", env.ErrorCode)
}

func TestHandleActivity_ReturnsRecentSignalsAfterLiveGenerate(t *testing.T) {
	event := sources.SampleEvent(domain.SourceWeather, 3)
	event.ProbabilityKnown = true
	ts := newTestServer(t, map[domain.Source][]domain.RawEvent{
		domain.SourceWeather: {event},
	})

	gen := ts.post(t, "/api/v1/live/generate", true)
	gen.Body.Close()

	resp := ts.get(t, "/activity", true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	items, ok := body["items"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, items)
}

func TestHandleNotFound_UnknownRouteReturnsEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.get(t, "/no/such/route", false)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "NOT_FOUND", env.ErrorCode)
	assert.WithinDuration(t, time.Now().UTC(), env.Timestamp, 10*time.Second)
}
