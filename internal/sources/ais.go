package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/resilience"
)

// AIS streams vessel position and port-congestion messages from an AIS
// aggregator over a WebSocket feed. Grounded on
// original_source/src/omen/adapters/inbound/ais_adapter.py (streaming
// subscribe/unsubscribe with a reconnect loop) and the teacher's
// internal/infrastructure/providers websocket dialing pattern.
type AIS struct {
	Base
	streamURL string
	apiKey    string

	mu     sync.Mutex
	cancel context.CancelFunc
}

type aisMessage struct {
	MMSI          string  `json:"mmsi"`
	VesselName    string  `json:"vessel_name"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Status        string  `json:"nav_status"`
	Port          string  `json:"port"`
	CongestionPct float64 `json:"congestion_pct"`
	Timestamp     string  `json:"timestamp"`
}

// NewAIS wires an AIS streaming adapter. streamURL is a wss:// endpoint.
func NewAIS(registry *resilience.Registry, streamURL, apiKey string, timeout time.Duration) *AIS {
	return &AIS{
		Base:      NewBase(domain.SourceAIS, registry, timeout),
		streamURL: streamURL,
		apiKey:    apiKey,
	}
}

func (a *AIS) Name() domain.Source { return domain.SourceAIS }

func (a *AIS) IsConfigured() bool { return a.streamURL != "" }

// FetchEvents is not the primary path for a streaming source; it opens a
// short-lived connection and drains whatever arrives within the timeout,
// so AIS can still be polled uniformly by callers that don't subscribe.
func (a *AIS) FetchEvents(ctx context.Context, limit int) ([]domain.RawEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	ch, err := a.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	defer a.Stop()

	var events []domain.RawEvent
	for {
		select {
		case <-ctx.Done():
			return events, nil
		case ev, ok := <-ch:
			if !ok {
				return events, nil
			}
			events = append(events, ev)
			if limit > 0 && len(events) >= limit {
				return events, nil
			}
		}
	}
}

// Subscribe dials the AIS feed and translates inbound frames into RawEvents
// until ctx is cancelled or Stop is called.
func (a *AIS) Subscribe(ctx context.Context) (<-chan domain.RawEvent, error) {
	header := map[string][]string{}
	if a.apiKey != "" {
		header["Authorization"] = []string{"Bearer " + a.apiKey}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.streamURL, header)
	if err != nil {
		return nil, fmt.Errorf("ais dial: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	out := make(chan domain.RawEvent, 64)
	go a.readLoop(subCtx, conn, out)
	return out, nil
}

func (a *AIS) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- domain.RawEvent) {
	defer close(out)
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			a.Health.RecordFailure()
			return
		}
		var msg aisMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		a.Health.RecordSuccess(0)
		select {
		case out <- aisToRawEvent(msg):
		case <-ctx.Done():
			return
		}
	}
}

func aisToRawEvent(msg aisMessage) domain.RawEvent {
	observedAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
		observedAt = t
	}

	title := fmt.Sprintf("Vessel %s near %s", msg.VesselName, msg.Port)
	keywords := []string{strings.ToLower(msg.Status)}
	if msg.Port != "" {
		keywords = append(keywords, strings.ToLower(msg.Port))
	}

	ev := domain.RawEvent{
		EventID:     fmt.Sprintf("ais:%s:%d", msg.MMSI, observedAt.Unix()),
		Source:      domain.SourceAIS,
		Title:       title,
		Description: fmt.Sprintf("congestion=%.1f%% status=%s", msg.CongestionPct, msg.Status),
		Keywords:    keywords,
		ObservedAt:  observedAt,
		SourceMetrics: map[string]any{
			"mmsi":           msg.MMSI,
			"congestion_pct": msg.CongestionPct,
		},
	}
	if msg.Port != "" {
		ev.InferredLocations = []domain.Location{{Name: msg.Port, Lat: msg.Lat, Lon: msg.Lon}}
	}
	return ev
}

// Stop tears down the active subscription, if any.
func (a *AIS) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *AIS) HealthCheck(ctx context.Context) HealthCheckResult {
	snap := a.Health.Snapshot()
	status := resilience.HealthHealthy
	if !snap.Healthy {
		status = resilience.HealthUnhealthy
	}
	return HealthCheckResult{
		Status:    status,
		LatencyMs: snap.AvgLatencyMs,
		Metadata: map[string]any{
			"total_requests": snap.TotalRequests,
		},
	}
}
