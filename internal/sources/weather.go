package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/resilience"
)

// Weather polls a NOAA-style severe weather alerts feed. Grounded on
// original_source/src/omen/adapters/inbound/weather_adapter.py
// (api.weather.gov /alerts/active, severity/area fields).
type Weather struct {
	Base
	client  *http.Client
	baseURL string
	apiKey  string
}

type weatherAlert struct {
	ID         string `json:"id"`
	Properties struct {
		Headline    string    `json:"headline"`
		Description string    `json:"description"`
		AreaDesc    string    `json:"areaDesc"`
		Event       string    `json:"event"`
		Onset       time.Time `json:"onset"`
		Ends        time.Time `json:"ends"`
	} `json:"properties"`
}

type weatherFeed struct {
	Features []weatherAlert `json:"features"`
}

func NewWeather(registry *resilience.Registry, baseURL, apiKey string, timeout time.Duration) *Weather {
	if baseURL == "" {
		baseURL = "https://api.weather.gov"
	}
	return &Weather{
		Base:    NewBase(domain.SourceWeather, registry, timeout),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (w *Weather) Name() domain.Source  { return domain.SourceWeather }
func (w *Weather) IsConfigured() bool   { return w.baseURL != "" }

func (w *Weather) FetchEvents(ctx context.Context, limit int) ([]domain.RawEvent, error) {
	var feed weatherFeed
	err := w.Guard(ctx, true, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/alerts/active?status=actual&message_type=alert", nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "omen-signal-engine")
		if w.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+w.apiKey)
		}
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("weather: unexpected status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&feed)
	})
	if err != nil {
		return nil, fmt.Errorf("weather fetch: %w", err)
	}

	n := len(feed.Features)
	if limit > 0 && limit < n {
		n = limit
	}
	events := make([]domain.RawEvent, 0, n)
	for _, f := range feed.Features[:n] {
		p := f.Properties
		ev := domain.RawEvent{
			EventID:     "weather:" + f.ID,
			Source:      domain.SourceWeather,
			Title:       p.Headline,
			Description: p.Description,
			Keywords:    []string{strings.ToLower(p.Event)},
			ObservedAt:  time.Now().UTC(),
		}
		if p.AreaDesc != "" {
			for _, area := range strings.Split(p.AreaDesc, ";") {
				ev.InferredLocations = append(ev.InferredLocations, domain.Location{Name: strings.TrimSpace(area)})
			}
		}
		if !p.Ends.IsZero() {
			ev.Market = &domain.MarketMeta{ResolutionDate: p.Ends, HasResolution: true}
		}
		events = append(events, ev)
	}
	return events, nil
}

func (w *Weather) HealthCheck(ctx context.Context) HealthCheckResult {
	start := time.Now()
	err := w.Guard(ctx, true, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/alerts/active/count", nil)
		if err != nil {
			return err
		}
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		return HealthCheckResult{Status: resilience.HealthUnhealthy, LatencyMs: latency, Error: err.Error()}
	}
	return HealthCheckResult{Status: resilience.HealthHealthy, LatencyMs: latency}
}
