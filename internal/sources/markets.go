package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/resilience"
)

// quoteAdapter is the shared shape of the three quote-style sources
// (freight rates, equities, commodities): poll a REST endpoint for a list
// of instrument quotes and translate every returned quote into a RawEvent,
// whatever the size of its move. Grounded
// on original_source/src/omen/adapters/inbound/{freight,equities,commodity}_adapter.py,
// which all follow this same poll-and-emit shape against different
// upstream quote providers.
type quoteAdapter struct {
	Base
	client      *http.Client
	baseURL     string
	apiKey      string
	instruments []string
	moveLabel   string
}

type quote struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	ChangePct    float64 `json:"change_percent"`
	VolumeUSD    float64 `json:"volume_usd"`
	AsOf         string  `json:"as_of"`
}

type quoteFeed struct {
	Quotes []quote `json:"quotes"`
}

func newQuoteAdapter(name domain.Source, registry *resilience.Registry, baseURL, apiKey string, instruments []string, moveLabel string, timeout time.Duration) quoteAdapter {
	return quoteAdapter{
		Base:        NewBase(name, registry, timeout),
		client:      &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      apiKey,
		instruments: instruments,
		moveLabel:   moveLabel,
	}
}

func (q *quoteAdapter) fetch(ctx context.Context, path string, limit int) ([]domain.RawEvent, error) {
	var feed quoteFeed
	err := q.Guard(ctx, true, func(ctx context.Context) error {
		url := fmt.Sprintf("%s%s?limit=%d", q.baseURL, path, limit)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if q.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+q.apiKey)
		}
		resp, err := q.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: unexpected status %d", q.SourceName, resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&feed)
	})
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", q.SourceName, err)
	}

	events := make([]domain.RawEvent, 0, len(feed.Quotes))
	for _, quote := range feed.Quotes {
		observedAt := time.Now().UTC()
		if t, parseErr := time.Parse(time.RFC3339, quote.AsOf); parseErr == nil {
			observedAt = t
		}
		events = append(events, domain.RawEvent{
			EventID:     fmt.Sprintf("%s:%s:%d", q.SourceName, quote.Symbol, observedAt.Unix()),
			Source:      q.SourceName,
			Title:       fmt.Sprintf("%s %s: %.2f%% %s", quote.Name, quote.Symbol, quote.ChangePct, q.moveLabel),
			Description: fmt.Sprintf("price=%.4f change_pct=%.2f", quote.Price, quote.ChangePct),
			Keywords:    []string{quote.Symbol},
			ObservedAt:  observedAt,
			Market: &domain.MarketMeta{
				ID:        quote.Symbol,
				VolumeUSD: quote.VolumeUSD,
			},
			SourceMetrics: map[string]any{"change_percent": quote.ChangePct},
		})
	}
	return events, nil
}

func (q *quoteAdapter) healthCheck(ctx context.Context, path string) HealthCheckResult {
	start := time.Now()
	err := q.Guard(ctx, true, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+path+"?limit=1", nil)
		if err != nil {
			return err
		}
		resp, err := q.client.Do(req)
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

// Freight tracks container/dry-bulk freight rate indices (Baltic Dry, etc).
type Freight struct{ quoteAdapter }

func NewFreight(registry *resilience.Registry, baseURL, apiKey string, instruments []string, timeout time.Duration) *Freight {
	return &Freight{newQuoteAdapter(domain.SourceFreight, registry, baseURL, apiKey, instruments, "rate move", timeout)}
}
func (f *Freight) Name() domain.Source { return domain.SourceFreight }
func (f *Freight) IsConfigured() bool  { return f.apiKey != "" }
func (f *Freight) FetchEvents(ctx context.Context, limit int) ([]domain.RawEvent, error) {
	return f.fetch(ctx, "/freight/rates", limit)
}
func (f *Freight) HealthCheck(ctx context.Context) HealthCheckResult {
	return f.healthCheck(ctx, "/freight/rates")
}

// Equities tracks logistics/shipping/energy-adjacent listed equities.
type Equities struct{ quoteAdapter }

func NewEquities(registry *resilience.Registry, baseURL, apiKey string, instruments []string, timeout time.Duration) *Equities {
	return &Equities{newQuoteAdapter(domain.SourceEquities, registry, baseURL, apiKey, instruments, "price move", timeout)}
}
func (e *Equities) Name() domain.Source { return domain.SourceEquities }
func (e *Equities) IsConfigured() bool  { return e.apiKey != "" }
func (e *Equities) FetchEvents(ctx context.Context, limit int) ([]domain.RawEvent, error) {
	return e.fetch(ctx, "/equities/quotes", limit)
}
func (e *Equities) HealthCheck(ctx context.Context) HealthCheckResult {
	return e.healthCheck(ctx, "/equities/quotes")
}

// Commodity tracks energy and agricultural commodity spot/futures prices.
type Commodity struct{ quoteAdapter }

func NewCommodity(registry *resilience.Registry, baseURL, apiKey string, instruments []string, timeout time.Duration) *Commodity {
	return &Commodity{newQuoteAdapter(domain.SourceCommodity, registry, baseURL, apiKey, instruments, "price move", timeout)}
}
func (c *Commodity) Name() domain.Source { return domain.SourceCommodity }
func (c *Commodity) IsConfigured() bool  { return c.apiKey != "" }
func (c *Commodity) FetchEvents(ctx context.Context, limit int) ([]domain.RawEvent, error) {
	return c.fetch(ctx, "/commodities/quotes", limit)
}
func (c *Commodity) HealthCheck(ctx context.Context) HealthCheckResult {
	return c.healthCheck(ctx, "/commodities/quotes")
}
