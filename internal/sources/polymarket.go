package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/resilience"
)

// Polymarket polls the Polymarket Gamma markets API for active prediction
// markets. Grounded on original_source/src/omen/adapters/inbound/polymarket_adapter.py
// (gamma-api.polymarket.com, token-pair probability, volume/liquidity fields).
type Polymarket struct {
	Base
	client  *http.Client
	baseURL string
	apiKey  string
}

type polymarketMarket struct {
	ID              string   `json:"id"`
	Question        string   `json:"question"`
	Description     string   `json:"description"`
	Slug            string   `json:"slug"`
	Liquidity       string   `json:"liquidity"`
	Volume          string   `json:"volume"`
	EndDate         string   `json:"endDate"`
	CreatedAt       string   `json:"createdAt"`
	OutcomePrices   string   `json:"outcomePrices"`
	Tags            []string `json:"tags"`
	Closed          bool     `json:"closed"`
}

// NewPolymarket wires a circuit breaker/retry/health-tracker around the
// Polymarket HTTP client. apiKey may be empty for the public gamma API.
func NewPolymarket(registry *resilience.Registry, baseURL, apiKey string, timeout time.Duration) *Polymarket {
	if baseURL == "" {
		baseURL = "https://gamma-api.polymarket.com"
	}
	return &Polymarket{
		Base:    NewBase(domain.SourcePolymarket, registry, timeout),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (p *Polymarket) Name() domain.Source { return domain.SourcePolymarket }

func (p *Polymarket) IsConfigured() bool { return p.baseURL != "" }

func (p *Polymarket) FetchEvents(ctx context.Context, limit int) ([]domain.RawEvent, error) {
	var markets []polymarketMarket
	err := p.Guard(ctx, true, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/markets?active=true&closed=false&limit=%d", p.baseURL, limit)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("polymarket: unexpected status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&markets)
	})
	if err != nil {
		return nil, fmt.Errorf("polymarket fetch: %w", err)
	}

	events := make([]domain.RawEvent, 0, len(markets))
	for _, m := range markets {
		events = append(events, toRawEvent(m))
	}
	return events, nil
}

func toRawEvent(m polymarketMarket) domain.RawEvent {
	ev := domain.RawEvent{
		EventID:     "polymarket:" + m.ID,
		Source:      domain.SourcePolymarket,
		Title:       m.Question,
		Description: m.Description,
		Keywords:    extractKeywords(m.Tags, m.Question),
		ObservedAt:  time.Now().UTC(),
	}

	if prob, ok := parseYesPrice(m.OutcomePrices); ok {
		ev.Probability = prob
		ev.ProbabilityKnown = true
	}

	market := &domain.MarketMeta{
		ID:  m.ID,
		URL: "https://polymarket.com/event/" + m.Slug,
	}
	if liq, err := strconv.ParseFloat(m.Liquidity, 64); err == nil {
		market.LiquidityUSD = liq
	}
	if vol, err := strconv.ParseFloat(m.Volume, 64); err == nil {
		market.VolumeUSD = vol
	}
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		market.ResolutionDate = t
		market.HasResolution = true
	}
	if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		market.CreatedAt = t
	}
	ev.Market = market
	return ev
}

// parseYesPrice extracts the first outcome price from Polymarket's
// "[\"0.62\",\"0.38\"]" encoded string, treating it as the YES probability.
func parseYesPrice(raw string) (float64, bool) {
	trimmed := strings.Trim(raw, "[]")
	parts := strings.Split(trimmed, ",")
	if len(parts) == 0 {
		return 0, false
	}
	first := strings.Trim(strings.TrimSpace(parts[0]), `"`)
	v, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func extractKeywords(tags []string, question string) []string {
	if len(tags) > 0 {
		return tags
	}
	words := strings.Fields(strings.ToLower(question))
	var keywords []string
	for _, w := range words {
		if len(w) > 4 {
			keywords = append(keywords, w)
		}
	}
	return keywords
}

func (p *Polymarket) HealthCheck(ctx context.Context) HealthCheckResult {
	start := time.Now()
	err := p.Guard(ctx, true, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/markets?limit=1", nil)
		if err != nil {
			return err
		}
		resp, err := p.client.Do(req)
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
