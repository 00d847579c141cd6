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

// News polls a news aggregation API (NewsAPI-style) for headlines matching a
// configured query. Grounded on
// original_source/src/omen/adapters/inbound/news_adapter.py.
type News struct {
	Base
	client  *http.Client
	baseURL string
	apiKey  string
	query   string
}

type newsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

type newsFeed struct {
	Articles []newsArticle `json:"articles"`
}

func NewNews(registry *resilience.Registry, baseURL, apiKey, query string, timeout time.Duration) *News {
	if baseURL == "" {
		baseURL = "https://newsapi.org/v2"
	}
	return &News{
		Base:    NewBase(domain.SourceNews, registry, timeout),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		query:   query,
	}
}

func (n *News) Name() domain.Source { return domain.SourceNews }
func (n *News) IsConfigured() bool  { return n.apiKey != "" }

func (n *News) FetchEvents(ctx context.Context, limit int) ([]domain.RawEvent, error) {
	var feed newsFeed
	err := n.Guard(ctx, true, func(ctx context.Context) error {
		q := n.query
		if q == "" {
			q = "supply chain OR shipping OR port OR sanctions"
		}
		url := fmt.Sprintf("%s/everything?q=%s&sortBy=publishedAt&pageSize=%d", n.baseURL, strings.ReplaceAll(q, " ", "+"), limit)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Api-Key", n.apiKey)
		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("news: unexpected status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&feed)
	})
	if err != nil {
		return nil, fmt.Errorf("news fetch: %w", err)
	}

	events := make([]domain.RawEvent, 0, len(feed.Articles))
	for _, a := range feed.Articles {
		events = append(events, domain.RawEvent{
			EventID:     "news:" + hashURL(a.URL),
			Source:      domain.SourceNews,
			Title:       a.Title,
			Description: a.Description,
			Keywords:    extractKeywords(nil, a.Title),
			ObservedAt:  a.PublishedAt,
		})
	}
	return events, nil
}

func hashURL(url string) string {
	sum := 0
	for _, c := range url {
		sum = sum*31 + int(c)
	}
	return fmt.Sprintf("%x", uint32(sum))
}

func (n *News) HealthCheck(ctx context.Context) HealthCheckResult {
	start := time.Now()
	err := n.Guard(ctx, true, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/top-headlines?pageSize=1", nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Api-Key", n.apiKey)
		resp, err := n.client.Do(req)
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
