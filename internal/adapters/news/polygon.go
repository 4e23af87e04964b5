package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/adapters/config"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// PolygonClient fetches ticker news from a Polygon-style REST API.
type PolygonClient struct {
	apiKey    string
	baseURL   string
	windowHrs int
	perAsset  int
	client    *http.Client
}

// NewPolygonClient creates new ticker news client
func NewPolygonClient(cfg *config.MarketConfig) *PolygonClient {
	return &PolygonClient{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		windowHrs: cfg.NewsHours,
		perAsset:  cfg.NewsPerAsset,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type newsResponse struct {
	Results []struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		PublishedUTC string `json:"published_utc"`
	} `json:"results"`
	Status string `json:"status"`
}

// FetchTickerNews loads recent headlines for a single symbol
func (p *PolygonClient) FetchTickerNews(ctx context.Context, symbol string) ([]models.Headline, error) {
	since := time.Now().UTC().Add(-time.Duration(p.windowHrs) * time.Hour)

	url := fmt.Sprintf("%s/v2/reference/news?ticker=X:%s&published_utc.gte=%s&order=desc&limit=%d&apiKey=%s",
		p.baseURL, symbol, since.Format(time.RFC3339), p.perAsset, p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("news API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result newsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode news: %w", err)
	}

	headlines := make([]models.Headline, 0, len(result.Results))
	for _, item := range result.Results {
		publishedAt, err := time.Parse(time.RFC3339, item.PublishedUTC)
		if err != nil {
			publishedAt = time.Time{}
		}
		headlines = append(headlines, models.Headline{
			Title:       item.Title,
			Description: item.Description,
			PublishedAt: publishedAt,
		})
	}

	return headlines, nil
}

// FetchHeadlines loads recent headlines for the whole universe. Per-asset
// failures are logged and skipped; sentiment defaults apply downstream.
func (p *PolygonClient) FetchHeadlines(ctx context.Context) (map[string][]models.Headline, error) {
	headlines := make(map[string][]models.Headline, models.UniverseSize())

	for _, symbol := range models.Universe {
		items, err := p.FetchTickerNews(ctx, symbol)
		if err != nil {
			logger.Warn("failed to fetch headlines",
				zap.String("asset", symbol),
				zap.Error(err),
			)
			continue
		}
		if len(items) == 0 {
			continue
		}
		headlines[symbol] = items
	}

	logger.Info("headlines fetched",
		zap.Int("assets", len(headlines)),
		zap.Int("universe", models.UniverseSize()),
	)

	return headlines, nil
}
