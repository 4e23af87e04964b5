package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/adapters/config"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// PolygonClient fetches hourly crypto aggregates from a Polygon-style
// REST API and derives feature snapshots from them.
type PolygonClient struct {
	apiKey      string
	baseURL     string
	lookbackHrs int
	client      *http.Client
}

// NewPolygonClient creates new market data client
func NewPolygonClient(cfg *config.MarketConfig) *PolygonClient {
	return &PolygonClient{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		lookbackHrs: cfg.LookbackHrs,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type aggsResponse struct {
	Ticker  string `json:"ticker"`
	Results []struct {
		Timestamp int64   `json:"t"`
		Open      float64 `json:"o"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Close     float64 `json:"c"`
		Volume    float64 `json:"v"`
	} `json:"results"`
	Status string `json:"status"`
}

// FetchCandles loads hourly candles for symbol covering the past hours
func (p *PolygonClient) FetchCandles(ctx context.Context, symbol string, hours int) ([]models.Candle, error) {
	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	url := fmt.Sprintf("%s/v2/aggs/ticker/X:%s/range/1/hour/%d/%d?adjusted=true&sort=asc&limit=%d&apiKey=%s",
		p.baseURL, symbol, start.UnixMilli(), end.UnixMilli(), hours+10, p.apiKey)

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
		return nil, fmt.Errorf("aggregates API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result aggsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode aggregates: %w", err)
	}

	candles := make([]models.Candle, 0, len(result.Results))
	for _, bar := range result.Results {
		candles = append(candles, models.Candle{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(bar.Timestamp).UTC(),
			Open:      models.NewDecimal(bar.Open),
			High:      models.NewDecimal(bar.High),
			Low:       models.NewDecimal(bar.Low),
			Close:     models.NewDecimal(bar.Close),
			Volume:    models.NewDecimal(bar.Volume),
		})
	}

	return candles, nil
}

// FetchFeatures computes feature snapshots for every asset with enough
// candle history. Per-asset failures are logged and skipped; defaults
// apply downstream.
func (p *PolygonClient) FetchFeatures(ctx context.Context) (map[string]models.FeatureSnapshot, error) {
	features := make(map[string]models.FeatureSnapshot, models.UniverseSize())

	for _, symbol := range models.Universe {
		candles, err := p.FetchCandles(ctx, symbol, p.lookbackHrs)
		if err != nil {
			logger.Warn("failed to fetch candles",
				zap.String("asset", symbol),
				zap.Error(err),
			)
			continue
		}

		snap, err := ComputeSnapshot(candles)
		if err != nil {
			logger.Warn("failed to compute features",
				zap.String("asset", symbol),
				zap.Error(err),
			)
			continue
		}

		features[symbol] = *snap
		logger.Debug("features computed",
			zap.String("asset", symbol),
			zap.Float64("return_24h", snap.Return24h),
			zap.Float64("volume_ratio", snap.VolumeRatio),
		)
	}

	if len(features) == 0 {
		return nil, fmt.Errorf("no features available for any asset")
	}

	logger.Info("market features fetched",
		zap.Int("assets", len(features)),
		zap.Int("universe", models.UniverseSize()),
	)

	return features, nil
}

// Quote returns the latest hourly close for symbol.
func (p *PolygonClient) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	candles, err := p.FetchCandles(ctx, symbol, 3)
	if err != nil {
		return decimal.Zero, err
	}
	if len(candles) == 0 {
		return decimal.Zero, fmt.Errorf("no recent candles for %s", symbol)
	}
	return candles[len(candles)-1].Close, nil
}

// FetchDailyReturns computes each asset's realized 24h percent return.
// Failures resolve to 0.0, the neutral default.
func (p *PolygonClient) FetchDailyReturns(ctx context.Context) (map[string]float64, error) {
	returns := make(map[string]float64, models.UniverseSize())

	for _, symbol := range models.Universe {
		returns[symbol] = 0.0

		candles, err := p.FetchCandles(ctx, symbol, 28)
		if err != nil {
			logger.Warn("failed to fetch return candles",
				zap.String("asset", symbol),
				zap.Error(err),
			)
			continue
		}
		if len(candles) == 0 {
			continue
		}

		last := candles[len(candles)-1]
		ref := closeAt(candles, last.Timestamp.Add(-24*time.Hour))
		if ref <= 0 {
			continue
		}

		now, _ := last.Close.Float64()
		returns[symbol] = (now/ref - 1) * 100
	}

	return returns, nil
}
