package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/adapters/config"
	"github.com/selivandex/signal-engine/internal/store"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// ErrDisabled is returned when no API key is configured. Callers treat
// it as "no proposal today", not a failure.
var ErrDisabled = errors.New("oracle: not configured")

// Client talks to an OpenAI-compatible chat-completions API and turns
// its replies into candidate scoring formulas. Replies are untrusted
// text; the strategy package validates them before any use.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	enabled     bool
	client      *http.Client
}

// NewClient creates new strategy oracle client
func NewClient(cfg *config.OracleConfig) *Client {
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		enabled:     cfg.APIKey != "",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsEnabled reports whether an API key is configured
func (c *Client) IsEnabled() bool {
	return c.enabled
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}

	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": c.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	startTime := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	latency := time.Since(startTime)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := result.Choices[0].Message.Content

	logger.Debug("oracle response",
		zap.Duration("latency", latency),
		zap.Int("length", len(content)),
	)

	return content, nil
}

// ProposeDaily asks for a candidate formula from yesterday's outcome
func (c *Client) ProposeDaily(ctx context.Context, yesterday *models.TradeRecord) (string, error) {
	answer, err := c.chat(ctx, buildDailyPrompt(yesterday))
	if err != nil {
		return "", err
	}
	return extractFormula(answer), nil
}

// ProposeLongTerm asks for the best overall formula from aggregate history
func (c *Client) ProposeLongTerm(ctx context.Context, stats *store.ResolvedStats) (string, error) {
	answer, err := c.chat(ctx, buildLongTermPrompt(stats))
	if err != nil {
		return "", err
	}
	return extractFormula(answer), nil
}

// Summarize condenses one asset's headlines into two sentences
func (c *Client) Summarize(ctx context.Context, symbol string, headlines []models.Headline) (string, error) {
	answer, err := c.chat(ctx, buildSummaryPrompt(symbol, headlines))
	if err != nil {
		return "", err
	}
	return truncate(answer, 500), nil
}
