package sentiment

import (
	"context"

	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/adapters/news"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// Summarizer condenses an asset's headlines into a short summary line.
// Optional; when nil the report carries no summaries.
type Summarizer interface {
	Summarize(ctx context.Context, symbol string, headlines []models.Headline) (string, error)
}

// Reporter assembles the daily sentiment report for the universe.
type Reporter struct {
	provider   news.Provider
	analyzer   *Analyzer
	summarizer Summarizer
}

// NewReporter creates new sentiment reporter
func NewReporter(provider news.Provider, summarizer Summarizer) *Reporter {
	return &Reporter{
		provider:   provider,
		analyzer:   NewAnalyzer(),
		summarizer: summarizer,
	}
}

// BuildReport fetches headlines, scores them per asset and attaches
// summaries where the summarizer succeeds. Assets without coverage get
// the neutral default score.
func (r *Reporter) BuildReport(ctx context.Context) (*models.SentimentReport, error) {
	headlines, err := r.provider.FetchHeadlines(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.SentimentReport{
		Scores:    make(map[string]float64, models.UniverseSize()),
		Headlines: headlines,
		Summaries: make(map[string]string),
	}

	for _, symbol := range models.Universe {
		items := headlines[symbol]
		report.Scores[symbol] = r.analyzer.ScoreHeadlines(items)

		if r.summarizer == nil || len(items) == 0 {
			continue
		}
		summary, err := r.summarizer.Summarize(ctx, symbol, items)
		if err != nil {
			logger.Warn("failed to summarize headlines",
				zap.String("asset", symbol),
				zap.Error(err),
			)
			continue
		}
		report.Summaries[symbol] = summary
	}

	logger.Info("sentiment report built",
		zap.Int("covered", len(headlines)),
		zap.Int("summaries", len(report.Summaries)),
	)

	return report, nil
}
