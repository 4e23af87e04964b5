package reports

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/store"
	"github.com/selivandex/signal-engine/pkg/formulas"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// HistoryReader provides the read-only slices of history a report needs.
type HistoryReader interface {
	GetResolvedStats(ctx context.Context) (*store.ResolvedStats, error)
	VersionHistory(ctx context.Context, limit int) ([]models.ModelVersion, error)
	QueryResolved(ctx context.Context, limit int) ([]*models.TradeRecord, error)
}

// Report is the rendered self-analysis snapshot.
type Report struct {
	Stats          *store.ResolvedStats  `json:"stats"`
	CurrentVersion int                   `json:"current_version"`
	Versions       []models.ModelVersion `json:"versions"`
	RecentTrades   []*models.TradeRecord `json:"recent_trades"`
	Volatility     float64               `json:"volatility"`
}

// Analyzer builds the self-analysis report. Read-only; it never touches
// the active strategy or any record.
type Analyzer struct {
	reader HistoryReader
}

// NewAnalyzer creates new report analyzer
func NewAnalyzer(reader HistoryReader) *Analyzer {
	return &Analyzer{reader: reader}
}

const (
	versionLimit = 10
	tradeLimit   = 7
)

// Build assembles the report from resolved history
func (a *Analyzer) Build(ctx context.Context) (*Report, error) {
	stats, err := a.reader.GetResolvedStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load resolved stats: %w", err)
	}

	versions, err := a.reader.VersionHistory(ctx, versionLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load version history: %w", err)
	}

	trades, err := a.reader.QueryResolved(ctx, tradeLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent trades: %w", err)
	}

	current := 0
	if len(versions) > 0 {
		current = versions[0].Version
	}

	returns := make([]float64, 0, len(trades))
	for _, trade := range trades {
		if trade.Resolved() {
			returns = append(returns, *trade.ActualReturn)
		}
	}

	report := &Report{
		Stats:          stats,
		CurrentVersion: current,
		Versions:       versions,
		RecentTrades:   trades,
		Volatility:     formulas.StdDev(returns),
	}

	logger.Info("self-analysis report built",
		zap.Int("trades", stats.Count),
		zap.Float64("avg_return", stats.AvgReturn),
		zap.Float64("win_rate", stats.WinRate),
		zap.Int("current_version", current),
	)

	return report, nil
}

// Render formats the report for the notifier and the log
func (r *Report) Render() string {
	var sb strings.Builder

	sb.WriteString("📊 *Performance report*\n")
	sb.WriteString(fmt.Sprintf("Trades: %d\n", r.Stats.Count))
	sb.WriteString(fmt.Sprintf("Avg return: %.2f%%\n", r.Stats.AvgReturn))
	sb.WriteString(fmt.Sprintf("Avg rank: %.1f/%d\n", r.Stats.AvgRank, models.UniverseSize()))
	sb.WriteString(fmt.Sprintf("Win rate: %.1f%%\n", r.Stats.WinRate))
	sb.WriteString(fmt.Sprintf("Best: %.2f%%  Worst: %.2f%%\n", r.Stats.BestReturn, r.Stats.WorstReturn))
	sb.WriteString(fmt.Sprintf("Volatility (last %d): %.2f%%\n", len(r.RecentTrades), r.Volatility))
	sb.WriteString(fmt.Sprintf("Strategy: v%d\n", r.CurrentVersion))

	if len(r.RecentTrades) > 0 {
		sb.WriteString("\nRecent trades:\n")
		for _, trade := range r.RecentTrades {
			if !trade.Resolved() {
				continue
			}
			sb.WriteString(fmt.Sprintf("- %s: %s → %.2f%% (rank #%d)\n",
				trade.Date, trade.ChosenAsset, *trade.ActualReturn, *trade.RankOfChosen))
		}
	}

	if len(r.Versions) > 0 {
		sb.WriteString("\nVersion history:\n")
		for _, v := range r.Versions {
			sb.WriteString(fmt.Sprintf("- v%d (%s): corr %.4f, avg %.2f%%\n",
				v.Version, v.ImprovementType, v.RankCorrelation, v.AvgDailyReturn))
		}
	}

	return sb.String()
}
