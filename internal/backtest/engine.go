package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/strategy"
	"github.com/selivandex/signal-engine/pkg/formulas"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// ErrInsufficientData is returned when the resolved history is below the
// minimum sample count. Callers treat it as a no-op signal, not a crash.
var ErrInsufficientData = errors.New("backtest: insufficient resolved history")

// MinSamples is the minimum number of resolved records a backtest needs
const MinSamples = 10

// HistorySource provides resolved records, most recent first
type HistorySource interface {
	QueryResolved(ctx context.Context, limit int) ([]*models.TradeRecord, error)
}

// Engine replays a candidate strategy over a window of resolved records
// and reports pooled rank correlation and average daily return.
type Engine struct {
	store HistorySource
}

// NewEngine creates new backtest engine
func NewEngine(store HistorySource) *Engine {
	return &Engine{store: store}
}

// Run backtests scorer over the window most-recent resolved records.
//
// For every record it ranks assets by strategy score and by realized
// return (ties resolved by canonical universe order in both), pools the
// (predicted rank, actual rank) pairs of all asset-days into one Spearman
// correlation, and averages the realized return of each day's top pick.
// Deterministic for identical history and strategy.
func (e *Engine) Run(ctx context.Context, scorer strategy.Scorer, window int) (*models.BacktestReport, error) {
	records, err := e.store.QueryResolved(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load resolved history: %w", err)
	}

	if len(records) < MinSamples {
		logger.Warn("not enough resolved history for backtest",
			zap.Int("records", len(records)),
			zap.Int("required", MinSamples),
		)
		return nil, ErrInsufficientData
	}

	predictedRanks := make([]float64, 0, len(records)*models.UniverseSize())
	actualRanks := make([]float64, 0, len(records)*models.UniverseSize())
	dailyReturns := make([]float64, 0, len(records))

	for _, record := range records {
		scores := make(map[string]float64, models.UniverseSize())
		returns := make(map[string]float64, models.UniverseSize())
		for _, symbol := range models.Universe {
			snap := record.Snapshot(symbol)
			scores[symbol] = strategy.SafeScore(scorer, symbol, snap)
			returns[symbol] = snap.Return24h
		}

		predicted := rankDescending(scores)
		actual := rankDescending(returns)

		for _, symbol := range models.Universe {
			predictedRanks = append(predictedRanks, float64(predicted[symbol]))
			actualRanks = append(actualRanks, float64(actual[symbol]))
		}

		topPick := pickTop(predicted)
		dailyReturns = append(dailyReturns, returns[topPick])
	}

	report := &models.BacktestReport{
		RankCorrelation: formulas.Spearman(predictedRanks, actualRanks),
		AvgDailyReturn:  formulas.Mean(dailyReturns),
		Days:            len(records),
		PairCount:       len(predictedRanks),
	}

	logger.Debug("backtest completed",
		zap.Int("days", report.Days),
		zap.Int("pairs", report.PairCount),
		zap.Float64("rank_correlation", report.RankCorrelation),
		zap.Float64("avg_daily_return", report.AvgDailyReturn),
	)

	return report, nil
}

// rankDescending maps every universe symbol to its 1-indexed rank when
// sorted by value descending. Equal values keep canonical universe order.
func rankDescending(values map[string]float64) map[string]int {
	ordered := make([]string, len(models.Universe))
	copy(ordered, models.Universe)

	sort.SliceStable(ordered, func(a, b int) bool {
		return values[ordered[a]] > values[ordered[b]]
	})

	ranks := make(map[string]int, len(ordered))
	for i, symbol := range ordered {
		ranks[symbol] = i + 1
	}
	return ranks
}

func pickTop(ranks map[string]int) string {
	for symbol, rank := range ranks {
		if rank == 1 {
			return symbol
		}
	}
	return models.Universe[0]
}
