package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/selivandex/signal-engine/internal/strategy"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", ""); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeHistory struct {
	records []*models.TradeRecord
}

func (f *fakeHistory) QueryResolved(ctx context.Context, limit int) ([]*models.TradeRecord, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

// historyWithSpread builds days resolved records where asset returns are
// a fixed spread rotated by day, so no two strategies are trivially equal.
func historyWithSpread(days int) *fakeHistory {
	records := make([]*models.TradeRecord, 0, days)
	for d := 0; d < days; d++ {
		features := make(map[string]models.FeatureSnapshot, models.UniverseSize())
		for i, symbol := range models.Universe {
			snap := models.DefaultSnapshot()
			snap.Return24h = float64((i+d)%models.UniverseSize()) - 7.5
			snap.Return6h = snap.Return24h / 3
			snap.VolumeRatio = 1.0 + float64(i)*0.1
			features[symbol] = snap
		}
		ret := features[models.Universe[0]].Return24h
		rank := 1
		records = append(records, &models.TradeRecord{
			Date:         fmt.Sprintf("2026-07-%02d", d+1),
			ChosenAsset:  models.Universe[0],
			ActualReturn: &ret,
			RankOfChosen: &rank,
			Features:     features,
		})
	}
	return &fakeHistory{records: records}
}

func TestEngine_InsufficientData(t *testing.T) {
	engine := NewEngine(historyWithSpread(MinSamples - 1))

	_, err := engine.Run(context.Background(), strategy.Default(), 180)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestEngine_PerfectStrategyScoresHigh(t *testing.T) {
	engine := NewEngine(historyWithSpread(20))

	// Scoring by return_24h alone reproduces the actual ranking exactly
	scorer, err := strategy.Load("1.0*return_24h")
	if err != nil {
		t.Fatalf("failed to load scorer: %v", err)
	}

	report, err := engine.Run(context.Background(), scorer, 180)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if math.Abs(report.RankCorrelation-1.0) > 1e-9 {
		t.Errorf("rank correlation = %v, want 1.0 for the oracle strategy", report.RankCorrelation)
	}
	if report.Days != 20 {
		t.Errorf("days = %d, want 20", report.Days)
	}
	if report.PairCount != 20*models.UniverseSize() {
		t.Errorf("pair count = %d, want %d", report.PairCount, 20*models.UniverseSize())
	}

	// The top pick each day holds the maximum return in the spread
	if math.Abs(report.AvgDailyReturn-7.5) > 1e-9 {
		t.Errorf("avg daily return = %v, want 7.5", report.AvgDailyReturn)
	}
}

func TestEngine_InvertedStrategyScoresLow(t *testing.T) {
	engine := NewEngine(historyWithSpread(20))

	scorer, err := strategy.Load("0.0 - 1.0*return_24h")
	if err != nil {
		t.Fatalf("failed to load scorer: %v", err)
	}

	report, err := engine.Run(context.Background(), scorer, 180)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if math.Abs(report.RankCorrelation+1.0) > 1e-9 {
		t.Errorf("rank correlation = %v, want -1.0 for the inverted strategy", report.RankCorrelation)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	history := historyWithSpread(15)
	engine := NewEngine(history)
	scorer := strategy.Default()

	first, err := engine.Run(context.Background(), scorer, 180)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		again, err := engine.Run(context.Background(), scorer, 180)
		if err != nil {
			t.Fatalf("repeat run failed: %v", err)
		}
		if again.RankCorrelation != first.RankCorrelation || again.AvgDailyReturn != first.AvgDailyReturn {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestEngine_WindowLimitsHistory(t *testing.T) {
	engine := NewEngine(historyWithSpread(30))

	report, err := engine.Run(context.Background(), strategy.Default(), 12)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Days != 12 {
		t.Errorf("days = %d, want the 12-day window", report.Days)
	}
}
