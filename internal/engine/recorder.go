package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// OutcomeStore is the feature-store surface the result recorder needs
type OutcomeStore interface {
	GetRecord(ctx context.Context, date string) (*models.TradeRecord, error)
	UpsertOutcome(ctx context.Context, date string, actualReturn float64, rank int, features map[string]models.FeatureSnapshot, headlines, summary string) error
}

// Outcome summarizes one resolved trading day
type Outcome struct {
	Date         string  `json:"date"`
	ChosenAsset  string  `json:"chosen_asset"`
	ActualReturn float64 `json:"actual_return"`
	Rank         int     `json:"rank"`
}

// Recorder computes realized ranks for resolved days and backfills the
// trade record with outcomes and the day's full feature snapshot.
type Recorder struct {
	store OutcomeStore
}

// NewRecorder creates new result recorder
func NewRecorder(store OutcomeStore) *Recorder {
	return &Recorder{store: store}
}

// Record resolves the record for date: it ranks assets by realized 24h
// return, computes the chosen asset's 1-indexed rank, merges sentiment
// into the feature snapshots and persists the outcome. ErrRecordNotFound
// when no prediction exists for date; reported, never retried.
func (r *Recorder) Record(ctx context.Context, date string, returns map[string]float64, features map[string]models.FeatureSnapshot, report *models.SentimentReport) (*Outcome, error) {
	record, err := r.store.GetRecord(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction for %s: %w", date, err)
	}

	chosen := record.ChosenAsset
	actualReturn := returns[chosen]
	rank := RankByReturn(returns, chosen)

	merged := mergeSnapshots(returns, features, report)

	headlines := topHeadlines(report, chosen, 5)
	summary := ""
	if report != nil {
		summary = report.Summaries[chosen]
	}

	if err := r.store.UpsertOutcome(ctx, date, actualReturn, rank, merged, headlines, summary); err != nil {
		return nil, fmt.Errorf("failed to persist outcome for %s: %w", date, err)
	}

	logger.Info("outcome recorded",
		zap.String("date", date),
		zap.String("asset", chosen),
		zap.Float64("actual_return", actualReturn),
		zap.Int("rank", rank),
		zap.Int("universe_size", models.UniverseSize()),
	)

	return &Outcome{
		Date:         date,
		ChosenAsset:  chosen,
		ActualReturn: actualReturn,
		Rank:         rank,
	}, nil
}

// RankByReturn returns the 1-indexed position of chosen when all universe
// assets are sorted by realized return descending. Equal returns keep the
// canonical universe order as a secondary key, so the result is
// deterministic. Missing assets count as 0.0 return.
func RankByReturn(returns map[string]float64, chosen string) int {
	ordered := make([]string, len(models.Universe))
	copy(ordered, models.Universe)

	// Stable sort over the canonical order doubles as the tie-break
	sort.SliceStable(ordered, func(a, b int) bool {
		return returns[ordered[a]] > returns[ordered[b]]
	})

	for i, symbol := range ordered {
		if symbol == chosen {
			return i + 1
		}
	}
	return len(ordered)
}

// mergeSnapshots combines price features, realized 24h returns and
// sentiment scores into the per-asset snapshot stored as training data.
func mergeSnapshots(returns map[string]float64, features map[string]models.FeatureSnapshot, report *models.SentimentReport) map[string]models.FeatureSnapshot {
	merged := make(map[string]models.FeatureSnapshot, len(models.Universe))
	for _, symbol := range models.Universe {
		snap, ok := features[symbol]
		if !ok {
			snap = models.DefaultSnapshot()
		}
		// Realized returns supersede prediction-time 24h returns
		if ret, ok := returns[symbol]; ok {
			snap.Return24h = ret
		}
		if report != nil {
			if score, ok := report.Scores[symbol]; ok {
				snap.NewsSentiment = score
			}
		}
		merged[symbol] = snap
	}
	return merged
}

// topHeadlines renders up to n headline titles of the chosen asset
func topHeadlines(report *models.SentimentReport, symbol string, n int) string {
	if report == nil {
		return ""
	}
	items := report.Headlines[symbol]
	if len(items) > n {
		items = items[:n]
	}
	titles := make([]string, 0, len(items))
	for _, h := range items {
		titles = append(titles, h.Title)
	}
	return strings.Join(titles, "\n")
}
