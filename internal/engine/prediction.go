package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/strategy"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// ErrNoScorableAssets is returned when every asset in the universe lacks
// a feature snapshot for the day.
var ErrNoScorableAssets = errors.New("engine: no scorable assets")

// PredictionStore is the feature-store surface the prediction engine needs
type PredictionStore interface {
	UpsertPrediction(ctx context.Context, date, asset string, score float64, version int) error
}

// Prediction is the outcome of one daily scoring pass
type Prediction struct {
	Date      string             `json:"date"`
	Asset     string             `json:"asset"`
	Score     float64            `json:"score"`
	Version   int                `json:"version"`
	AllScores map[string]float64 `json:"all_scores"`
}

// Predictor applies the active strategy across the universe for one day,
// selects the top-ranked asset and persists the decision.
type Predictor struct {
	store PredictionStore
}

// NewPredictor creates new prediction engine
func NewPredictor(store PredictionStore) *Predictor {
	return &Predictor{store: store}
}

// Predict scores every universe asset with scorer using the day's feature
// snapshots (missing snapshots fall back to the documented defaults),
// picks the maximum score with canonical-order tie-breaking, and persists
// the prediction for date. ErrNoScorableAssets when features is empty.
func (p *Predictor) Predict(ctx context.Context, date string, scorer strategy.Scorer, version int, features map[string]models.FeatureSnapshot) (*Prediction, error) {
	scorable := 0
	for _, symbol := range models.Universe {
		if _, ok := features[symbol]; ok {
			scorable++
		}
	}
	if scorable == 0 {
		return nil, ErrNoScorableAssets
	}

	scores := make(map[string]float64, len(models.Universe))
	best := ""
	bestScore := 0.0

	// Canonical universe order: on equal scores the first listed symbol
	// wins. Deterministic, documented as a convention rather than a
	// modeled requirement.
	for _, symbol := range models.Universe {
		snap, ok := features[symbol]
		if !ok {
			logger.Warn("no feature snapshot, using defaults",
				zap.String("asset", symbol),
				zap.String("date", date),
			)
			snap = models.DefaultSnapshot()
		}

		score := strategy.SafeScore(scorer, symbol, snap)
		scores[symbol] = score

		if best == "" || score > bestScore {
			best = symbol
			bestScore = score
		}
	}

	if err := p.store.UpsertPrediction(ctx, date, best, bestScore, version); err != nil {
		return nil, fmt.Errorf("failed to persist prediction: %w", err)
	}

	logger.Info("prediction recorded",
		zap.String("date", date),
		zap.String("asset", best),
		zap.Float64("score", bestScore),
		zap.Int("model_version", version),
		zap.Int("scorable_assets", scorable),
	)

	return &Prediction{
		Date:      date,
		Asset:     best,
		Score:     bestScore,
		Version:   version,
		AllScores: scores,
	}, nil
}
