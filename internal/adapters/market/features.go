package market

import (
	"fmt"
	"math"
	"time"

	"github.com/cinar/indicator"

	"github.com/selivandex/signal-engine/pkg/models"
)

// minCandles is the minimum hourly history needed for a usable snapshot
const minCandles = 24

// ComputeSnapshot derives the scoring features from hourly candles:
// 1h/6h/24h percent returns, RSI-14, and the ratio of the last 24h
// traded volume to the 24h before it. Candles must be sorted ascending.
func ComputeSnapshot(candles []models.Candle) (*models.FeatureSnapshot, error) {
	if len(candles) < minCandles {
		return nil, fmt.Errorf("insufficient candles (need at least %d, got %d)", minCandles, len(candles))
	}

	last := candles[len(candles)-1]
	current, _ := last.Close.Float64()
	now := last.Timestamp

	snap := &models.FeatureSnapshot{
		Return1h:      percentReturn(current, closeAt(candles, now.Add(-1*time.Hour))),
		Return6h:      percentReturn(current, closeAt(candles, now.Add(-6*time.Hour))),
		Return24h:     percentReturn(current, closeAt(candles, now.Add(-24*time.Hour))),
		RSI14:         rsi14(candles),
		VolumeRatio:   volumeRatio(candles, now),
		NewsSentiment: models.DefaultSentiment,
		CurrentPrice:  current,
	}

	return snap, nil
}

// closeAt returns the close of the latest candle at or before target, or
// 0 when no candle is old enough.
func closeAt(candles []models.Candle, target time.Time) float64 {
	for i := len(candles) - 1; i >= 0; i-- {
		if !candles[i].Timestamp.After(target) {
			v, _ := candles[i].Close.Float64()
			return v
		}
	}
	return 0
}

func percentReturn(current, reference float64) float64 {
	if reference <= 0 {
		return models.DefaultReturn
	}
	return (current/reference - 1) * 100
}

func rsi14(candles []models.Candle) float64 {
	closes := make([]float64, len(candles))
	for i, candle := range candles {
		closes[i], _ = candle.Close.Float64()
	}

	_, rsi := indicator.Rsi(closes)
	value := rsi[len(rsi)-1]
	if math.IsNaN(value) {
		return models.DefaultRSI
	}
	return value
}

// volumeRatio compares the last 24h traded volume with the 24h window
// before it. 1.0 when the prior window is empty.
func volumeRatio(candles []models.Candle, now time.Time) float64 {
	dayAgo := now.Add(-24 * time.Hour)
	twoDaysAgo := now.Add(-48 * time.Hour)

	var recent, previous float64
	for _, candle := range candles {
		v, _ := candle.Volume.Float64()
		switch {
		case candle.Timestamp.After(dayAgo):
			recent += v
		case candle.Timestamp.After(twoDaysAgo):
			previous += v
		}
	}

	if previous <= 0 {
		return models.DefaultVolumeRatio
	}
	return recent / previous
}
