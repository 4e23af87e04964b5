package market

import (
	"math"
	"testing"
	"time"

	"github.com/selivandex/signal-engine/pkg/models"
)

// makeCandles generates hours hourly candles ending now, with closes
// produced by price(i) and volumes by volume(i), i counted from the
// oldest candle.
func makeCandles(hours int, price func(i int) float64, volume func(i int) float64) []models.Candle {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, hours)
	for i := 0; i < hours; i++ {
		p := price(i)
		candles[i] = models.Candle{
			Symbol:    "BTCUSD",
			Timestamp: now.Add(-time.Duration(hours-1-i) * time.Hour),
			Open:      models.NewDecimal(p),
			High:      models.NewDecimal(p),
			Low:       models.NewDecimal(p),
			Close:     models.NewDecimal(p),
			Volume:    models.NewDecimal(volume(i)),
		}
	}
	return candles
}

func TestComputeSnapshot_Returns(t *testing.T) {
	// Price doubles over the last 24 hours, flat before
	candles := makeCandles(72, func(i int) float64 {
		if i < 48 {
			return 100
		}
		return 100 + float64(i-48)*(100.0/23.0)
	}, func(i int) float64 { return 10 })

	snap, err := ComputeSnapshot(candles)
	if err != nil {
		t.Fatalf("ComputeSnapshot failed: %v", err)
	}

	if snap.Return24h <= 0 {
		t.Errorf("Return24h = %v, want positive", snap.Return24h)
	}
	if snap.Return1h <= 0 || snap.Return1h >= snap.Return24h {
		t.Errorf("Return1h = %v, want in (0, %v)", snap.Return1h, snap.Return24h)
	}
	if snap.CurrentPrice != 200 {
		t.Errorf("CurrentPrice = %v, want 200", snap.CurrentPrice)
	}
}

func TestComputeSnapshot_FlatPrices(t *testing.T) {
	candles := makeCandles(72, func(i int) float64 { return 100 }, func(i int) float64 { return 10 })

	snap, err := ComputeSnapshot(candles)
	if err != nil {
		t.Fatalf("ComputeSnapshot failed: %v", err)
	}

	if snap.Return1h != 0 || snap.Return6h != 0 || snap.Return24h != 0 {
		t.Errorf("flat prices should yield zero returns, got %v/%v/%v",
			snap.Return1h, snap.Return6h, snap.Return24h)
	}
	if snap.VolumeRatio != 1.0 {
		t.Errorf("VolumeRatio = %v, want 1.0 for constant volume", snap.VolumeRatio)
	}
}

func TestComputeSnapshot_VolumeRatio(t *testing.T) {
	// Volume doubles in the last 24 hours relative to the prior 24
	candles := makeCandles(72, func(i int) float64 { return 100 }, func(i int) float64 {
		if i >= 48 {
			return 20
		}
		return 10
	})

	snap, err := ComputeSnapshot(candles)
	if err != nil {
		t.Fatalf("ComputeSnapshot failed: %v", err)
	}

	if math.Abs(snap.VolumeRatio-2.0) > 1e-9 {
		t.Errorf("VolumeRatio = %v, want 2.0", snap.VolumeRatio)
	}
}

func TestComputeSnapshot_RSIBounds(t *testing.T) {
	candles := makeCandles(72, func(i int) float64 { return 100 + float64(i%7) }, func(i int) float64 { return 10 })

	snap, err := ComputeSnapshot(candles)
	if err != nil {
		t.Fatalf("ComputeSnapshot failed: %v", err)
	}

	if snap.RSI14 < 0 || snap.RSI14 > 100 {
		t.Errorf("RSI14 = %v, want within [0, 100]", snap.RSI14)
	}
}

func TestComputeSnapshot_InsufficientData(t *testing.T) {
	candles := makeCandles(10, func(i int) float64 { return 100 }, func(i int) float64 { return 10 })

	if _, err := ComputeSnapshot(candles); err == nil {
		t.Error("expected error for insufficient candles")
	}
}
