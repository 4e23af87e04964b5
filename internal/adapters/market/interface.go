package market

import (
	"context"

	"github.com/selivandex/signal-engine/pkg/models"
)

// Provider supplies per-asset feature snapshots and realized returns for
// the whole universe. Assets the provider cannot serve are simply absent
// from the returned maps; defaulting is the caller's concern.
type Provider interface {
	// FetchFeatures computes prediction-time feature snapshots for every
	// asset it has data for.
	FetchFeatures(ctx context.Context) (map[string]models.FeatureSnapshot, error)

	// FetchDailyReturns returns the realized 24h percent return per asset.
	// Assets that fail to resolve are reported as 0.0, matching the
	// neutral default used everywhere else.
	FetchDailyReturns(ctx context.Context) (map[string]float64, error)
}
