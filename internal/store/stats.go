package store

import (
	"context"
	"fmt"
)

// ResolvedStats summarizes the outcome-populated history
type ResolvedStats struct {
	Count       int     `db:"count"`
	AvgReturn   float64 `db:"avg_return"`
	AvgRank     float64 `db:"avg_rank"`
	WinRate     float64 `db:"win_rate"`
	BestReturn  float64 `db:"best_return"`
	WorstReturn float64 `db:"worst_return"`
}

// GetResolvedStats aggregates all resolved records in one query
func (r *Repository) GetResolvedStats(ctx context.Context) (*ResolvedStats, error) {
	query := `
		SELECT
			COUNT(*) AS count,
			COALESCE(AVG(actual_return), 0) AS avg_return,
			COALESCE(AVG(rank_of_chosen), 0) AS avg_rank,
			COALESCE(SUM(CASE WHEN actual_return > 0 THEN 1 ELSE 0 END) * 100.0 / NULLIF(COUNT(*), 0), 0) AS win_rate,
			COALESCE(MAX(actual_return), 0) AS best_return,
			COALESCE(MIN(actual_return), 0) AS worst_return
		FROM trade_records
		WHERE actual_return IS NOT NULL
	`

	var stats ResolvedStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to aggregate resolved stats: %w", err)
	}

	return &stats, nil
}
