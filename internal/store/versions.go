package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// AppendVersion appends one row to the immutable strategy log and repoints
// the active-version pointer, both in a single transaction. The assigned
// version is prior max + 1; numbers are never reused. Returns the stored
// entry.
func (r *Repository) AppendVersion(ctx context.Context, code string, corr, avgReturn float64, improvement models.ImprovementType) (*models.ModelVersion, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin promotion transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.GetContext(ctx, &next, `SELECT COALESCE(MAX(version), 0) + 1 FROM model_versions`); err != nil {
		return nil, fmt.Errorf("failed to allocate next version: %w", err)
	}

	entry := &models.ModelVersion{
		Version:         next,
		StrategyCode:    code,
		RankCorrelation: corr,
		AvgDailyReturn:  avgReturn,
		ImprovementType: improvement,
		CreatedAt:       time.Now().UTC(),
	}

	insert := `
		INSERT INTO model_versions (version, strategy_code, rank_correlation, avg_daily_return, improvement_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insert, entry.Version, entry.StrategyCode,
		entry.RankCorrelation, entry.AvgDailyReturn, entry.ImprovementType, entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to append version %d: %w", next, err)
	}

	repoint := `
		INSERT INTO active_version (id, version)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version
	`
	if _, err := tx.ExecContext(ctx, repoint, entry.Version); err != nil {
		return nil, fmt.Errorf("failed to repoint active version to %d: %w", next, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit promotion of version %d: %w", next, err)
	}

	logger.Info("strategy version promoted",
		zap.Int("version", entry.Version),
		zap.String("improvement_type", string(entry.ImprovementType)),
		zap.Float64("rank_correlation", entry.RankCorrelation),
		zap.Float64("avg_daily_return", entry.AvgDailyReturn),
	)

	return entry, nil
}

// ActiveStrategy returns the most recently promoted version, or
// ErrNoActiveStrategy before the first promotion.
func (r *Repository) ActiveStrategy(ctx context.Context) (*models.ModelVersion, error) {
	query := `
		SELECT mv.version, mv.strategy_code, mv.rank_correlation, mv.avg_daily_return, mv.improvement_type, mv.created_at
		FROM model_versions mv
		JOIN active_version av ON av.version = mv.version
		WHERE av.id = 1
	`

	var entry models.ModelVersion
	err := r.db.GetContext(ctx, &entry, query)
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveStrategy
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active strategy: %w", err)
	}

	return &entry, nil
}

// Version returns the log entry for version n, or ErrRecordNotFound
func (r *Repository) Version(ctx context.Context, n int) (*models.ModelVersion, error) {
	query := `
		SELECT version, strategy_code, rank_correlation, avg_daily_return, improvement_type, created_at
		FROM model_versions
		WHERE version = $1
	`

	var entry models.ModelVersion
	err := r.db.GetContext(ctx, &entry, query, n)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load version %d: %w", n, err)
	}

	return &entry, nil
}

// VersionHistory returns the most recent limit log entries, newest first
func (r *Repository) VersionHistory(ctx context.Context, limit int) ([]models.ModelVersion, error) {
	query := `
		SELECT version, strategy_code, rank_correlation, avg_daily_return, improvement_type, created_at
		FROM model_versions
		ORDER BY version DESC
		LIMIT $1
	`

	var entries []models.ModelVersion
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to load version history: %w", err)
	}

	return entries, nil
}
