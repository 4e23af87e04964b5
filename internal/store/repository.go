package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/selivandex/signal-engine/pkg/models"
)

// Repository is the durable feature store: one trade record per UTC date,
// per-asset feature snapshots, and the append-only strategy version log.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new feature store repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type tradeRecordRow struct {
	Date            string   `db:"date"`
	ChosenAsset     string   `db:"chosen_asset"`
	ChosenScore     float64  `db:"chosen_score"`
	ActualReturn    *float64 `db:"actual_return"`
	RankOfChosen    *int     `db:"rank_of_chosen"`
	NewsHeadlines   string   `db:"news_headlines"`
	StrategySummary string   `db:"strategy_summary"`
	ModelVersion    int      `db:"model_version"`
}

func (row *tradeRecordRow) toModel() *models.TradeRecord {
	return &models.TradeRecord{
		Date:            row.Date,
		ChosenAsset:     row.ChosenAsset,
		ChosenScore:     row.ChosenScore,
		ActualReturn:    row.ActualReturn,
		RankOfChosen:    row.RankOfChosen,
		NewsHeadlines:   row.NewsHeadlines,
		StrategySummary: row.StrategySummary,
		ModelVersion:    row.ModelVersion,
		Features:        make(map[string]models.FeatureSnapshot),
	}
}

type assetFeatureRow struct {
	Date  string `db:"date"`
	Asset string `db:"asset"`
	models.FeatureSnapshot
}

// UpsertPrediction creates or updates the prediction half of the record
// for date. Idempotent on date; outcome fields written earlier for the
// same date are never touched.
func (r *Repository) UpsertPrediction(ctx context.Context, date, asset string, score float64, version int) error {
	query := `
		INSERT INTO trade_records (date, chosen_asset, chosen_score, model_version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date) DO UPDATE SET
			chosen_asset = EXCLUDED.chosen_asset,
			chosen_score = EXCLUDED.chosen_score,
			model_version = EXCLUDED.model_version,
			updated_at = now()
	`

	if _, err := r.db.ExecContext(ctx, query, date, asset, score, version); err != nil {
		return fmt.Errorf("failed to upsert prediction for %s: %w", date, err)
	}

	return nil
}

// UpsertOutcome merges the outcome fields and the full per-asset snapshot
// into the existing record for date. The whole write is transactional: a
// failure on any asset row leaves the record untouched. ErrRecordNotFound
// when no prediction exists for date.
func (r *Repository) UpsertOutcome(ctx context.Context, date string, actualReturn float64, rank int, features map[string]models.FeatureSnapshot, headlines, summary string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin outcome transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE trade_records
		SET actual_return = $2,
			rank_of_chosen = $3,
			news_headlines = $4,
			strategy_summary = $5,
			updated_at = now()
		WHERE date = $1
	`

	res, err := tx.ExecContext(ctx, query, date, actualReturn, rank, headlines, summary)
	if err != nil {
		return fmt.Errorf("failed to update outcome for %s: %w", date, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check outcome update for %s: %w", date, err)
	}
	if affected == 0 {
		return fmt.Errorf("no prediction for %s: %w", date, ErrRecordNotFound)
	}

	featureQuery := `
		INSERT INTO asset_features (date, asset, return_1h, return_6h, return_24h, rsi_14, volume_ratio, news_sentiment, current_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (date, asset) DO UPDATE SET
			return_1h = EXCLUDED.return_1h,
			return_6h = EXCLUDED.return_6h,
			return_24h = EXCLUDED.return_24h,
			rsi_14 = EXCLUDED.rsi_14,
			volume_ratio = EXCLUDED.volume_ratio,
			news_sentiment = EXCLUDED.news_sentiment,
			current_price = EXCLUDED.current_price
	`

	// Stable iteration over the canonical universe order
	for _, symbol := range models.Universe {
		snap, ok := features[symbol]
		if !ok {
			snap = models.DefaultSnapshot()
		}
		_, err := tx.ExecContext(ctx, featureQuery, date, symbol,
			snap.Return1h, snap.Return6h, snap.Return24h,
			snap.RSI14, snap.VolumeRatio, snap.NewsSentiment, snap.CurrentPrice)
		if err != nil {
			return fmt.Errorf("failed to upsert features for %s/%s: %w", date, symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcome for %s: %w", date, err)
	}

	return nil
}

// GetRecord loads the record for date with its feature snapshots
func (r *Repository) GetRecord(ctx context.Context, date string) (*models.TradeRecord, error) {
	query := `
		SELECT date::text, chosen_asset, chosen_score, actual_return, rank_of_chosen,
			news_headlines, strategy_summary, model_version
		FROM trade_records
		WHERE date = $1
	`

	var row tradeRecordRow
	err := r.db.GetContext(ctx, &row, query, date)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record for %s: %w", date, err)
	}

	record := row.toModel()
	if err := r.attachFeatures(ctx, []*models.TradeRecord{record}); err != nil {
		return nil, err
	}

	return record, nil
}

// QueryResolved returns up to limit outcome-populated records ordered
// most-recent-first, with their feature snapshots attached.
func (r *Repository) QueryResolved(ctx context.Context, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT date::text, chosen_asset, chosen_score, actual_return, rank_of_chosen,
			news_headlines, strategy_summary, model_version
		FROM trade_records
		WHERE actual_return IS NOT NULL AND rank_of_chosen IS NOT NULL
		ORDER BY date DESC
		LIMIT $1
	`

	var rows []tradeRecordRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query resolved records: %w", err)
	}

	records := make([]*models.TradeRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toModel())
	}

	if err := r.attachFeatures(ctx, records); err != nil {
		return nil, err
	}

	return records, nil
}

// CountResolved returns the number of outcome-populated records
func (r *Repository) CountResolved(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM trade_records WHERE actual_return IS NOT NULL`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count resolved records: %w", err)
	}
	return count, nil
}

func (r *Repository) attachFeatures(ctx context.Context, records []*models.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}

	byDate := make(map[string]*models.TradeRecord, len(records))
	dates := make([]string, 0, len(records))
	for _, rec := range records {
		byDate[rec.Date] = rec
		dates = append(dates, rec.Date)
	}

	query, args, err := sqlx.In(`
		SELECT date::text, asset, return_1h, return_6h, return_24h, rsi_14, volume_ratio, news_sentiment, current_price
		FROM asset_features
		WHERE date IN (?)
	`, dates)
	if err != nil {
		return fmt.Errorf("failed to build feature query: %w", err)
	}

	var rows []assetFeatureRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load asset features: %w", err)
	}

	for _, row := range rows {
		if rec, ok := byDate[row.Date]; ok {
			rec.Features[row.Asset] = row.FeatureSnapshot
		}
	}

	return nil
}
