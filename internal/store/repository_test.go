package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/selivandex/signal-engine/internal/adapters/database"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", ""); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// setupTestRepo connects to the database named by TEST_DATABASE_URL,
// applies migrations and truncates the tables. Tests are skipped when
// the variable is unset so the suite runs without infrastructure.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.RunMigrations(db.DB, "../../migrations"); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, table := range []string{"active_version", "model_versions", "asset_features", "trade_records"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("failed to clear %s: %v", table, err)
		}
	}

	return NewRepository(db)
}

func TestRepository_PredictionThenOutcome(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertPrediction(ctx, "2026-08-29", "BTCUSD", 2.4, 1); err != nil {
		t.Fatalf("UpsertPrediction failed: %v", err)
	}

	// Re-running the prediction must not error and must keep one row
	if err := repo.UpsertPrediction(ctx, "2026-08-29", "ETHUSD", 3.0, 1); err != nil {
		t.Fatalf("repeated UpsertPrediction failed: %v", err)
	}

	rec, err := repo.GetRecord(ctx, "2026-08-29")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if rec.ChosenAsset != "ETHUSD" {
		t.Errorf("chosen asset = %s, want the reissued ETHUSD", rec.ChosenAsset)
	}
	if rec.Resolved() {
		t.Error("record must not be resolved before the outcome lands")
	}

	features := map[string]models.FeatureSnapshot{
		"ETHUSD": {Return24h: 4.2, RSI14: 61, VolumeRatio: 1.3, NewsSentiment: 0.2, CurrentPrice: 3200},
	}
	if err := repo.UpsertOutcome(ctx, "2026-08-29", 4.2, 1, features, "ETH ETF inflows", "Strong day."); err != nil {
		t.Fatalf("UpsertOutcome failed: %v", err)
	}

	rec, err = repo.GetRecord(ctx, "2026-08-29")
	if err != nil {
		t.Fatalf("GetRecord after outcome failed: %v", err)
	}
	if !rec.Resolved() {
		t.Fatal("record should be resolved")
	}
	if *rec.ActualReturn != 4.2 || *rec.RankOfChosen != 1 {
		t.Errorf("outcome = %v/%v, want 4.2/1", *rec.ActualReturn, *rec.RankOfChosen)
	}
	if rec.Snapshot("ETHUSD").Return24h != 4.2 {
		t.Errorf("stored snapshot Return24h = %v, want 4.2", rec.Snapshot("ETHUSD").Return24h)
	}

	// The outcome upsert must not clobber the prediction columns
	if rec.ChosenAsset != "ETHUSD" || rec.ModelVersion != 1 {
		t.Errorf("prediction fields changed: %s v%d", rec.ChosenAsset, rec.ModelVersion)
	}
}

func TestRepository_OutcomeWithoutPrediction(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.UpsertOutcome(context.Background(), "2026-08-29", 1.0, 5, nil, "", "")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRepository_VersionLifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if _, err := repo.ActiveStrategy(ctx); !errors.Is(err, ErrNoActiveStrategy) {
		t.Fatalf("expected ErrNoActiveStrategy before promotion, got %v", err)
	}

	first, err := repo.AppendVersion(ctx, "1.0*return_24h", 0.2, 0.8, models.ImprovementInitial)
	if err != nil {
		t.Fatalf("AppendVersion failed: %v", err)
	}
	if first.Version != 1 {
		t.Errorf("first version = %d, want 1", first.Version)
	}

	second, err := repo.AppendVersion(ctx, "tanh(return_24h)", 0.3, 1.1, models.ImprovementDaily)
	if err != nil {
		t.Fatalf("second AppendVersion failed: %v", err)
	}
	if second.Version != 2 {
		t.Errorf("second version = %d, want 2", second.Version)
	}

	active, err := repo.ActiveStrategy(ctx)
	if err != nil {
		t.Fatalf("ActiveStrategy failed: %v", err)
	}
	if active.Version != 2 || active.StrategyCode != "tanh(return_24h)" {
		t.Errorf("active = v%d %q, want v2", active.Version, active.StrategyCode)
	}

	history, err := repo.VersionHistory(ctx, 10)
	if err != nil {
		t.Fatalf("VersionHistory failed: %v", err)
	}
	if len(history) != 2 || history[0].Version != 2 {
		t.Errorf("history = %d entries, newest v%d; want 2 entries newest v2", len(history), history[0].Version)
	}
}

func TestRepository_QueryResolvedAndStats(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	days := []struct {
		date string
		ret  float64
		rank int
	}{
		{"2026-08-25", 3.0, 1},
		{"2026-08-26", -1.5, 9},
		{"2026-08-27", 0.5, 4},
	}
	for _, d := range days {
		if err := repo.UpsertPrediction(ctx, d.date, "BTCUSD", 1.0, 1); err != nil {
			t.Fatal(err)
		}
		if err := repo.UpsertOutcome(ctx, d.date, d.ret, d.rank, nil, "", ""); err != nil {
			t.Fatal(err)
		}
	}
	// One unresolved day must stay out of every result below
	if err := repo.UpsertPrediction(ctx, "2026-08-28", "BTCUSD", 1.0, 1); err != nil {
		t.Fatal(err)
	}

	resolved, err := repo.QueryResolved(ctx, 100)
	if err != nil {
		t.Fatalf("QueryResolved failed: %v", err)
	}
	if len(resolved) != 3 {
		t.Fatalf("resolved = %d records, want 3", len(resolved))
	}
	if resolved[0].Date != "2026-08-27" {
		t.Errorf("newest resolved = %s, want 2026-08-27", resolved[0].Date)
	}

	count, err := repo.CountResolved(ctx)
	if err != nil {
		t.Fatalf("CountResolved failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	stats, err := repo.GetResolvedStats(ctx)
	if err != nil {
		t.Fatalf("GetResolvedStats failed: %v", err)
	}
	if stats.Count != 3 {
		t.Errorf("stats count = %d, want 3", stats.Count)
	}
	if stats.BestReturn != 3.0 || stats.WorstReturn != -1.5 {
		t.Errorf("best/worst = %v/%v, want 3.0/-1.5", stats.BestReturn, stats.WorstReturn)
	}
}
