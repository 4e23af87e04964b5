package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/selivandex/signal-engine/internal/adapters/config"
	"github.com/selivandex/signal-engine/internal/adapters/database"
	"github.com/selivandex/signal-engine/internal/backtest"
	"github.com/selivandex/signal-engine/internal/store"
	"github.com/selivandex/signal-engine/internal/strategy"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
	_ "github.com/lib/pq"
)

func main() {
	var (
		formulaFile = flag.String("formula", "", "path to a file holding a scoring formula")
		version     = flag.Int("version", 0, "stored strategy version to replay (0 = active)")
		window      = flag.Int("window", 180, "resolved records to replay")
	)

	flag.Parse()

	if err := run(*formulaFile, *version, *window); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(formulaFile string, version, window int) error {
	if _, err := os.Stat("secrets.env"); err == nil {
		if err := godotenv.Load("secrets.env"); err != nil {
			return fmt.Errorf("failed to load secrets.env: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init("warn", ""); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	repo := store.NewRepository(db.DB())
	ctx := context.Background()

	scorer, label, err := resolveScorer(ctx, repo, formulaFile, version)
	if err != nil {
		return err
	}

	report, err := backtest.NewEngine(repo).Run(ctx, scorer, window)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	fmt.Printf("Strategy:         %s\n", label)
	fmt.Printf("Formula:          %s\n", scorer.Source())
	fmt.Printf("Days replayed:    %d\n", report.Days)
	fmt.Printf("Rank pairs:       %d\n", report.PairCount)
	fmt.Printf("Rank correlation: %.4f\n", report.RankCorrelation)
	fmt.Printf("Avg daily return: %.2f%%\n", report.AvgDailyReturn)

	return nil
}

// resolveScorer picks the strategy to replay: an explicit formula file
// wins, then a stored version, then the active strategy, then the
// baseline.
func resolveScorer(ctx context.Context, repo *store.Repository, formulaFile string, version int) (strategy.Scorer, string, error) {
	if formulaFile != "" {
		raw, err := os.ReadFile(formulaFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read formula file: %w", err)
		}
		scorer, err := strategy.Load(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, "", fmt.Errorf("invalid formula: %w", err)
		}
		return scorer, "file:" + formulaFile, nil
	}

	var (
		entry *models.ModelVersion
		err   error
	)
	if version > 0 {
		entry, err = repo.Version(ctx, version)
	} else {
		entry, err = repo.ActiveStrategy(ctx)
	}
	if errors.Is(err, store.ErrNoActiveStrategy) {
		// Nothing promoted yet; replay the baseline
		return strategy.Default(), "baseline", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load strategy version: %w", err)
	}

	scorer, err := strategy.Load(entry.StrategyCode)
	if err != nil {
		return nil, "", fmt.Errorf("stored strategy v%d no longer loads: %w", entry.Version, err)
	}
	return scorer, fmt.Sprintf("v%d (%s)", entry.Version, entry.ImprovementType), nil
}
