package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/adapters/broker"
	"github.com/selivandex/signal-engine/internal/adapters/config"
	"github.com/selivandex/signal-engine/internal/adapters/database"
	"github.com/selivandex/signal-engine/internal/adapters/market"
	"github.com/selivandex/signal-engine/internal/adapters/news"
	"github.com/selivandex/signal-engine/internal/adapters/oracle"
	"github.com/selivandex/signal-engine/internal/adapters/redis"
	"github.com/selivandex/signal-engine/internal/adapters/telegram"
	"github.com/selivandex/signal-engine/internal/backtest"
	"github.com/selivandex/signal-engine/internal/engine"
	"github.com/selivandex/signal-engine/internal/improve"
	"github.com/selivandex/signal-engine/internal/reports"
	"github.com/selivandex/signal-engine/internal/scheduler"
	"github.com/selivandex/signal-engine/internal/sentiment"
	"github.com/selivandex/signal-engine/internal/store"
	"github.com/selivandex/signal-engine/pkg/logger"
	_ "github.com/lib/pq"
)

func main() {
	stage := flag.String("stage", "", "run a single stage and exit (fetch, sentiment, predict, sell, record, improve, analyze)")
	flag.Parse()

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx, *stage); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stage string) error {
	// Local secrets file takes priority; in cloud deployments the env
	// vars are already set.
	if _, err := os.Stat("secrets.env"); err == nil {
		if err := godotenv.Load("secrets.env"); err != nil {
			return fmt.Errorf("failed to load secrets.env: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Signal engine starting...",
		zap.String("broker_mode", cfg.Broker.Mode),
	)

	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := store.NewRepository(db.DB())

	marketClient := market.NewPolygonClient(&cfg.Market)
	newsClient := news.NewPolygonClient(&cfg.Market)
	oracleClient := oracle.NewClient(&cfg.Oracle)

	var summarizer sentiment.Summarizer
	if oracleClient.IsEnabled() {
		summarizer = oracleClient
	}
	reporter := sentiment.NewReporter(newsClient, summarizer)

	notifier, err := telegram.NewNotifier(&cfg.Telegram)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram notifier: %w", err)
	}

	lock, err := redis.NewCycleLock(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize cycle lock: %w", err)
	}

	epoch, err := cfg.Improve.Epoch()
	if err != nil {
		return err
	}

	controller := improve.NewController(repo, backtest.NewEngine(repo), oracleClient, improve.Config{
		LookbackDays:      cfg.Improve.LookbackDays,
		CorrThreshold:     cfg.Improve.CorrThreshold,
		ReturnThreshold:   cfg.Improve.ReturnThreshold,
		LongTermEveryDays: cfg.Improve.LongTermEveryDays,
		Epoch:             epoch,
	})

	sched := scheduler.New(scheduler.Deps{
		Market:     marketClient,
		Reporter:   reporter,
		Strategies: repo,
		Predictor:  engine.NewPredictor(repo),
		Recorder:   engine.NewRecorder(repo),
		Controller: controller,
		Broker:     broker.NewPaperBroker(marketClient, cfg.Broker.InitialBalance),
		Notifier:   notifier,
		Lock:       lock,
		Analyzer:   reports.NewAnalyzer(repo),
	})

	if stage != "" {
		return sched.RunStage(ctx, scheduler.Stage(stage))
	}

	return sched.Start(ctx)
}

// initDatabase initializes database connection with sqlx
func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	migrationsPath := "./migrations"
	if err := database.RunMigrations(db.Conn(), migrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established (sqlx)",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	return db, nil
}
