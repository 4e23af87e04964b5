package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/adapters/broker"
	"github.com/selivandex/signal-engine/internal/adapters/market"
	"github.com/selivandex/signal-engine/internal/adapters/redis"
	"github.com/selivandex/signal-engine/internal/adapters/telegram"
	"github.com/selivandex/signal-engine/internal/engine"
	"github.com/selivandex/signal-engine/internal/improve"
	"github.com/selivandex/signal-engine/internal/reports"
	"github.com/selivandex/signal-engine/internal/sentiment"
	"github.com/selivandex/signal-engine/internal/store"
	"github.com/selivandex/signal-engine/internal/strategy"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// Stage names one step of the daily cycle.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageSentiment Stage = "sentiment"
	StagePredict   Stage = "predict"
	StageSell      Stage = "sell"
	StageRecord    Stage = "record"
	StageImprove   Stage = "improve"
	StageAnalyze   Stage = "analyze"
)

// ErrUnknownStage is returned by RunStage for a name outside the cycle.
var ErrUnknownStage = errors.New("scheduler: unknown stage")

// StrategySource resolves the currently active scorer.
type StrategySource interface {
	ActiveStrategy(ctx context.Context) (*models.ModelVersion, error)
}

// dayCache carries the evening's features and sentiment into the
// post-midnight record stage. Both stages run within half an hour, so a
// single in-memory snapshot per date is enough.
type dayCache struct {
	mu     sync.Mutex
	date   string
	feats  map[string]models.FeatureSnapshot
	report *models.SentimentReport
}

func (c *dayCache) setFeatures(date string, feats map[string]models.FeatureSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.date != date {
		c.date = date
		c.report = nil
	}
	c.feats = feats
}

func (c *dayCache) setReport(date string, report *models.SentimentReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.date != date {
		c.date = date
		c.feats = nil
	}
	c.report = report
}

func (c *dayCache) get(date string) (map[string]models.FeatureSnapshot, *models.SentimentReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.date != date {
		return nil, nil, false
	}
	return c.feats, c.report, true
}

// Scheduler drives the daily cycle on a fixed UTC timetable and exposes
// every stage for one-shot runs.
type Scheduler struct {
	market     market.Provider
	reporter   *sentiment.Reporter
	strategies StrategySource
	predictor  *engine.Predictor
	recorder   *engine.Recorder
	controller *improve.Controller
	broker     broker.Broker
	notifier   *telegram.Notifier
	lock       *redis.CycleLock
	analyzer   *reports.Analyzer

	cache dayCache
	cron  *cron.Cron
}

// Deps bundles the collaborators of the daily cycle.
type Deps struct {
	Market     market.Provider
	Reporter   *sentiment.Reporter
	Strategies StrategySource
	Predictor  *engine.Predictor
	Recorder   *engine.Recorder
	Controller *improve.Controller
	Broker     broker.Broker
	Notifier   *telegram.Notifier
	Lock       *redis.CycleLock
	Analyzer   *reports.Analyzer
}

// New creates new cycle scheduler
func New(deps Deps) *Scheduler {
	return &Scheduler{
		market:     deps.Market,
		reporter:   deps.Reporter,
		strategies: deps.Strategies,
		predictor:  deps.Predictor,
		recorder:   deps.Recorder,
		controller: deps.Controller,
		broker:     deps.Broker,
		notifier:   deps.Notifier,
		lock:       deps.Lock,
		analyzer:   deps.Analyzer,
	}
}

// Start registers the UTC timetable and runs the cron loop until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithLocation(time.UTC))

	timetable := []struct {
		spec  string
		stage Stage
	}{
		{"50 23 * * *", StageFetch},
		{"52 23 * * *", StageSentiment},
		{"55 23 * * *", StagePredict},
		{"59 23 * * *", StageSell},
		{"15 0 * * *", StageRecord},
		{"20 0 * * *", StageImprove},
	}

	for _, entry := range timetable {
		stage := entry.stage
		if _, err := s.cron.AddFunc(entry.spec, func() {
			s.runLocked(ctx, stage)
		}); err != nil {
			return fmt.Errorf("failed to schedule stage %s: %w", stage, err)
		}
	}

	logger.Info("scheduler started", zap.Int("stages", len(timetable)))

	s.cron.Start()
	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	logger.Info("scheduler stopped")
	return nil
}

// runLocked executes one stage under the distributed cycle lock. Stage
// failures are logged and alerted; they never stop the cron loop.
func (s *Scheduler) runLocked(ctx context.Context, stage Stage) {
	date := models.DateKey(time.Now().UTC())

	acquired, err := s.lock.TryAcquire(ctx, string(stage), date)
	if err != nil {
		logger.Error("cycle lock error",
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return
	}
	if !acquired {
		logger.Info("stage already running elsewhere, skipping",
			zap.String("stage", string(stage)),
			zap.String("date", date),
		)
		return
	}
	defer s.lock.Release(ctx, string(stage), date)

	if err := s.RunStage(ctx, stage); err != nil {
		logger.Error("stage failed",
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		s.notifier.SendErrorAlert(string(stage), err)
	}
}

// RunStage executes a single named stage immediately.
func (s *Scheduler) RunStage(ctx context.Context, stage Stage) error {
	now := time.Now().UTC()

	switch stage {
	case StageFetch:
		return s.runFetch(ctx, now)
	case StageSentiment:
		return s.runSentiment(ctx, now)
	case StagePredict:
		return s.runPredict(ctx, now)
	case StageSell:
		return s.runSell(ctx)
	case StageRecord:
		return s.runRecord(ctx, now)
	case StageImprove:
		return s.runImprove(ctx, now)
	case StageAnalyze:
		return s.runAnalyze(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
}

func (s *Scheduler) runFetch(ctx context.Context, now time.Time) error {
	features, err := s.market.FetchFeatures(ctx)
	if err != nil {
		return fmt.Errorf("fetch stage: %w", err)
	}
	s.cache.setFeatures(models.DateKey(now), features)
	return nil
}

func (s *Scheduler) runSentiment(ctx context.Context, now time.Time) error {
	report, err := s.reporter.BuildReport(ctx)
	if err != nil {
		return fmt.Errorf("sentiment stage: %w", err)
	}
	s.cache.setReport(models.DateKey(now), report)
	return nil
}

func (s *Scheduler) runPredict(ctx context.Context, now time.Time) error {
	date := models.DateKey(now)

	features, report, ok := s.cache.get(date)
	if !ok || features == nil {
		// The evening fetch did not run (cold start or restart); pull
		// features on the spot so the day is not lost.
		logger.Warn("no cached features, fetching now", zap.String("date", date))
		fresh, err := s.market.FetchFeatures(ctx)
		if err != nil {
			return fmt.Errorf("predict stage: %w", err)
		}
		features = fresh
		s.cache.setFeatures(date, fresh)
	}

	if report != nil {
		features = mergeSentiment(features, report)
	}

	scorer, version, err := s.activeScorer(ctx)
	if err != nil {
		return fmt.Errorf("predict stage: %w", err)
	}

	prediction, err := s.predictor.Predict(ctx, date, scorer, version, features)
	if err != nil {
		return fmt.Errorf("predict stage: %w", err)
	}

	if err := s.broker.BuyAllCash(ctx, prediction.Asset); err != nil {
		return fmt.Errorf("predict stage: buy failed: %w", err)
	}

	s.notifier.SendPredictionAlert(date, prediction.Asset, prediction.Score, version)
	return nil
}

func (s *Scheduler) runSell(ctx context.Context) error {
	if err := s.broker.SellAll(ctx); err != nil {
		return fmt.Errorf("sell stage: %w", err)
	}
	return nil
}

func (s *Scheduler) runRecord(ctx context.Context, now time.Time) error {
	// Past midnight; the prediction being resolved carries yesterday's
	// date key, as do the cached evening features.
	date := models.DateKey(now.AddDate(0, 0, -1))

	returns, err := s.market.FetchDailyReturns(ctx)
	if err != nil {
		return fmt.Errorf("record stage: %w", err)
	}

	features, report, ok := s.cache.get(date)
	if !ok {
		logger.Warn("no cached snapshot for record stage, defaults apply",
			zap.String("date", date),
		)
	}

	outcome, err := s.recorder.Record(ctx, date, returns, features, report)
	if err != nil {
		return fmt.Errorf("record stage: %w", err)
	}

	s.notifier.SendOutcomeAlert(date, outcome.ChosenAsset, outcome.ActualReturn, outcome.Rank)
	return nil
}

func (s *Scheduler) runImprove(ctx context.Context, now time.Time) error {
	promo, err := s.controller.DailyCycle(ctx, now)
	if err != nil {
		return fmt.Errorf("improve stage: %w", err)
	}
	if promo != nil {
		s.notifier.SendPromotionAlert(promo)
	}
	return nil
}

func (s *Scheduler) runAnalyze(ctx context.Context) error {
	report, err := s.analyzer.Build(ctx)
	if err != nil {
		return fmt.Errorf("analyze stage: %w", err)
	}
	s.notifier.SendReport(report.Render())
	return nil
}

// activeScorer loads the promoted strategy, falling back to the baseline
// before the first promotion.
func (s *Scheduler) activeScorer(ctx context.Context) (strategy.Scorer, int, error) {
	active, err := s.strategies.ActiveStrategy(ctx)
	if errors.Is(err, store.ErrNoActiveStrategy) {
		logger.Info("no promoted strategy yet, using baseline")
		return strategy.Default(), 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	scorer, err := strategy.Load(active.StrategyCode)
	if err != nil {
		// A promoted strategy always validated at promotion time; if it
		// fails now the safe move is the baseline, not a dead day.
		logger.Error("active strategy failed to load, using baseline",
			zap.Int("version", active.Version),
			zap.Error(err),
		)
		return strategy.Default(), active.Version, nil
	}

	return scorer, active.Version, nil
}

// mergeSentiment overlays the day's sentiment scores onto the feature
// snapshots without mutating the cached map.
func mergeSentiment(features map[string]models.FeatureSnapshot, report *models.SentimentReport) map[string]models.FeatureSnapshot {
	merged := make(map[string]models.FeatureSnapshot, len(features))
	for symbol, snap := range features {
		if score, ok := report.Scores[symbol]; ok {
			snap.NewsSentiment = score
		}
		merged[symbol] = snap
	}
	return merged
}
