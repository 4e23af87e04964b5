package improve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/adapters/oracle"
	"github.com/selivandex/signal-engine/internal/backtest"
	"github.com/selivandex/signal-engine/internal/store"
	"github.com/selivandex/signal-engine/internal/strategy"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// VersionStore is the feature-store surface the controller needs
type VersionStore interface {
	GetRecord(ctx context.Context, date string) (*models.TradeRecord, error)
	ActiveStrategy(ctx context.Context) (*models.ModelVersion, error)
	AppendVersion(ctx context.Context, code string, corr, avgReturn float64, improvement models.ImprovementType) (*models.ModelVersion, error)
	GetResolvedStats(ctx context.Context) (*store.ResolvedStats, error)
}

// Backtester evaluates a strategy over a window of resolved history
type Backtester interface {
	Run(ctx context.Context, scorer strategy.Scorer, window int) (*models.BacktestReport, error)
}

// Oracle proposes candidate strategy code. The returned text is untrusted
// and is validated before it can reach a backtest.
type Oracle interface {
	ProposeDaily(ctx context.Context, yesterday *models.TradeRecord) (string, error)
	ProposeLongTerm(ctx context.Context, stats *store.ResolvedStats) (string, error)
}

// Promotion describes one accepted strategy upgrade
type Promotion struct {
	Version     *models.ModelVersion `json:"version"`
	CorrDelta   float64              `json:"corr_delta"`
	ReturnDelta float64              `json:"return_delta"`
}

// Config holds the promotion policy parameters
type Config struct {
	LookbackDays      int     // backtest window, resolved records
	CorrThreshold     float64 // minimum rank-correlation gain
	ReturnThreshold   float64 // minimum avg-return gain, percentage points
	LongTermEveryDays int
	Epoch             time.Time // fixed epoch for the long-term cadence
}

// Controller runs the self-improvement cycles: obtain a candidate from
// the oracle, backtest it against the active strategy over the same
// window, and promote only measurable improvements.
type Controller struct {
	store    VersionStore
	backtest Backtester
	oracle   Oracle
	cfg      Config
}

// NewController creates new improvement controller
func NewController(st VersionStore, bt Backtester, oracle Oracle, cfg Config) *Controller {
	return &Controller{store: st, backtest: bt, oracle: oracle, cfg: cfg}
}

// DailyCycle runs the daily improvement step for the cycle anchored at
// now: a candidate built from yesterday's resolved record is compared to
// the active strategy. Returns the promotion, or nil when no action was
// taken. Ambiguous evidence (insufficient history on either side) is
// always a no-op.
func (c *Controller) DailyCycle(ctx context.Context, now time.Time) (*Promotion, error) {
	yesterday := models.DateKey(now.AddDate(0, 0, -1))

	record, err := c.store.GetRecord(ctx, yesterday)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			logger.Warn("no trade record for yesterday, skipping improvement",
				zap.String("date", yesterday),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load yesterday's record: %w", err)
	}
	if !record.Resolved() {
		logger.Warn("yesterday's record is unresolved, skipping improvement",
			zap.String("date", yesterday),
		)
		return nil, nil
	}

	code, err := c.oracle.ProposeDaily(ctx, record)
	if err != nil {
		if errors.Is(err, oracle.ErrDisabled) {
			logger.Warn("oracle not configured, skipping improvement")
			return nil, nil
		}
		return nil, fmt.Errorf("oracle proposal failed: %w", err)
	}

	promotion, err := c.evaluate(ctx, code, models.ImprovementDaily)
	if err != nil {
		return nil, err
	}

	if c.longTermDue(now) {
		longTerm, err := c.LongTermCycle(ctx)
		if err != nil {
			logger.Error("long-term improvement failed", zap.Error(err))
		} else if longTerm != nil {
			return longTerm, nil
		}
	}

	return promotion, nil
}

// LongTermCycle runs the broader returns-optimizing variant: the oracle
// sees aggregate performance instead of yesterday's explanation. The
// promotion rule is identical to the daily one.
func (c *Controller) LongTermCycle(ctx context.Context) (*Promotion, error) {
	stats, err := c.store.GetResolvedStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load performance stats: %w", err)
	}
	if stats.Count < c.cfg.LongTermEveryDays {
		logger.Info("not enough history for long-term improvement",
			zap.Int("resolved", stats.Count),
			zap.Int("required", c.cfg.LongTermEveryDays),
		)
		return nil, nil
	}

	code, err := c.oracle.ProposeLongTerm(ctx, stats)
	if err != nil {
		if errors.Is(err, oracle.ErrDisabled) {
			logger.Warn("oracle not configured, skipping long-term improvement")
			return nil, nil
		}
		return nil, fmt.Errorf("long-term oracle proposal failed: %w", err)
	}

	return c.evaluate(ctx, code, models.ImprovementLongTerm)
}

// evaluate validates candidate code, backtests it against the active
// strategy over the same window, and promotes when the thresholds are
// met. The active strategy's numbers are recomputed fresh each call so
// the comparison always reflects up-to-date history.
func (c *Controller) evaluate(ctx context.Context, code string, improvement models.ImprovementType) (*Promotion, error) {
	candidate, err := strategy.Load(code)
	if err != nil {
		logger.Warn("oracle candidate rejected by validation",
			zap.Error(err),
			zap.String("code", code),
		)
		return nil, nil
	}

	candidateReport, err := c.backtest.Run(ctx, candidate, c.cfg.LookbackDays)
	if err != nil {
		if errors.Is(err, backtest.ErrInsufficientData) {
			logger.Info("insufficient history to evaluate candidate, no action")
			return nil, nil
		}
		return nil, fmt.Errorf("candidate backtest failed: %w", err)
	}

	active, err := c.store.ActiveStrategy(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoActiveStrategy) {
			// Cold start: first candidate is promoted unconditionally
			return c.promote(ctx, candidate, candidateReport, models.ImprovementInitial,
				candidateReport.RankCorrelation, candidateReport.AvgDailyReturn)
		}
		return nil, fmt.Errorf("failed to load active strategy: %w", err)
	}

	activeScorer, err := strategy.Load(active.StrategyCode)
	if err != nil {
		return nil, fmt.Errorf("stored active strategy v%d no longer loads: %w", active.Version, err)
	}

	activeReport, err := c.backtest.Run(ctx, activeScorer, c.cfg.LookbackDays)
	if err != nil {
		if errors.Is(err, backtest.ErrInsufficientData) {
			logger.Info("insufficient history to evaluate active strategy, no action")
			return nil, nil
		}
		return nil, fmt.Errorf("active strategy backtest failed: %w", err)
	}

	corrDelta := candidateReport.RankCorrelation - activeReport.RankCorrelation
	returnDelta := candidateReport.AvgDailyReturn - activeReport.AvgDailyReturn

	logger.Info("candidate evaluated",
		zap.Float64("candidate_corr", candidateReport.RankCorrelation),
		zap.Float64("active_corr", activeReport.RankCorrelation),
		zap.Float64("corr_delta", corrDelta),
		zap.Float64("candidate_return", candidateReport.AvgDailyReturn),
		zap.Float64("active_return", activeReport.AvgDailyReturn),
		zap.Float64("return_delta", returnDelta),
	)

	// Policy uses >=, not >: a delta exactly at the threshold promotes
	if corrDelta >= c.cfg.CorrThreshold || returnDelta >= c.cfg.ReturnThreshold {
		return c.promote(ctx, candidate, candidateReport, improvement, corrDelta, returnDelta)
	}

	logger.Info("improvement below thresholds, keeping active strategy",
		zap.Float64("corr_threshold", c.cfg.CorrThreshold),
		zap.Float64("return_threshold", c.cfg.ReturnThreshold),
	)
	return nil, nil
}

func (c *Controller) promote(ctx context.Context, candidate strategy.Scorer, report *models.BacktestReport, improvement models.ImprovementType, corrDelta, returnDelta float64) (*Promotion, error) {
	entry, err := c.store.AppendVersion(ctx, candidate.Source(),
		report.RankCorrelation, report.AvgDailyReturn, improvement)
	if err != nil {
		return nil, fmt.Errorf("failed to promote candidate: %w", err)
	}

	return &Promotion{
		Version:     entry,
		CorrDelta:   corrDelta,
		ReturnDelta: returnDelta,
	}, nil
}

// longTermDue reports whether now falls on the long-term cadence: every
// LongTermEveryDays elapsed days since the fixed epoch.
func (c *Controller) longTermDue(now time.Time) bool {
	days := int(now.UTC().Sub(c.cfg.Epoch).Hours() / 24)
	return days > 0 && days%c.cfg.LongTermEveryDays == 0
}
