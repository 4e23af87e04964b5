package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/adapters/config"
	"github.com/selivandex/signal-engine/pkg/logger"
)

// CycleLock serializes a scheduled stage across pods with the Redlock
// algorithm, so two replicas cannot double-write the same date. A nil
// CycleLock always grants the stage, which is the single-pod default.
type CycleLock struct {
	lockManager *redlock.RedLock
	ttl         time.Duration
}

// NewCycleLock connects to the configured redis nodes. Returns nil when
// no addresses are configured.
func NewCycleLock(ctx context.Context, cfg *config.RedisConfig) (*CycleLock, error) {
	if len(cfg.Addrs) == 0 {
		logger.Info("cycle lock disabled, no redis addresses")
		return nil, nil
	}

	lockManager, err := redlock.NewRedLock(ctx, cfg.Addrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	logger.Info("cycle lock initialized",
		zap.Int("nodes", len(cfg.Addrs)),
		zap.Int("ttl_seconds", cfg.LockTTL),
	)

	return &CycleLock{
		lockManager: lockManager,
		ttl:         time.Duration(cfg.LockTTL) * time.Second,
	}, nil
}

// TryAcquire attempts to take the lock for a named stage on a given date.
// Returns false when another pod already runs the stage.
func (cl *CycleLock) TryAcquire(ctx context.Context, stage, date string) (bool, error) {
	if cl == nil {
		return true, nil
	}

	lockName := fmt.Sprintf("cycle:lock:%s:%s", stage, date)

	expiry, err := cl.lockManager.Lock(ctx, lockName, cl.ttl)
	if err != nil {
		logger.Debug("stage lock already held by another pod",
			zap.String("stage", stage),
			zap.String("date", date),
		)
		return false, nil
	}

	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock: invalid expiry %v", expiry)
	}

	logger.Info("stage lock acquired",
		zap.String("stage", stage),
		zap.String("date", date),
		zap.Duration("expiry", expiry),
	)

	return true, nil
}

// Release gives the stage lock back. Safe to call after expiry.
func (cl *CycleLock) Release(ctx context.Context, stage, date string) {
	if cl == nil {
		return
	}

	lockName := fmt.Sprintf("cycle:lock:%s:%s", stage, date)

	if err := cl.lockManager.UnLock(ctx, lockName); err != nil {
		logger.Warn("failed to release stage lock (may have already expired)",
			zap.String("stage", stage),
			zap.String("date", date),
			zap.Error(err),
		)
	}
}
