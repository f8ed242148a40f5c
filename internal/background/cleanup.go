package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is used when a non-positive interval is supplied
const DefaultInterval = 5 * time.Minute

// GateSweeper evicts idle gates and purges expired session state
type GateSweeper interface {
	EvictIdle() int
	PurgeStaleSessions(ctx context.Context) (int64, error)
}

// TokenSweeper drops expired form tokens
type TokenSweeper interface {
	Sweep() int
}

// CleanupManager periodically evicts idle gates, sweeps expired CSRF tokens
// and purges stale session rows
type CleanupManager struct {
	gates    GateSweeper
	tokens   TokenSweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	gates GateSweeper,
	tokens TokenSweeper,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &CleanupManager{
		gates:    gates,
		tokens:   tokens,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task and blocks until stopped
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single cleanup pass
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	evicted := cm.gates.EvictIdle()
	swept := cm.tokens.Sweep()

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.gates.PurgeStaleSessions(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to purge stale session state", slog.Any("error", err))
	}

	if evicted > 0 || swept > 0 || rowsDeleted > 0 {
		cm.logger.Info("cleanup completed",
			slog.Int("gates_evicted", evicted),
			slog.Int("csrf_tokens_swept", swept),
			slog.Int64("session_rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
