package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/clock"
)

// ResetTokenCleaner clears reset token pairs whose expiry has passed
type ResetTokenCleaner interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// SecurityEventPruner deletes security events older than a cutoff
type SecurityEventPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically removes stale reset tokens and, when a
// retention is configured, old security events
type CleanupManager struct {
	tokens    ResetTokenCleaner
	events    SecurityEventPruner
	retention time.Duration
	interval  time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewCleanupManager creates a new cleanup manager. A zero retention keeps
// security events forever.
func NewCleanupManager(
	tokens ResetTokenCleaner,
	events SecurityEventPruner,
	retention time.Duration,
	interval time.Duration,
	clk clock.Clock,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		tokens:    tokens,
		events:    events,
		retention: retention,
		interval:  interval,
		clock:     clk,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task and blocks until stopped
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

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
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := cm.clock.Now()

	cleared, err := cm.tokens.ClearExpiredResetTokens(cleanupCtx, now)
	if err != nil {
		cm.logger.Error("failed to clear expired reset tokens", slog.Any("error", err))
	} else if cleared > 0 {
		cm.logger.Info("expired reset tokens cleared", slog.Int64("rows", cleared))
	}

	if cm.retention <= 0 || cm.events == nil {
		return
	}

	deleted, err := cm.events.DeleteOlderThan(cleanupCtx, now.Add(-cm.retention))
	if err != nil {
		cm.logger.Error("failed to prune security events", slog.Any("error", err))
		return
	}
	if deleted > 0 {
		cm.logger.Info("old security events pruned", slog.Int64("rows", deleted))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
