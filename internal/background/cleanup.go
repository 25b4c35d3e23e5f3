package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredPurger deletes KV entries whose TTL has elapsed
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically purges expired KV entries. Backends that expire
// keys on their own (Redis) do not need one.
type CleanupManager struct {
	store    ExpiredPurger
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(store ExpiredPurger, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		store:    store,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the cleanup immediately and then on every tick until stopped
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

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

// RunOnce purges expired entries and returns how many were removed
func (cm *CleanupManager) RunOnce(ctx context.Context) int64 {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.store.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to purge expired kv entries", slog.Any("error", err))
		return 0
	}

	if rowsDeleted > 0 {
		cm.logger.Info("expired kv entries purged", slog.Int64("rows_deleted", rowsDeleted))
	}
	return rowsDeleted
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
