package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Purger removes expired rows and reports how many were deleted
type Purger func(ctx context.Context) (int64, error)

// CleanupTask is one named purge run on every tick
type CleanupTask struct {
	Name  string
	Purge Purger
}

// CleanupManager periodically removes expired remember tokens and sessions
type CleanupManager struct {
	tasks    []CleanupTask
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// DefaultCleanupInterval is used when the configured interval is not positive
const DefaultCleanupInterval = time.Hour

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration, tasks ...CleanupTask) *CleanupManager {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupManager{
		tasks:    tasks,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It blocks until Stop is called or
// ctx is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup runs every task; one failing task does not skip the others
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, task := range cm.tasks {
		rowsDeleted, err := task.Purge(cleanupCtx)
		if err != nil {
			cm.logger.Error("cleanup failed", slog.String("task", task.Name), slog.Any("error", err))
			continue
		}

		if rowsDeleted > 0 {
			cm.logger.Info("expired rows removed", slog.String("task", task.Name), slog.Int64("rows_deleted", rowsDeleted))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
