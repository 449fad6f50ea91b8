package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/labalert/internal/repository"
	"github.com/jwalitptl/labalert/pkg/logger"
)

// RetentionWorker deletes archived results older than the retention period.
type RetentionWorker struct {
	repo            repository.ResultRepository
	retentionDays   int
	cleanupInterval time.Duration
	logger          *logger.Logger
}

func NewRetentionWorker(repo repository.ResultRepository, retentionDays int, cleanupInterval time.Duration, log *logger.Logger) *RetentionWorker {
	return &RetentionWorker{
		repo:            repo,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          log.WithFields(map[string]interface{}{"worker": "retention"}),
	}
}

func (w *RetentionWorker) Start(ctx context.Context) error {
	if w.retentionDays <= 0 || w.cleanupInterval <= 0 {
		w.logger.Info("Retention disabled")
		return nil
	}

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				// Log error but continue
				w.logger.Error(err, "Retention cleanup failed")
			}
		}
	}
}

func (w *RetentionWorker) Cleanup(ctx context.Context) (int64, error) {
	rows, err := w.repo.DeleteOlderThan(ctx, w.retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup results: %w", err)
	}

	w.logger.Info("Cleaned up archived results", "deleted", rows, "retention_days", w.retentionDays)
	return rows, nil
}
