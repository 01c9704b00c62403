package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CleanupService removes grade rows past the retention window.
type CleanupService struct {
	Pool          PgxPool
	RetentionDays int
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(pool PgxPool, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupService{Pool: pool, RetentionDays: retentionDays}
}

// CleanupOldData deletes grade jobs and task grades older than the
// retention period.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.RetentionDays)

	tag, err := s.Pool.Exec(ctx, `DELETE FROM task_grades WHERE graded_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.task_grades: %w", err)
	}
	deletedTaskGrades := tag.RowsAffected()

	tag, err = s.Pool.Exec(ctx, `DELETE FROM grade_jobs WHERE created_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.grade_jobs: %w", err)
	}
	deletedJobs := tag.RowsAffected()

	slog.Info("data cleanup completed",
		slog.Int64("deleted_grade_jobs", deletedJobs),
		slog.Int64("deleted_task_grades", deletedTaskGrades),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

// RunPeriodic starts a periodic cleanup job. It blocks until ctx is done.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
