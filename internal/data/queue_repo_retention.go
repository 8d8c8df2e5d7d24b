package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hanifsetyadi/cv-analyzer/internal/data/pgxutil"
)

// Advisory lock namespace for retention operations.
// Two-arg pg_try_advisory_xact_lock(major, minor); major 1000 is reserved for the reaper.
const (
	advisoryLockReaperMajor           = 1000
	advisoryLockReaperDeleteCompleted = 1
	advisoryLockReaperTrimCompleted   = 2
	advisoryLockReaperDeleteFailed    = 3
)

// RetentionRepo evicts finished jobs from the queue table. Eviction never touches
// evaluation_results, which remains the durable record.
type RetentionRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewRetentionRepo creates a RetentionRepo. A nil TimeProvider uses the system clock.
func NewRetentionRepo(db *sql.DB, tp TimeProvider) *RetentionRepo {
	if tp == nil {
		tp = RealTimeProvider{}
	}
	return &RetentionRepo{DB: db, timeProvider: tp}
}

// Now exposes the repository clock so retention cutoffs share it.
func (r *RetentionRepo) Now() time.Time { return r.timeProvider.Now() }

// DeleteCompletedBefore deletes up to batchSize completed jobs that finished before cutoff.
func (r *RetentionRepo) DeleteCompletedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	return r.lockedExec(ctx, advisoryLockReaperDeleteCompleted, `
		DELETE FROM evaluation_jobs
		WHERE id IN (
			SELECT id FROM evaluation_jobs
			WHERE status = 'completed'
			  AND completed_at < $1
			ORDER BY completed_at
			LIMIT $2
		)
	`, cutoff.UTC(), batchSize)
}

// TrimCompleted deletes up to batchSize completed jobs beyond the keep newest.
func (r *RetentionRepo) TrimCompleted(ctx context.Context, keep, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if keep < 0 {
		return 0, errors.New("keep must not be negative")
	}
	return r.lockedExec(ctx, advisoryLockReaperTrimCompleted, `
		DELETE FROM evaluation_jobs
		WHERE id IN (
			SELECT id FROM evaluation_jobs
			WHERE status = 'completed'
			ORDER BY completed_at DESC, id DESC
			OFFSET $1
			LIMIT $2
		)
	`, keep, batchSize)
}

// DeleteFailedBefore deletes up to batchSize failed jobs that failed before cutoff.
func (r *RetentionRepo) DeleteFailedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	return r.lockedExec(ctx, advisoryLockReaperDeleteFailed, `
		DELETE FROM evaluation_jobs
		WHERE id IN (
			SELECT id FROM evaluation_jobs
			WHERE status = 'failed'
			  AND failed_at < $1
			ORDER BY failed_at
			LIMIT $2
		)
	`, cutoff.UTC(), batchSize)
}

// lockedExec runs query under the reaper advisory lock for minor. A lock held by
// another instance is not an error; the pass simply deletes nothing.
func (r *RetentionRepo) lockedExec(ctx context.Context, minor int, query string, args ...any) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockReaperMajor, minor).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("retention delete: %w", err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
