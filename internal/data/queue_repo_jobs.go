package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/hanifsetyadi/cv-analyzer/internal/data/pgxutil"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/job"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

const insertJobSQL = `
  INSERT INTO evaluation_jobs (
    correlation_id, job_title, status, max_attempts,
    backoff_base_ms, backoff_multiplier, backoff_max_ms,
    scheduled_at, created_at, updated_at
  )
  VALUES ($1, $2, 'waiting', $3, $4, $5, $6, $7, $7, $7)
  RETURNING ` + jobColumns

// SQL used by ClaimNext to atomically lease the oldest due job.
const claimNextSQL = `
  WITH next AS (
    SELECT id FROM evaluation_jobs
    WHERE status = 'waiting' AND scheduled_at <= $1
    ORDER BY scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE evaluation_jobs j
  SET
    status = 'active',
    started_at = $1,
    lease_expires_at = $2,
    claim_id = gen_random_uuid(),
    updated_at = $1
  FROM next
  WHERE j.id = next.id
  RETURNING ` + qualifiedJobColumns

const qualifiedJobColumns = `
  j.id::text, j.correlation_id, j.job_title, j.status, j.attempts, j.max_attempts,
  j.backoff_base_ms, j.backoff_multiplier, j.backoff_max_ms, j.result, j.last_error,
  j.scheduled_at, j.started_at, j.completed_at, j.failed_at, j.lease_expires_at,
  j.claim_id::text, j.created_at, j.updated_at`

// Enqueue inserts a waiting job and notifies idle workers in the same transaction.
func (r *QueueRepo) Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.EvaluationJob, error) {
	if req == nil {
		return nil, errors.New("enqueue request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = r.cfg.DefaultMaxAttempts
	}
	policy := r.cfg.DefaultBackoff
	if req.Backoff != nil {
		policy = *req.Backoff
	}
	now := r.timeProvider.Now().UTC()

	var created *model.EvaluationJob
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			row := tx.QueryRowContext(ctx, insertJobSQL,
				req.CorrelationID,
				req.JobTitle,
				maxAttempts,
				policy.BaseDelay.Milliseconds(),
				policy.Multiplier,
				policy.MaxDelay.Milliseconds(),
				now,
			)
			j, err := scanJob(row)
			if err != nil {
				return fmt.Errorf("insert job: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, QueueChannel, j.ID); err != nil {
				return fmt.Errorf("send job notification: %w", err)
			}
			created = j
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ClaimNext leases the oldest due waiting job for lease. Expired leases are requeued and
// due delayed jobs are promoted first, so a single call drives every time-based transition.
// Returns model.ErrNoJobsAvailable when nothing is claimable.
func (r *QueueRepo) ClaimNext(ctx context.Context, lease time.Duration) (*model.EvaluationJob, error) {
	if lease <= 0 {
		return nil, errors.New("lease must be positive")
	}
	if _, err := r.RequeueExpiredLeases(ctx); err != nil {
		return nil, fmt.Errorf("requeue expired leases: %w", err)
	}
	if _, err := r.PromoteDelayed(ctx); err != nil {
		return nil, fmt.Errorf("promote delayed jobs: %w", err)
	}

	var claimed *model.EvaluationJob
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: pgxutil.ReadCommitted,
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now().UTC()
			j, err := scanJob(tx.QueryRow(ctx, claimNextSQL, now, now.Add(lease)))
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if err != nil {
				return fmt.Errorf("claim job: %w", err)
			}
			claimed = j
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Advisory lock namespace for lease requeue so concurrent workers do not double count attempts.
const (
	advisoryLockQueueMajor   int64 = 1001
	advisoryLockQueueRequeue int64 = 1
)

// RequeueExpiredLeases returns active jobs whose lease lapsed to waiting. The lapse
// consumes an attempt; a job with no attempts left becomes failed instead.
func (r *QueueRepo) RequeueExpiredLeases(ctx context.Context) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)",
				advisoryLockQueueMajor, advisoryLockQueueRequeue).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			now := r.timeProvider.Now().UTC()
			res, err := tx.ExecContext(ctx, `
				UPDATE evaluation_jobs
				SET attempts = attempts + 1,
				    last_error = 'lease expired',
				    status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'waiting' END,
				    failed_at = CASE WHEN attempts + 1 >= max_attempts THEN $1::timestamptz ELSE NULL END,
				    scheduled_at = CASE WHEN attempts + 1 >= max_attempts THEN scheduled_at ELSE $1::timestamptz END,
				    lease_expires_at = NULL,
				    claim_id = NULL,
				    updated_at = $1
				WHERE status = 'active'
				  AND lease_expires_at IS NOT NULL
				  AND lease_expires_at < $1
			`, now)
			if err != nil {
				return fmt.Errorf("requeue expired: %w", err)
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
	if rowsAffected > 0 {
		r.logger.WarnContext(ctx, "requeued jobs with expired leases", "count", rowsAffected)
	}
	return rowsAffected, nil
}

// PromoteDelayed moves delayed jobs whose backoff has elapsed back to waiting.
func (r *QueueRepo) PromoteDelayed(ctx context.Context) (int64, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE evaluation_jobs
		SET status = 'waiting', updated_at = $1
		WHERE status = 'delayed' AND scheduled_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("promote delayed: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return ra, nil
}

// Heartbeat extends the lease held under claimID. It reports false when the job is no
// longer active or another claim now holds it.
func (r *QueueRepo) Heartbeat(ctx context.Context, id, claimID string, lease time.Duration) (bool, error) {
	if lease <= 0 {
		return false, errors.New("lease must be positive")
	}
	if !validJobID(id) || !validJobID(claimID) {
		return false, nil
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE evaluation_jobs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND claim_id = $4 AND status = 'active'
	`, id, now.Add(lease), now, claimID)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Complete marks an active job completed and stores its result payload. The completion
// consumes the attempt it ran under. It reports false when claimID no longer holds the job.
func (r *QueueRepo) Complete(ctx context.Context, id, claimID string, result json.RawMessage) (bool, error) {
	if !validJobID(id) || !validJobID(claimID) {
		return false, nil
	}
	var payload any
	if len(result) > 0 {
		payload = []byte(result)
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE evaluation_jobs
		SET status = 'completed',
		    attempts = attempts + 1,
		    result = $2::jsonb,
		    completed_at = $3,
		    updated_at = $3,
		    lease_expires_at = NULL,
		    claim_id = NULL,
		    last_error = NULL
		WHERE id = $1 AND claim_id = $4 AND status = 'active'
	`, id, payload, now, claimID)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Fail records a failed attempt. The job is scheduled for retry with its stored backoff
// policy, or marked failed once attempts reach max_attempts.
// Returns ErrJobNotActive when the job is not currently leased under claimID.
func (r *QueueRepo) Fail(ctx context.Context, id, claimID, errMsg string) (*model.FailOutcome, error) {
	if !validJobID(id) || !validJobID(claimID) {
		return nil, ErrJobNotActive
	}

	var outcome model.FailOutcome
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: pgxutil.ReadCommitted,
		Fn: func(tx pgx.Tx) error {
			var (
				attempts, maxAttempts int
				baseMS, maxMS         int64
				multiplier            float64
			)
			err := tx.QueryRow(ctx, `
				SELECT attempts, max_attempts, backoff_base_ms, backoff_multiplier, backoff_max_ms
				FROM evaluation_jobs
				WHERE id = $1 AND claim_id = $2 AND status = 'active'
				FOR UPDATE
			`, id, claimID).Scan(&attempts, &maxAttempts, &baseMS, &multiplier, &maxMS)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrJobNotActive
			}
			if err != nil {
				return fmt.Errorf("lock job: %w", err)
			}

			now := r.timeProvider.Now().UTC()
			outcome = nextFailOutcome(failInput{
				now:         now,
				attempts:    attempts,
				maxAttempts: maxAttempts,
				policy: model.BackoffPolicy{
					BaseDelay:  time.Duration(baseMS) * time.Millisecond,
					Multiplier: multiplier,
					MaxDelay:   time.Duration(maxMS) * time.Millisecond,
				},
			})

			var failedAt *time.Time
			if outcome.Status == model.JobStateFailed {
				failedAt = &now
			}
			_, err = tx.Exec(ctx, `
				UPDATE evaluation_jobs
				SET status = $2,
				    attempts = $3,
				    scheduled_at = $4,
				    failed_at = $5,
				    last_error = $6,
				    lease_expires_at = NULL,
				    claim_id = NULL,
				    updated_at = $7
				WHERE id = $1
			`, id, string(outcome.Status), outcome.Attempts, outcome.ScheduledAt, failedAt, errMsg, now)
			if err != nil {
				return fmt.Errorf("fail job: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

type failInput struct {
	now         time.Time
	attempts    int
	maxAttempts int
	policy      model.BackoffPolicy
}

// nextFailOutcome applies one failed attempt to the job's counters.
func nextFailOutcome(in failInput) model.FailOutcome {
	attempts := in.attempts + 1
	if attempts >= in.maxAttempts {
		return model.FailOutcome{Status: model.JobStateFailed, Attempts: attempts, ScheduledAt: in.now}
	}
	backoff, err := job.NewBackoff(in.policy)
	if err != nil {
		// A stored policy that no longer validates retries immediately.
		return model.FailOutcome{Status: model.JobStateDelayed, Attempts: attempts, ScheduledAt: in.now}
	}
	return model.FailOutcome{
		Status:      model.JobStateDelayed,
		Attempts:    attempts,
		ScheduledAt: backoff.NextAttemptAt(in.now, attempts),
	}
}

// GetByID returns the job with the given id or ErrJobNotFound.
func (r *QueueRepo) GetByID(ctx context.Context, id string) (*model.EvaluationJob, error) {
	if !validJobID(id) {
		return nil, ErrJobNotFound
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM evaluation_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// List returns jobs ordered newest first, optionally filtered by status.
func (r *QueueRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.EvaluationJob, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := max(opts.Offset, 0)

	var status any
	if opts.Status != nil {
		if !opts.Status.Valid() {
			return nil, fmt.Errorf("invalid job status: %s", *opts.Status)
		}
		status = string(*opts.Status)
	}

	query := `
		SELECT ` + jobColumns + `
		FROM evaluation_jobs
		WHERE ($1::text IS NULL OR status = $1::text)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	var out []*model.EvaluationJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, status, limit, offset)
		if err != nil {
			return fmt.Errorf("query jobs: %w", err)
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.EvaluationJob, error) {
			return scanJob(row)
		})
		if err != nil {
			return fmt.Errorf("collect jobs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns the number of jobs in each state.
func (r *QueueRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
		  count(*) FILTER (WHERE status = 'waiting')   AS waiting,
		  count(*) FILTER (WHERE status = 'active')    AS active,
		  count(*) FILTER (WHERE status = 'delayed')   AS delayed,
		  count(*) FILTER (WHERE status = 'completed') AS completed,
		  count(*) FILTER (WHERE status = 'failed')    AS failed
		FROM evaluation_jobs
	`).Scan(&s.Waiting, &s.Active, &s.Delayed, &s.Completed, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks until a job is enqueued or ctx ends.
func (r *QueueRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() { _ = conn.Close() }()

	quoted := pgx.Identifier{QueueChannel}.Sanitize()
	if _, err := conn.ExecContext(ctx, "LISTEN "+quoted); err != nil {
		return fmt.Errorf("listen %s: %w", QueueChannel, err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); err != nil {
			r.logger.Debug("unlisten failed", "channel", QueueChannel, "error", err)
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}
