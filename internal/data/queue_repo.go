package data

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

// QueueChannel is the Postgres NOTIFY channel signalled whenever a job becomes claimable.
const QueueChannel = "evaluation_jobs_ready"

// RepoConfig holds configuration options for the queue repository.
type RepoConfig struct {
	// DefaultMaxAttempts applies when an enqueue request does not set one.
	DefaultMaxAttempts int
	// DefaultBackoff applies when an enqueue request does not carry its own policy.
	DefaultBackoff model.BackoffPolicy
	Logger         *slog.Logger
	TimeProvider   TimeProvider
}

// QueueRepo stores evaluation jobs in Postgres and implements the claim/lease protocol.
type QueueRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewQueueRepo creates a new QueueRepo with the given database connection and configuration.
func NewQueueRepo(db *sql.DB, cfg RepoConfig) *QueueRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = model.DefaultMaxAttempts
	}
	if cfg.DefaultBackoff.Multiplier < 1 {
		cfg.DefaultBackoff.Multiplier = 2
	}
	if cfg.DefaultBackoff.BaseDelay <= 0 {
		cfg.DefaultBackoff.BaseDelay = 5 * time.Second
	}

	return &QueueRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       logger.With("component", "queue_repo"),
	}
}

const jobColumns = `
  id::text,
  correlation_id,
  job_title,
  status,
  attempts,
  max_attempts,
  backoff_base_ms,
  backoff_multiplier,
  backoff_max_ms,
  result,
  last_error,
  scheduled_at,
  started_at,
  completed_at,
  failed_at,
  lease_expires_at,
  claim_id::text,
  created_at,
  updated_at
`

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	baseMS, maxMS                    int64
	result                           []byte
	lastError                        sql.NullString
	startedAt, completedAt, failedAt sql.NullTime
	leaseExpiresAt                   sql.NullTime
	claimID                          sql.NullString
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.EvaluationJob) error {
	return scanner.Scan(
		&job.ID,
		&job.CorrelationID,
		&job.JobTitle,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&d.baseMS,
		&job.Backoff.Multiplier,
		&d.maxMS,
		&d.result,
		&d.lastError,
		&job.ScheduledAt,
		&d.startedAt,
		&d.completedAt,
		&d.failedAt,
		&d.leaseExpiresAt,
		&d.claimID,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.EvaluationJob) {
	job.Backoff.BaseDelay = time.Duration(d.baseMS) * time.Millisecond
	job.Backoff.MaxDelay = time.Duration(d.maxMS) * time.Millisecond
	if len(d.result) > 0 {
		job.Result = append([]byte(nil), d.result...)
	}
	job.LastError = cloneNullableString(d.lastError)
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
	job.FailedAt = cloneNullableTime(d.failedAt)
	job.LeaseExpiresAt = cloneNullableTime(d.leaseExpiresAt)
	job.ClaimID = d.claimID.String
	job.ScheduledAt = job.ScheduledAt.UTC()
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
}

func scanJob(scanner jobRowScanner) (*model.EvaluationJob, error) {
	job := &model.EvaluationJob{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}
	data.apply(job)
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// validJobID reports whether id can be compared against the UUID primary key.
func validJobID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
