package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanifsetyadi/cv-analyzer/internal/core"
	domainjob "github.com/hanifsetyadi/cv-analyzer/internal/domain/job"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	apperrors "github.com/hanifsetyadi/cv-analyzer/internal/errors"
)

// QueueServiceOptions groups dependencies for QueueService.
type QueueServiceOptions struct {
	Repo            core.QueueRepository      // Required: durable job queue
	DefaultLease    time.Duration             // Required: default lease duration for claimed jobs
	Logger          *slog.Logger              // Optional: structured logger
	ErrorRecorder   core.EnqueueErrorRecorder // Optional: auxiliary record of failed submissions
	LeasePolicy     *domainjob.LeasePolicy    // Optional: override default lease policy
	Notifier        domainjob.Notifier        // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure default notifier behaviour
	Now             func() time.Time          // Optional: clock for enqueue failure records
}

// QueueService fronts the evaluation job queue.
//
// It validates submissions, resolves lease durations, and fans queue wakeups
// out to idle workers through the notifier.
type QueueService struct {
	repo        core.QueueRepository
	leasePolicy *domainjob.LeasePolicy
	notifier    domainjob.Notifier
	recorder    core.EnqueueErrorRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewQueueService constructs a new QueueService.
func NewQueueService(opts QueueServiceOptions) (*QueueService, error) {
	if opts.Repo == nil {
		return nil, errors.New("QueueRepository is required")
	}

	var leasePolicy *domainjob.LeasePolicy
	switch {
	case opts.LeasePolicy != nil:
		leasePolicy = opts.LeasePolicy
	case opts.DefaultLease > 0:
		var err error
		leasePolicy, err = domainjob.NewLeasePolicy(opts.DefaultLease)
		if err != nil {
			return nil, fmt.Errorf("create lease policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultLease must be positive")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "queue_service")
	logger.Debug("QueueService initialized", "default_lease", leasePolicy.Default())

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &QueueService{
		repo:        opts.Repo,
		leasePolicy: leasePolicy,
		notifier:    notifier,
		recorder:    opts.ErrorRecorder,
		logger:      logger,
		now:         now,
	}, nil
}

// MustNewQueueService constructs a new QueueService and panics on error.
func MustNewQueueService(opts QueueServiceOptions) *QueueService {
	svc, err := NewQueueService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create QueueService: %v", err))
	}
	return svc
}

// Enqueue validates the request and schedules an evaluation job.
//
// Validation failures come back as apperrors validation errors. A queue store
// failure comes back as an EnqueueError and is recorded best-effort.
func (s *QueueService) Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.EvaluationJob, error) {
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	job, err := s.repo.Enqueue(ctx, req)
	if err != nil {
		enqueueErr := model.NewEnqueueError("enqueue job", err)
		s.logger.ErrorContext(ctx, "enqueue failed",
			"correlation_id", req.CorrelationID,
			"job_title", req.JobTitle,
			"error", err,
		)
		s.recordEnqueueFailure(ctx, req, err)
		return nil, enqueueErr
	}

	s.logger.InfoContext(ctx, "job enqueued",
		"id", job.ID,
		"correlation_id", job.CorrelationID,
		"job_title", job.JobTitle,
		"max_attempts", job.MaxAttempts,
	)
	return job, nil
}

func (s *QueueService) recordEnqueueFailure(ctx context.Context, req *model.EnqueueRequest, cause error) {
	if s.recorder == nil {
		return
	}
	failure := model.EnqueueFailure{
		CorrelationID: req.CorrelationID,
		JobTitle:      req.JobTitle,
		Error:         cause.Error(),
		Timestamp:     s.now().UTC(),
	}
	// The request context may already be the reason enqueue failed.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.recorder.Record(recCtx, failure); err != nil {
		s.logger.WarnContext(ctx, "failed to record enqueue failure",
			"correlation_id", req.CorrelationID,
			"error", err,
		)
	}
}

// ClaimNext claims the next due job. It returns model.ErrNoJobsAvailable when the queue is idle.
func (s *QueueService) ClaimNext(ctx context.Context, lease time.Duration) (*model.EvaluationJob, error) {
	decision := s.leasePolicy.Resolve(lease)
	if decision.Source == domainjob.LeaseSourceClamped {
		s.logger.DebugContext(ctx, "clamped sub-second lease duration",
			"requested_duration", decision.Requested,
			"lease", decision.Duration)
	}

	job, err := s.repo.ClaimNext(ctx, decision.Duration)
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("claim next job: %w", err)
	}

	s.logger.DebugContext(ctx, "job claimed",
		"id", job.ID,
		"attempts", job.Attempts,
		"lease", decision.Duration,
	)
	return job, nil
}

// LeasePolicy exposes the lease policy so runners can derive heartbeat intervals.
func (s *QueueService) LeasePolicy() *domainjob.LeasePolicy {
	return s.leasePolicy
}

// Subscribe creates a subscription for job availability notifications.
// Returns an unsubscribe function and a channel that receives wakeups.
func (s *QueueService) Subscribe() (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe()
}

// StopAll stops the notification listener and closes every subscription.
func (s *QueueService) StopAll() {
	if s.notifier != nil {
		s.notifier.StopAll()
	}
}

// Heartbeat extends the lease on a job the caller still holds under claimID.
func (s *QueueService) Heartbeat(ctx context.Context, id, claimID string, extend time.Duration) (bool, error) {
	decision := s.leasePolicy.Resolve(extend)
	updated, err := s.repo.Heartbeat(ctx, id, claimID, decision.Duration)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}
	if updated {
		s.logger.DebugContext(ctx, "job heartbeat updated", "id", id, "extend", decision.Duration)
	}
	return updated, nil
}

// Complete marks an active job completed with its result payload. It reports false
// when the claim no longer holds the job.
func (s *QueueService) Complete(ctx context.Context, id, claimID string, result json.RawMessage) (bool, error) {
	completed, err := s.repo.Complete(ctx, id, claimID, result)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}
	if completed {
		s.logger.DebugContext(ctx, "job completed", "id", id)
	}
	return completed, nil
}

// Fail reports a failed attempt. The outcome says whether the job will be retried.
func (s *QueueService) Fail(ctx context.Context, id, claimID, errMsg string) (*model.FailOutcome, error) {
	if errMsg == "" {
		return nil, errors.New("error message required")
	}
	outcome, err := s.repo.Fail(ctx, id, claimID, errMsg)
	if err != nil {
		return nil, fmt.Errorf("fail job %s: %w", id, err)
	}
	s.logger.DebugContext(ctx, "job attempt failed",
		"id", id,
		"status", outcome.Status,
		"attempts", outcome.Attempts,
		"error", errMsg,
	)
	return outcome, nil
}

// GetJob returns the queue record for id. Evicted and unknown jobs yield a not found error.
func (s *QueueService) GetJob(ctx context.Context, id string) (*model.EvaluationJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns queue jobs, newest first.
func (s *QueueService) List(ctx context.Context, opts model.JobListOptions) ([]*model.EvaluationJob, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("invalid status %q", *opts.Status))
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, apperrors.Validation("limit and offset must be >= 0")
	}
	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns job counts per state.
func (s *QueueService) Stats(ctx context.Context) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}
