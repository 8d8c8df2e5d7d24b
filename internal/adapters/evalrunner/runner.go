// Package evalrunner runs the evaluation worker: it claims queued jobs, keeps their
// leases alive, runs the pipeline, and reports each attempt back to the queue.
package evalrunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/metrics"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/statsd"
)

const (
	defaultLease         = 5 * time.Minute
	defaultPollInterval  = 5 * time.Second
	defaultReportTimeout = 10 * time.Second
)

// errLeaseLost cancels an in-flight evaluation once its lease is gone.
var errLeaseLost = errors.New("job lease lost")

// Queue is the subset of the queue service the runner needs.
type Queue interface {
	ClaimNext(ctx context.Context, lease time.Duration) (*model.EvaluationJob, error)
	Subscribe() (func(), <-chan struct{})
	Heartbeat(ctx context.Context, id, claimID string, extend time.Duration) (bool, error)
	Complete(ctx context.Context, id, claimID string, result json.RawMessage) (bool, error)
	Fail(ctx context.Context, id, claimID, errMsg string) (*model.FailOutcome, error)
}

// Pipeline evaluates one claimed job.
type Pipeline interface {
	Evaluate(ctx context.Context, job *model.EvaluationJob) (*model.EvaluationResult, error)
}

// RunnerOptions configures the evaluation runner.
type RunnerOptions struct {
	Queue    Queue    // Required
	Pipeline Pipeline // Required
	Logger   *slog.Logger
	Metrics  statsd.Sink

	Lease             time.Duration // per-job lease; defaults to 5m
	HeartbeatInterval time.Duration // defaults to Lease/3
	Concurrency       int           // worker goroutines; defaults to 1
	PollInterval      time.Duration // idle re-check interval when no notification arrives; defaults to 5s
	ReportTimeout     time.Duration // bound on Complete/Fail calls, which outlive shutdown; defaults to 10s
}

// Runner pulls evaluation jobs and executes them.
type Runner struct {
	queue         Queue
	pipeline      Pipeline
	logger        *slog.Logger
	metrics       statsd.Sink
	lease         time.Duration
	heartbeat     time.Duration
	workers       int
	poll          time.Duration
	reportTimeout time.Duration
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner validates options and applies defaults.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}

	lease := opts.Lease
	if lease <= 0 {
		lease = defaultLease
	}
	hb := opts.HeartbeatInterval
	if hb <= 0 || hb >= lease {
		hb = lease / 3
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	reportTimeout := opts.ReportTimeout
	if reportTimeout <= 0 {
		reportTimeout = defaultReportTimeout
	}

	return &Runner{
		queue:         opts.Queue,
		pipeline:      opts.Pipeline,
		logger:        resolveLogger(opts.Logger).With("component", "eval_runner"),
		metrics:       opts.Metrics,
		lease:         lease,
		heartbeat:     hb,
		workers:       workers,
		poll:          poll,
		reportTimeout: reportTimeout,
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
// In-flight jobs are reported before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting evaluation runner",
		"workers", r.workers,
		"lease", r.lease,
		"heartbeat", r.heartbeat,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsub, ch := r.queue.Subscribe()
	defer unsub()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for i := range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx, i, ch); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context, worker int, notify <-chan struct{}) error {
	logger := r.logger.With("worker", worker)
	for ctx.Err() == nil {
		job, err := r.queue.ClaimNext(ctx, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, logger, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForWork(ctx, notify) {
				return nil
			}
		case ctx.Err() != nil:
			return nil
		default:
			// Store outages are retried on the poll interval rather than killing the worker.
			logger.ErrorContext(ctx, "claim next job failed", "error", err)
			if !r.waitForWork(ctx, nil) {
				return nil
			}
		}
	}
	return nil
}

// waitForWork blocks until a notification, the poll interval, or cancellation.
func (r *Runner) waitForWork(ctx context.Context, notify <-chan struct{}) bool {
	t := time.NewTimer(r.poll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case _, ok := <-notify:
		if !ok {
			// Notifier stopped; fall back to polling.
			select {
			case <-ctx.Done():
				return false
			case <-t.C:
			}
		}
		return true
	case <-t.C:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, logger *slog.Logger, job *model.EvaluationJob) {
	start := time.Now()
	attempt := job.Attempts + 1
	logger = logger.With("job_id", job.ID, "correlation_id", job.CorrelationID, "attempt", attempt)
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			Transition: transition,
			Result:     result,
			Attempt:    attempt,
			Duration:   time.Since(start),
			Err:        err,
		})
	}
	logger.InfoContext(ctx, "evaluation started", "job_title", job.JobTitle)

	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := r.keepAlive(jobCtx, cancel, logger, job)
	res, evalErr := r.pipeline.Evaluate(jobCtx, job)
	stop()

	if errors.Is(context.Cause(jobCtx), errLeaseLost) {
		// The job may already belong to another worker; reporting would clobber its attempt.
		logger.WarnContext(ctx, "lease lost; dropping evaluation outcome", "error", evalErr)
		emit("lease_lost", metrics.ResultNoop, errLeaseLost)
		return
	}

	// Reports outlive shutdown so an interrupted attempt is recorded instead of
	// waiting out its lease.
	reportCtx, cancelReport := context.WithTimeout(context.WithoutCancel(ctx), r.reportTimeout)
	defer cancelReport()

	if evalErr != nil {
		r.reportFailure(reportCtx, logger, job, evalErr, emit)
		return
	}

	payload, err := json.Marshal(res.Evaluation)
	if err != nil {
		r.reportFailure(reportCtx, logger, job, fmt.Errorf("encode result: %w", err), emit)
		return
	}
	completed, err := r.queue.Complete(reportCtx, job.ID, job.ClaimID, payload)
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "complete job error", "error", err)
		emit("completed", metrics.ResultError, err)
	case !completed:
		logger.WarnContext(ctx, "job no longer active at completion")
		emit("completed", metrics.ResultNoop, nil)
	default:
		logger.InfoContext(ctx, "evaluation completed",
			"cv_score", res.CVScore,
			"project_score", res.ProjectScore,
			"duration", time.Since(start),
		)
		emit("completed", metrics.ResultSuccess, nil)
	}
}

func (r *Runner) reportFailure(
	ctx context.Context,
	logger *slog.Logger,
	job *model.EvaluationJob,
	cause error,
	emit func(transition, result string, err error),
) {
	outcome, err := r.queue.Fail(ctx, job.ID, job.ClaimID, cause.Error())
	if err != nil {
		logger.ErrorContext(ctx, "fail job error", "error", err, "original_error", cause)
		emit("failed", metrics.ResultError, cause)
		return
	}
	if outcome.Retrying() {
		logger.WarnContext(ctx, "evaluation attempt failed; retrying",
			"error", cause,
			"attempts", outcome.Attempts,
			"next_attempt_at", outcome.ScheduledAt,
		)
		emit("failed", metrics.ResultRetry, cause)
		return
	}
	logger.ErrorContext(ctx, "evaluation failed permanently", "error", cause, "attempts", outcome.Attempts)
	emit("failed", metrics.ResultError, cause)
}

// keepAlive extends the job lease until stop is called. A heartbeat that finds
// the claim gone cancels the evaluation with errLeaseLost, as does a run of
// failed heartbeats that outlasts the lease.
func (r *Runner) keepAlive(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	logger *slog.Logger,
	job *model.EvaluationJob,
) (stop func()) {
	leaseDeadline := time.Now().Add(r.lease)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(r.heartbeat)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				sent := time.Now()
				ok, err := r.queue.Heartbeat(ctx, job.ID, job.ClaimID, r.lease)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					if !time.Now().Before(leaseDeadline) {
						logger.WarnContext(ctx, "lease expired while heartbeats failed", "error", err)
						cancel(errLeaseLost)
						return
					}
					logger.WarnContext(ctx, "heartbeat failed", "error", err)
					continue
				}
				if !ok {
					cancel(errLeaseLost)
					return
				}
				leaseDeadline = sent.Add(r.lease)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
}
