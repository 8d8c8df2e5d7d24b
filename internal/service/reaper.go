package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanifsetyadi/cv-analyzer/config"
	"github.com/hanifsetyadi/cv-analyzer/internal/core"
	domainjob "github.com/hanifsetyadi/cv-analyzer/internal/domain/job"
	obserrors "github.com/hanifsetyadi/cv-analyzer/internal/observability/errors"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/metrics"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.RetentionRepository // Required: retention repository
	Config  config.ReaperConfig      // Required: reaper configuration
	Logger  *slog.Logger             // Optional: structured logger
	Metrics statsd.Sink              // Optional: metrics sink (StatsD-compatible)
	Now     func() time.Time         // Optional: clock used to compute cutoffs
}

// ReaperService evicts terminal jobs from the queue according to the retention policy.
//
// Each pass:
// - deletes completed jobs older than the completed max age;
// - trims completed jobs beyond the newest CompletedKeep;
// - deletes failed jobs older than the failed max age.
//
// Eviction is cleanup only. Completed evaluations remain in the result store.
type ReaperService struct {
	repo    core.RetentionRepository
	config  config.ReaperConfig
	policy  domainjob.RetentionPolicy
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("RetentionRepository is required")
	}

	cfg := opts.Config
	cfg.Sanitize()
	policy := cfg.RetentionPolicy()
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("reaper retention policy: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", cfg.Interval,
		"schedule", cfg.Schedule,
		"completed_max_age", policy.CompletedMaxAge,
		"completed_keep", policy.CompletedKeep,
		"failed_max_age", policy.FailedMaxAge,
	)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &ReaperService{
		repo:    opts.Repo,
		config:  cfg,
		policy:  policy,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// Run starts the interval loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Jitter keeps replicas started together from reaping in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(ctx, err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(ctx, err, "cleanup")
			}
		}
	}
}

// waitWithJitter sleeps a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	t := time.NewTimer(jitter)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// CleanupReport summarizes a single retention pass.
type CleanupReport struct {
	CompletedExpired int64
	CompletedTrimmed int64
	FailedExpired    int64
	Elapsed          time.Duration
}

// Total returns the number of jobs evicted.
func (r CleanupReport) Total() int64 {
	return r.CompletedExpired + r.CompletedTrimmed + r.FailedExpired
}

// RunOnce performs one retention pass.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	_, err := s.Cleanup(ctx)
	return err
}

// Cleanup performs one retention pass and reports what it evicted. Steps run
// independently; a failing step does not stop the others.
func (s *ReaperService) Cleanup(ctx context.Context) (CleanupReport, error) {
	start := time.Now()
	now := s.now()
	var (
		report             CleanupReport
		errs               []error
		allContextCanceled = true
		m                  cleanupMetrics
	)

	steps := []cleanupStep{
		{
			fn:        func(ctx context.Context) (int64, error) { return s.deleteExpiredCompleted(ctx, now) },
			label:     "delete expired completed jobs",
			operation: "delete_completed",
			count:     &report.CompletedExpired,
			metricErr: &m.CompletedErr,
		},
		{
			fn:        s.trimCompleted,
			label:     "trim completed jobs",
			operation: "trim_completed",
			count:     &report.CompletedTrimmed,
			metricErr: &m.TrimErr,
		},
		{
			fn:        func(ctx context.Context) (int64, error) { return s.deleteExpiredFailed(ctx, now) },
			label:     "delete expired failed jobs",
			operation: "delete_failed",
			count:     &report.FailedExpired,
			metricErr: &m.FailedErr,
		},
	}

	for _, step := range steps {
		outcome := s.executeCleanupStep(ctx, step.fn, step.label)
		*step.count = outcome.count
		*step.metricErr = outcome.metricErr
		s.emitCleanupOperationMetric(step.operation, outcome.count, outcome.metricErr)
		if outcome.aggregateErr != nil {
			errs = append(errs, outcome.aggregateErr)
			allContextCanceled = allContextCanceled && outcome.canceled
		}
	}

	report.Elapsed = time.Since(start)
	m.Total = report.Total()
	m.Elapsed = report.Elapsed
	s.emitCleanupMetrics(m)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return report, context.Canceled
		}
		return report, fmt.Errorf("cleanup failed: %w", joined)
	}
	return report, nil
}

type cleanupFunc func(context.Context) (int64, error)

type cleanupStep struct {
	fn        cleanupFunc
	label     string
	operation string
	count     *int64
	metricErr *error
}

type cleanupStepOutcome struct {
	count        int64
	metricErr    error
	aggregateErr error
	canceled     bool
}

func (s *ReaperService) executeCleanupStep(ctx context.Context, fn cleanupFunc, label string) cleanupStepOutcome {
	count, err := fn(ctx)
	outcome := cleanupStepOutcome{
		count:     count,
		metricErr: suppressContextCancellation(err),
		canceled:  isContextCancellation(err),
	}
	if err != nil {
		outcome.aggregateErr = fmt.Errorf("%s: %w", label, err)
	}
	return outcome
}

// drainBatches calls fn until it affects no rows.
func drainBatches(ctx context.Context, fn func() (int64, error)) (int64, error) {
	var total int64
	for {
		count, err := fn()
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *ReaperService) deleteExpiredCompleted(ctx context.Context, now time.Time) (int64, error) {
	cutoff := s.policy.CompletedCutoff(now)
	total, err := drainBatches(ctx, func() (int64, error) {
		return s.repo.DeleteCompletedBefore(ctx, cutoff, s.config.BatchSize)
	})
	if total > 0 {
		s.logger.InfoContext(ctx, "deleted expired completed jobs",
			"count", total,
			"max_age", s.policy.CompletedMaxAge,
		)
	}
	return total, err
}

func (s *ReaperService) trimCompleted(ctx context.Context) (int64, error) {
	total, err := drainBatches(ctx, func() (int64, error) {
		return s.repo.TrimCompleted(ctx, s.policy.CompletedKeep, s.config.BatchSize)
	})
	if total > 0 {
		s.logger.InfoContext(ctx, "trimmed completed jobs", "count", total, "keep", s.policy.CompletedKeep)
	}
	return total, err
}

func (s *ReaperService) deleteExpiredFailed(ctx context.Context, now time.Time) (int64, error) {
	cutoff := s.policy.FailedCutoff(now)
	total, err := drainBatches(ctx, func() (int64, error) {
		return s.repo.DeleteFailedBefore(ctx, cutoff, s.config.BatchSize)
	})
	if total > 0 {
		s.logger.InfoContext(ctx, "deleted expired failed jobs",
			"count", total,
			"max_age", s.policy.FailedMaxAge,
		)
	}
	return total, err
}

type cleanupMetrics struct {
	CompletedErr error
	TrimErr      error
	FailedErr    error
	Total        int64
	Elapsed      time.Duration
}

func (s *ReaperService) emitCleanupMetrics(m cleanupMetrics) {
	if s.metrics == nil {
		return
	}

	firstErr := firstError(m.CompletedErr, m.TrimErr, m.FailedErr)
	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if m.Total == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if m.Elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", m.Elapsed, metrics.CloneTags(tags))
	}
	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func (s *ReaperService) emitCleanupOperationMetric(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if err == nil && count > 0 {
		s.metrics.Count("reaper.jobs_processed", count, metrics.CloneTags(tags))
	}
}

func (s *ReaperService) logCleanupError(ctx context.Context, err error, label string) {
	if err == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, label+" cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, label+" failed", "error", err)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
