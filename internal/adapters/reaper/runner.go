// Package reaper provides adapters for running queue retention.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/hanifsetyadi/cv-analyzer/config"
	"github.com/hanifsetyadi/cv-analyzer/internal/core"
	"github.com/hanifsetyadi/cv-analyzer/internal/data"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/statsd"
	"github.com/hanifsetyadi/cv-analyzer/internal/service"
)

// Runner runs the reaper either on a fixed interval or on a cron schedule.
type Runner struct {
	reaper   *service.ReaperService
	schedule string
	logger   *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Repo    core.RetentionRepository
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Repo == nil {
		return nil, errors.New("either DB or Repo must be provided")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("reaper config: %w", err)
	}

	repo := opts.Repo
	if repo == nil {
		repo = data.NewRetentionRepo(opts.DB, nil)
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{
		reaper:   reaper,
		schedule: strings.TrimSpace(opts.Config.Schedule),
		logger:   opts.Logger.With("component", "reaper_runner"),
	}, nil
}

// Service exposes the wrapped reaper for one-off cleanups.
func (r *Runner) Service() *service.ReaperService { return r.reaper }

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r.schedule == "" {
		r.logger.InfoContext(ctx, "starting reaper runner", "mode", "interval")
		return r.reaper.Run(ctx)
	}
	return r.runCron(ctx)
}

func (r *Runner) runCron(ctx context.Context) error {
	logger := cronLogger{l: r.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(r.schedule, func() {
		if err := r.reaper.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "scheduled cleanup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule reaper %q: %w", r.schedule, err)
	}

	r.logger.InfoContext(ctx, "starting reaper runner", "mode", "cron", "schedule", r.schedule)
	c.Start()
	<-ctx.Done()

	// Wait for a running cleanup to observe cancellation and return.
	<-c.Stop().Done()
	r.logger.InfoContext(ctx, "reaper runner stopped", "reason", ctx.Err())
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
