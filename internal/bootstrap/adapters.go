package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hanifsetyadi/cv-analyzer/config"
	"github.com/hanifsetyadi/cv-analyzer/internal/adapters/evalrunner"
	"github.com/hanifsetyadi/cv-analyzer/internal/adapters/reaper"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/statsd"
)

// WorkerRunConfig contains dependencies for the evaluation worker.
type WorkerRunConfig struct {
	Queue    evalrunner.Queue
	Pipeline evalrunner.Pipeline
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Worker   config.WorkerConfig
}

// RunWorker runs the evaluation worker until ctx is canceled.
func RunWorker(ctx context.Context, cfg WorkerRunConfig) error {
	runner, err := evalrunner.NewRunner(evalrunner.RunnerOptions{
		Queue:        cfg.Queue,
		Pipeline:     cfg.Pipeline,
		Logger:       cfg.Logger,
		Metrics:      cfg.Metrics,
		Lease:        cfg.Worker.JobLease,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("create evaluation runner: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.InfoContext(ctx, "evaluation worker running",
			"concurrency", cfg.Worker.Concurrency,
			"lease", cfg.Worker.JobLease,
		)
	}
	return runner.Run(ctx)
}

// ReaperConfig contains dependencies for the reaper service.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper runs queue retention until ctx is canceled.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}
	return runner.Run(ctx)
}
