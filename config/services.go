package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/job"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the evaluation worker.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs queue retention.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if strings.TrimSpace(servicesStr) == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, worker, reaper)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// QueueConfig contains the retry policy applied to newly enqueued jobs.
type QueueConfig struct {
	MaxAttempts       int           `env:"QUEUE_MAX_ATTEMPTS"       envDefault:"3"`
	BackoffBase       time.Duration `env:"QUEUE_BACKOFF_BASE"       envDefault:"5s"`
	BackoffMultiplier float64       `env:"QUEUE_BACKOFF_MULTIPLIER" envDefault:"2"`
	BackoffMax        time.Duration `env:"QUEUE_BACKOFF_MAX"        envDefault:"10m"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	if q.MaxAttempts < 1 {
		q.MaxAttempts = model.DefaultMaxAttempts
	}
	if q.BackoffBase < 0 {
		q.BackoffBase = 0
	}
	if q.BackoffMultiplier < 1 {
		q.BackoffMultiplier = 1
	}
	if q.BackoffMax < 0 {
		q.BackoffMax = 0
	}
}

// BackoffPolicy returns the configured policy as a domain value.
func (q QueueConfig) BackoffPolicy() model.BackoffPolicy {
	return model.BackoffPolicy{
		BaseDelay:  q.BackoffBase,
		Multiplier: q.BackoffMultiplier,
		MaxDelay:   q.BackoffMax,
	}
}

// WorkerConfig contains evaluation worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"1"`

	// JobLease is how long a claimed job stays leased without a heartbeat.
	JobLease time.Duration `env:"WORKER_JOB_LEASE" envDefault:"5m"`

	// PollInterval bounds how long an idle worker waits before re-checking the queue.
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`

	// GenerationTimeout caps a single generation call.
	GenerationTimeout time.Duration `env:"WORKER_GENERATION_TIMEOUT" envDefault:"60s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.JobLease < 5*time.Second {
		w.JobLease = 5 * time.Second
	}
	if w.PollInterval < 100*time.Millisecond {
		w.PollInterval = 100 * time.Millisecond
	}
	if w.GenerationTimeout <= 0 {
		w.GenerationTimeout = 60 * time.Second
	}
}

// ContextConfig controls rubric retrieval for each evaluation.
type ContextConfig struct {
	K           int           `env:"CONTEXT_K"            envDefault:"2"`
	MaxAttempts int           `env:"CONTEXT_MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay  time.Duration `env:"CONTEXT_RETRY_DELAY"  envDefault:"3s"`
}

// Sanitize applies guardrails to context configuration values.
func (c *ContextConfig) Sanitize() {
	if c.K < 1 {
		c.K = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
}

// ReaperConfig contains queue retention configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// Schedule is an optional cron spec that replaces Interval when set.
	Schedule string `env:"REAPER_SCHEDULE"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"24h"`

	// CompletedKeep is how many of the newest completed jobs survive a pass.
	CompletedKeep int `env:"REAPER_COMPLETED_KEEP" envDefault:"1000"`

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	r.Schedule = strings.TrimSpace(r.Schedule)
	if r.CompletedMaxAge < time.Hour {
		r.CompletedMaxAge = time.Hour
	}
	if r.CompletedKeep < 1 {
		r.CompletedKeep = job.DefaultCompletedKeep
	}
	if r.FailedMaxAge < time.Hour {
		r.FailedMaxAge = time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}

// Validate rejects a malformed cron schedule.
func (r ReaperConfig) Validate() error {
	if r.Schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(r.Schedule); err != nil {
		return fmt.Errorf("invalid REAPER_SCHEDULE %q: %w", r.Schedule, err)
	}
	return nil
}

// RetentionPolicy returns the configured retention thresholds.
func (r ReaperConfig) RetentionPolicy() job.RetentionPolicy {
	return job.RetentionPolicy{
		CompletedMaxAge: r.CompletedMaxAge,
		CompletedKeep:   r.CompletedKeep,
		FailedMaxAge:    r.FailedMaxAge,
	}
}
