package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hanifsetyadi/cv-analyzer/internal/core"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/metrics"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/statsd"
)

// Context retrieval defaults.
const (
	DefaultContextK           = 2
	DefaultContextMaxAttempts = 3
	DefaultContextRetryDelay  = 3 * time.Second
)

// ContextAssemblerOptions groups dependencies for ContextAssembler.
type ContextAssemblerOptions struct {
	Embedder    core.Embedder         // Required: query embedding
	Index       core.RubricRepository // Required: rubric similarity search
	K           int                   // Optional: fragments per query (default 2)
	MaxAttempts int                   // Optional: retrieval attempts (default 3)
	RetryDelay  time.Duration         // Optional: fixed delay between attempts (default 3s, negative disables)
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// ContextAssembler retrieves rubric text for a job. Retrieval failures are
// retried with a fixed delay and finally absorbed as an empty context.
// It holds no per-call state and is safe for concurrent use.
type ContextAssembler struct {
	embedder    core.Embedder
	index       core.RubricRepository
	k           int
	maxAttempts int
	delay       time.Duration
	logger      *slog.Logger
	metrics     statsd.Sink
}

// NewContextAssembler constructs a ContextAssembler.
func NewContextAssembler(opts ContextAssemblerOptions) (*ContextAssembler, error) {
	if opts.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if opts.Index == nil {
		return nil, errors.New("rubric index is required")
	}
	a := &ContextAssembler{
		embedder:    opts.Embedder,
		index:       opts.Index,
		k:           opts.K,
		maxAttempts: opts.MaxAttempts,
		delay:       opts.RetryDelay,
		metrics:     opts.Metrics,
	}
	if a.k <= 0 {
		a.k = DefaultContextK
	}
	if a.maxAttempts <= 0 {
		a.maxAttempts = DefaultContextMaxAttempts
	}
	switch {
	case a.delay < 0:
		a.delay = 0
	case a.delay == 0:
		a.delay = DefaultContextRetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a.logger = logger.With("component", "context_assembler")
	return a, nil
}

// QueryFor returns the retrieval query for a job title.
func QueryFor(jobTitle string) string {
	return "eval " + jobTitle
}

// Query builds the ContextQuery the assembler would run for a job title.
func (a *ContextAssembler) Query(jobTitle string) model.ContextQuery {
	return model.ContextQuery{
		QueryText:   QueryFor(jobTitle),
		K:           a.k,
		MaxAttempts: a.maxAttempts,
		Delay:       a.delay,
	}
}

// GetContext returns the rubric context for jobTitle, or "" when every attempt fails.
func (a *ContextAssembler) GetContext(ctx context.Context, jobTitle string) string {
	return a.Retrieve(ctx, a.Query(jobTitle))
}

// Retrieve runs q with bounded retries. It never returns an error: exhausted
// attempts and cancellation both degrade to an empty context.
func (a *ContextAssembler) Retrieve(ctx context.Context, q model.ContextQuery) string {
	if q.MaxAttempts <= 0 {
		q.MaxAttempts = 1
	}
	if q.K <= 0 {
		q.K = a.k
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= q.MaxAttempts; attempt++ {
		attempts = attempt
		text, err := a.retrieveOnce(ctx, q)
		if err == nil {
			return text
		}
		lastErr = err
		a.logger.WarnContext(ctx, "context retrieval attempt failed",
			"query", q.QueryText,
			"attempt", attempt,
			"max_attempts", q.MaxAttempts,
			"error", err,
		)
		if attempt == q.MaxAttempts {
			break
		}
		if !sleepCtx(ctx, q.Delay) {
			break
		}
	}

	a.logger.WarnContext(ctx, "proceeding without rubric context",
		"query", q.QueryText,
		"attempts", attempts,
		"error", lastErr,
	)
	metrics.EmitContextDegraded(a.metrics, attempts)
	return ""
}

func (a *ContextAssembler) retrieveOnce(ctx context.Context, q model.ContextQuery) (string, error) {
	vectors, err := a.embedder.Embed(ctx, []string{q.QueryText})
	if err != nil {
		return "", model.NewRetrievalError("embed query", err)
	}
	if len(vectors) == 0 {
		return "", model.NewRetrievalError("embed query", errors.New("no embedding returned"))
	}
	matches, err := a.index.Search(ctx, vectors[0], q.K)
	if err != nil {
		return "", model.NewRetrievalError("search rubrics", err)
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n"), nil
}

// sleepCtx waits for d or until ctx is done. It reports whether the full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
