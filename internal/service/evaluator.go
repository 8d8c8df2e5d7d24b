package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanifsetyadi/cv-analyzer/internal/core"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/metrics"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/statsd"
)

// DefaultGenerationTimeout bounds a single generation call.
const DefaultGenerationTimeout = 60 * time.Second

// Pipeline stage names used in logs and metrics.
const (
	StageParse    = "parse"
	StageContext  = "context"
	StageGenerate = "generate"
	StagePersist  = "persist"
)

// ErrNoText indicates a document parsed but held no extractable text.
var ErrNoText = errors.New("document has no extractable text")

// ContextSource supplies rubric context for a job title. Implementations never fail;
// an empty string means no context could be retrieved.
type ContextSource interface {
	GetContext(ctx context.Context, jobTitle string) string
}

// EvaluatorOptions groups dependencies for Evaluator.
type EvaluatorOptions struct {
	Documents         core.DocumentStore    // Required
	Extractor         core.TextExtractor    // Required
	Context           ContextSource         // Required
	Generator         core.Generator        // Required
	Results           core.ResultRepository // Required
	GenerationTimeout time.Duration         // Optional: defaults to 60s
	Logger            *slog.Logger          // Optional
	Metrics           statsd.Sink           // Optional
	Now               func() time.Time      // Optional
}

// Evaluator runs the per-job pipeline: parse, context, generate, persist.
// A run that returns an error has written nothing to the result store.
type Evaluator struct {
	documents core.DocumentStore
	extractor core.TextExtractor
	context   ContextSource
	generator core.Generator
	results   core.ResultRepository
	timeout   time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
	now       func() time.Time
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(opts EvaluatorOptions) (*Evaluator, error) {
	switch {
	case opts.Documents == nil:
		return nil, errors.New("document store is required")
	case opts.Extractor == nil:
		return nil, errors.New("text extractor is required")
	case opts.Context == nil:
		return nil, errors.New("context source is required")
	case opts.Generator == nil:
		return nil, errors.New("generator is required")
	case opts.Results == nil:
		return nil, errors.New("result repository is required")
	}

	timeout := opts.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Evaluator{
		documents: opts.Documents,
		extractor: opts.Extractor,
		context:   opts.Context,
		generator: opts.Generator,
		results:   opts.Results,
		timeout:   timeout,
		logger:    logger.With("component", "evaluator"),
		metrics:   opts.Metrics,
		now:       now,
	}, nil
}

// Evaluate runs the pipeline for job and returns the persisted result.
func (e *Evaluator) Evaluate(ctx context.Context, job *model.EvaluationJob) (*model.EvaluationResult, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	log := e.logger.With("job_id", job.ID, "correlation_id", job.CorrelationID, "attempt", job.Attempts+1)

	docs, err := timed(e, StageParse, func() (model.ParsedDocuments, error) {
		return e.Parse(ctx, job.CorrelationID)
	})
	if err != nil {
		log.WarnContext(ctx, "document parsing failed", "error", err)
		return nil, err
	}

	rubricContext, _ := timed(e, StageContext, func() (string, error) {
		return e.context.GetContext(ctx, job.JobTitle), nil
	})
	if rubricContext == "" {
		log.InfoContext(ctx, "evaluating without rubric context", "job_title", job.JobTitle)
	}

	eval, err := timed(e, StageGenerate, func() (*model.Evaluation, error) {
		return e.generate(ctx, model.GenerationRequest{
			JobTitle:    job.JobTitle,
			Context:     rubricContext,
			CVText:      docs.CV,
			ProjectText: docs.ProjectReport,
		})
	})
	if err != nil {
		log.WarnContext(ctx, "generation failed", "error", err)
		return nil, err
	}

	result := &model.EvaluationResult{
		CorrelationID: job.CorrelationID,
		JobID:         job.ID,
		JobTitle:      job.JobTitle,
		Evaluation:    *eval,
		CreatedAt:     e.now().UTC(),
	}
	_, err = timed(e, StagePersist, func() (struct{}, error) {
		if upErr := e.results.Upsert(ctx, result); upErr != nil {
			return struct{}{}, model.NewPersistenceError("upsert result", upErr)
		}
		return struct{}{}, nil
	})
	if err != nil {
		log.ErrorContext(ctx, "persisting result failed", "error", err)
		return nil, err
	}

	log.InfoContext(ctx, "evaluation persisted",
		"cv_score", result.CVScore,
		"project_score", result.ProjectScore,
	)
	return result, nil
}

// Parse extracts the text of both candidate documents concurrently.
func (e *Evaluator) Parse(ctx context.Context, correlationID string) (model.ParsedDocuments, error) {
	var docs model.ParsedDocuments
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := e.extract(gctx, model.DocumentCV, correlationID)
		docs.CV = text
		return err
	})
	g.Go(func() error {
		text, err := e.extract(gctx, model.DocumentProjectReport, correlationID)
		docs.ProjectReport = text
		return err
	})
	if err := g.Wait(); err != nil {
		return model.ParsedDocuments{}, err
	}
	return docs, nil
}

func (e *Evaluator) extract(ctx context.Context, kind model.DocumentKind, correlationID string) (string, error) {
	op := "read " + kind.FileName(correlationID)
	rc, err := e.documents.Open(ctx, kind, correlationID)
	if err != nil {
		return "", model.NewParseError(op, err)
	}
	defer closeQuietly(rc)

	text, err := e.extractor.ExtractText(ctx, rc)
	if err != nil {
		return "", model.NewParseError(op, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", model.NewParseError(op, ErrNoText)
	}
	return text, nil
}

func (e *Evaluator) generate(ctx context.Context, req model.GenerationRequest) (*model.Evaluation, error) {
	gctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	eval, err := e.generator.Evaluate(gctx, req)
	if err != nil {
		if _, ok := model.KindOf(err); ok {
			return nil, err
		}
		return nil, model.NewGenerationError("generate evaluation", err)
	}
	if err := eval.Normalize(); err != nil {
		return nil, model.NewGenerationError("validate evaluation", err)
	}
	return eval, nil
}

func timed[T any](e *Evaluator, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	metrics.EmitStage(e.metrics, stage, time.Since(start), err)
	return v, err
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
