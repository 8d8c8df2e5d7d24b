package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hanifsetyadi/cv-analyzer/internal/core"
	"github.com/hanifsetyadi/cv-analyzer/internal/data"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

// StatusResolverOptions groups dependencies for StatusResolver.
type StatusResolverOptions struct {
	Queue   core.QueueRepository  // Required
	Results core.ResultRepository // Required
	Logger  *slog.Logger
}

// StatusResolver answers job status queries. The queue is authoritative while
// it still holds the job; after eviction the result store answers.
type StatusResolver struct {
	queue   core.QueueRepository
	results core.ResultRepository
	logger  *slog.Logger
}

// NewStatusResolver constructs a StatusResolver.
func NewStatusResolver(opts StatusResolverOptions) (*StatusResolver, error) {
	if opts.Queue == nil {
		return nil, errors.New("queue repository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("result repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusResolver{
		queue:   opts.Queue,
		results: opts.Results,
		logger:  logger.With("component", "status_resolver"),
	}, nil
}

// GetStatus resolves id against the queue, then the result store. Unknown ids
// yield StatusNotFound with a nil error; an error means a store could not be read.
func (r *StatusResolver) GetStatus(ctx context.Context, id string) (*model.StatusResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return &model.StatusResponse{ID: id, Status: model.StatusNotFound}, nil
	}

	job, err := r.queue.GetByID(ctx, id)
	switch {
	case err == nil:
		return fromJob(job), nil
	case errors.Is(err, data.ErrJobNotFound):
	default:
		return nil, fmt.Errorf("lookup queue job %s: %w", id, err)
	}

	res, err := r.results.Get(ctx, id)
	switch {
	case err == nil:
		return fromResult(id, res)
	case errors.Is(err, data.ErrResultNotFound):
		r.logger.DebugContext(ctx, "status not found in either store", "id", id)
		return &model.StatusResponse{ID: id, Status: model.StatusNotFound}, nil
	default:
		return nil, fmt.Errorf("lookup result %s: %w", id, err)
	}
}

func fromJob(job *model.EvaluationJob) *model.StatusResponse {
	resp := &model.StatusResponse{
		ID:       job.ID,
		Status:   model.ResolvedStatusFor(job.Status),
		Attempts: job.Attempts,
	}
	switch job.Status {
	case model.JobStateCompleted:
		resp.Result = job.Result
		resp.CompletedAt = job.CompletedAt
	case model.JobStateFailed:
		if job.LastError != nil {
			resp.Error = *job.LastError
		}
		resp.FailedAt = job.FailedAt
	case model.JobStateWaiting, model.JobStateActive, model.JobStateDelayed:
	}
	return resp
}

func fromResult(id string, res *model.EvaluationResult) (*model.StatusResponse, error) {
	payload, err := json.Marshal(res.Evaluation)
	if err != nil {
		return nil, fmt.Errorf("encode result %s: %w", id, err)
	}
	completedAt := res.CreatedAt
	return &model.StatusResponse{
		ID:          id,
		Status:      model.StatusCompleted,
		Result:      payload,
		CompletedAt: &completedAt,
		Source:      model.StatusSourceDatabase,
	}, nil
}
