// Package httpx provides the HTTP API for submitting and tracking CV evaluations.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	apperrors "github.com/hanifsetyadi/cv-analyzer/internal/errors"
)

// EvaluationQueue is the queue surface used by the API.
type EvaluationQueue interface {
	Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.EvaluationJob, error)
	GetJob(ctx context.Context, id string) (*model.EvaluationJob, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.EvaluationJob, error)
	Stats(ctx context.Context) (*model.JobStats, error)
}

// StatusService resolves job status across the queue and the result store.
type StatusService interface {
	GetStatus(ctx context.Context, id string) (*model.StatusResponse, error)
}

// EvaluationHandlers serves evaluation submission and status lookups.
type EvaluationHandlers struct {
	Queue  EvaluationQueue
	Status StatusService
	Logger *slog.Logger
}

// Evaluate enqueues an evaluation for an uploaded document pair.
func (h *EvaluationHandlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req model.EnqueueRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Queue.Enqueue(r.Context(), &req)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusAccepted, model.EnqueueResponse{ID: job.ID, Status: model.StatusQueued})
	case apperrors.IsValidation(err):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
	default:
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "enqueue evaluation failed",
				"correlation_id", req.CorrelationID,
				"error", err,
			)
		}
		msg := "failed to queue evaluation"
		if errors.Is(err, model.ErrEnqueue) {
			msg = "evaluation queue unavailable"
		}
		WriteJSON(w, http.StatusInternalServerError, model.EnqueueResponse{
			ID:      req.CorrelationID,
			Status:  model.StatusError,
			Message: msg,
		})
	}
}

// Result reports the status of a job, falling back to the result store once the
// job has left the queue.
func (h *EvaluationHandlers) Result(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("jobId"))
	if id == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     errors.New("job id is required"),
		})
		return
	}

	status, err := h.Status.GetStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	if status.Status == model.StatusNotFound {
		WriteJSON(w, http.StatusNotFound, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}
