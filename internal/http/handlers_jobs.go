package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hanifsetyadi/cv-analyzer/internal/data"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	apperrors "github.com/hanifsetyadi/cv-analyzer/internal/errors"
)

const (
	defaultJobListLimit = 50
	maxJobListLimit     = 500
)

// JobHandlers exposes read-only views of the evaluation queue.
type JobHandlers struct {
	Queue  EvaluationQueue
	Logger *slog.Logger
}

// List returns queue jobs, newest first, optionally filtered by ?status=.
func (h *JobHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultJobListLimit, maxJobListLimit)
	opts := model.JobListOptions{Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		var st model.JobState
		if err := st.UnmarshalText([]byte(raw)); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_status", Err: err})
			return
		}
		opts.Status = &st
	}

	jobs, err := h.Queue.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	if jobs == nil {
		jobs = []*model.EvaluationJob{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// Stats returns job counts per state.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Queue.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// Get returns the raw queue record for a job.
func (h *JobHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := h.Queue.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			err = apperrors.NotFoundf("job %s not found", id)
		}
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}
