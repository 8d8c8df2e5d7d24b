package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

// RubricCreator indexes rubric documents.
type RubricCreator interface {
	Create(ctx context.Context, req *model.CreateRubricRequest) ([]model.RubricDocument, error)
}

// RubricHandlers serves rubric ingestion.
type RubricHandlers struct {
	Svc    RubricCreator
	Logger *slog.Logger
}

type rubricResponse struct {
	JobTitle  string                 `json:"jobTitle"`
	Documents []model.RubricDocument `json:"documents"`
}

// Create embeds and stores the rubric set for a job title.
func (h *RubricHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRubricRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	docs, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, rubricResponse{JobTitle: docs[0].JobTitle, Documents: docs})
}
