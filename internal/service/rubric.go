package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hanifsetyadi/cv-analyzer/internal/core"
	"github.com/hanifsetyadi/cv-analyzer/internal/data"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	apperrors "github.com/hanifsetyadi/cv-analyzer/internal/errors"
)

// RubricServiceOptions groups dependencies for RubricService.
type RubricServiceOptions struct {
	Repo     core.RubricRepository // Required
	Embedder core.Embedder         // Required
	Logger   *slog.Logger
}

// RubricService ingests rubric documents into the retrieval index.
type RubricService struct {
	repo     core.RubricRepository
	embedder core.Embedder
	logger   *slog.Logger
}

// NewRubricService constructs a RubricService.
func NewRubricService(opts RubricServiceOptions) (*RubricService, error) {
	if opts.Repo == nil {
		return nil, errors.New("RubricRepository is required")
	}
	if opts.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RubricService{
		repo:     opts.Repo,
		embedder: opts.Embedder,
		logger:   logger.With("component", "rubric_service"),
	}, nil
}

// Create embeds and stores the three rubric documents for a job title.
// It fails with a conflict if the title already has a rubric.
func (s *RubricService) Create(ctx context.Context, req *model.CreateRubricRequest) ([]model.RubricDocument, error) {
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	docs := req.Documents()
	title := docs[0].JobTitle

	exists, err := s.repo.ExistsForTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("check rubric %q: %w", title, err)
	}
	if exists {
		return nil, apperrors.Conflictf("rubric for job title %q already exists", title)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, apperrors.Wrap(model.NewRetrievalError("embed rubrics", err),
			apperrors.ErrCodeUnavailable, "embedding service unavailable")
	}
	if len(vectors) != len(docs) {
		return nil, apperrors.Internal(fmt.Sprintf("embedder returned %d vectors for %d documents", len(vectors), len(docs)))
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}

	if err := s.repo.InsertSet(ctx, docs); err != nil {
		if errors.Is(err, data.ErrRubricExists) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeConflict,
				fmt.Sprintf("rubric for job title %q already exists", title))
		}
		return nil, fmt.Errorf("store rubrics %q: %w", title, err)
	}

	s.logger.InfoContext(ctx, "rubric indexed", "job_title", title, "documents", len(docs))
	return docs, nil
}
