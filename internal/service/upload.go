package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/google/uuid"

	"github.com/hanifsetyadi/cv-analyzer/internal/core"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	apperrors "github.com/hanifsetyadi/cv-analyzer/internal/errors"
)

// DefaultUploadMaxBytes is the per-file upload limit.
const DefaultUploadMaxBytes int64 = 10 << 20

// PDFContentType is the only accepted upload media type.
const PDFContentType = "application/pdf"

var pdfMagic = []byte("%PDF")

// UploadFile is one multipart part handed to the upload service.
type UploadFile struct {
	Field       string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadServiceOptions groups dependencies for UploadService.
type UploadServiceOptions struct {
	Store    core.DocumentStore // Required
	MaxBytes int64              // Optional: per-file limit (default 10 MiB)
	NewID    func() string      // Optional: correlation id generator
	Logger   *slog.Logger
}

// UploadService validates candidate documents and stores them under a fresh correlation id.
type UploadService struct {
	store    core.DocumentStore
	maxBytes int64
	newID    func() string
	logger   *slog.Logger
}

// NewUploadService constructs an UploadService.
func NewUploadService(opts UploadServiceOptions) (*UploadService, error) {
	if opts.Store == nil {
		return nil, errors.New("document store is required")
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		store:    opts.Store,
		maxBytes: maxBytes,
		newID:    newID,
		logger:   logger.With("component", "upload_service"),
	}, nil
}

// MaxBytes returns the per-file size limit.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// Upload validates both documents and stores them. Either both files are
// stored or neither is.
func (s *UploadService) Upload(ctx context.Context, cv, projectReport *UploadFile) (*model.UploadResult, error) {
	if cv == nil {
		return nil, apperrors.ValidationField("cv", "cv file is required")
	}
	if projectReport == nil {
		return nil, apperrors.ValidationField("projectReport", "projectReport file is required")
	}

	cvBody, err := s.validate(cv)
	if err != nil {
		return nil, err
	}
	prBody, err := s.validate(projectReport)
	if err != nil {
		return nil, err
	}

	id := s.newID()
	if _, err := s.store.Save(ctx, model.DocumentCV, id, cvBody); err != nil {
		s.cleanup(ctx, id, model.DocumentCV)
		return nil, s.saveError(cv.Field, err)
	}
	if _, err := s.store.Save(ctx, model.DocumentProjectReport, id, prBody); err != nil {
		s.cleanup(ctx, id, model.DocumentCV, model.DocumentProjectReport)
		return nil, s.saveError(projectReport.Field, err)
	}

	s.logger.InfoContext(ctx, "documents uploaded", "correlation_id", id)
	return &model.UploadResult{
		CV:            model.DocumentCV.FileName(id),
		ProjectReport: model.DocumentProjectReport.FileName(id),
		UUID:          id,
	}, nil
}

// validate checks type and size and returns a reader positioned at the start of the body.
func (s *UploadService) validate(f *UploadFile) (io.Reader, error) {
	if f.Body == nil {
		return nil, apperrors.ValidationField(f.Field, f.Field+" file is required")
	}
	mediaType, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil || !strings.EqualFold(mediaType, PDFContentType) {
		return nil, apperrors.ValidationField(f.Field, "Only PDF files are allowed")
	}
	if f.Size > s.maxBytes {
		return nil, apperrors.ValidationField(f.Field,
			fmt.Sprintf("%s exceeds the %d byte limit", f.Field, s.maxBytes))
	}

	br := bufio.NewReader(f.Body)
	head, err := br.Peek(len(pdfMagic))
	if err != nil || !bytes.Equal(head, pdfMagic) {
		return nil, apperrors.ValidationField(f.Field, "Only PDF files are allowed")
	}
	return &limitedReader{r: io.LimitReader(br, s.maxBytes+1), max: s.maxBytes, field: f.Field}, nil
}

func (s *UploadService) saveError(field string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("store %s: %w", field, err)
}

func (s *UploadService) cleanup(ctx context.Context, id string, kinds ...model.DocumentKind) {
	for _, kind := range kinds {
		if err := s.store.Remove(ctx, kind, id); err != nil {
			s.logger.WarnContext(ctx, "failed to remove partial upload",
				"correlation_id", id,
				"kind", kind,
				"error", err,
			)
		}
	}
}

// limitedReader fails once more than max bytes are read, so a body whose
// declared size understates its length is still rejected.
type limitedReader struct {
	r     io.Reader
	max   int64
	n     int64
	field string
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		return n, apperrors.ValidationField(l.field, fmt.Sprintf("%s exceeds the %d byte limit", l.field, l.max))
	}
	return n, err
}
