package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	apperrors "github.com/hanifsetyadi/cv-analyzer/internal/errors"
	"github.com/hanifsetyadi/cv-analyzer/internal/service"
)

const (
	formFieldCV            = "cv"
	formFieldProjectReport = "projectReport"
	// multipartMemory is how much of a form is buffered in memory before spilling to temp files.
	multipartMemory = 8 << 20
	// multipartOverhead allows for boundaries and part headers beyond the two files.
	multipartOverhead = 1 << 20
)

// Uploader stores a validated document pair.
type Uploader interface {
	Upload(ctx context.Context, cv, projectReport *service.UploadFile) (*model.UploadResult, error)
	MaxBytes() int64
}

// UploadHandlers serves candidate document uploads.
type UploadHandlers struct {
	Svc    Uploader
	Logger *slog.Logger
}

type uploadResponse struct {
	Message string              `json:"message"`
	Data    *model.UploadResult `json:"data"`
}

// Upload accepts a multipart form with cv and projectReport PDF parts.
func (h *UploadHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	limit := 2*h.Svc.MaxBytes() + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "file_too_large",
				Err:     fmt.Errorf("upload exceeds %d bytes", limit),
			})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	cv, closeCV := formFile(r, formFieldCV)
	defer closeCV()
	pr, closePR := formFile(r, formFieldProjectReport)
	defer closePR()

	res, err := h.Svc.Upload(r.Context(), cv, pr)
	if err != nil {
		if apperrors.IsValidation(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
			return
		}
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, uploadResponse{Message: "Files uploaded successfully", Data: res})
}

// formFile returns nil when the part is absent so the service reports which field is missing.
func formFile(r *http.Request, field string) (*service.UploadFile, func()) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, func() {}
	}
	return &service.UploadFile{
		Field:       field,
		ContentType: partContentType(hdr),
		Size:        hdr.Size,
		Body:        f,
	}, func() { _ = f.Close() }
}

func partContentType(hdr *multipart.FileHeader) string {
	if hdr == nil {
		return ""
	}
	return hdr.Header.Get("Content-Type")
}
