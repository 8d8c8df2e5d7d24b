package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	apperrors "github.com/hanifsetyadi/cv-analyzer/internal/errors"
	"github.com/hanifsetyadi/cv-analyzer/internal/mocks"
)

func pdfFile(field, body string) *UploadFile {
	return &UploadFile{
		Field:       field,
		ContentType: PDFContentType,
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func newTestUploadService(t *testing.T, maxBytes int64) (*UploadService, *mocks.MockDocumentStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockDocumentStore(ctrl)
	svc, err := NewUploadService(UploadServiceOptions{
		Store:    store,
		MaxBytes: maxBytes,
		NewID:    func() string { return "11111111-2222-3333-4444-555555555555" },
	})
	require.NoError(t, err)
	return svc, store
}

// drainSave consumes the body like a real store would, surfacing reader errors.
func drainSave(saved map[model.DocumentKind]string) func(context.Context, model.DocumentKind, string, io.Reader) (string, error) {
	return func(_ context.Context, kind model.DocumentKind, id string, r io.Reader) (string, error) {
		b, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		saved[kind] = string(b)
		return kind.FileName(id), nil
	}
}

func TestUploadService_Upload(t *testing.T) {
	ctx := context.Background()
	const id = "11111111-2222-3333-4444-555555555555"

	t.Run("stores both documents", func(t *testing.T) {
		svc, store := newTestUploadService(t, 0)
		saved := map[model.DocumentKind]string{}
		store.EXPECT().Save(gomock.Any(), gomock.Any(), id, gomock.Any()).DoAndReturn(drainSave(saved)).Times(2)

		res, err := svc.Upload(ctx, pdfFile("cv", "%PDF-1.7 cv"), pdfFile("projectReport", "%PDF-1.7 pr"))
		require.NoError(t, err)
		assert.Equal(t, &model.UploadResult{
			CV:            "cv-" + id + ".pdf",
			ProjectReport: "pr-" + id + ".pdf",
			UUID:          id,
		}, res)
		assert.Equal(t, "%PDF-1.7 cv", saved[model.DocumentCV])
		assert.Equal(t, "%PDF-1.7 pr", saved[model.DocumentProjectReport])
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		tests := []struct {
			name  string
			cv    *UploadFile
			pr    *UploadFile
			field string
		}{
			{name: "missing cv", cv: nil, pr: pdfFile("projectReport", "%PDF"), field: "cv"},
			{name: "missing report", cv: pdfFile("cv", "%PDF"), pr: nil, field: "projectReport"},
			{
				name:  "wrong content type",
				cv:    &UploadFile{Field: "cv", ContentType: "image/png", Body: strings.NewReader("%PDF")},
				pr:    pdfFile("projectReport", "%PDF"),
				field: "cv",
			},
			{
				name:  "pdf type without magic",
				cv:    pdfFile("cv", "%PDF"),
				pr:    pdfFile("projectReport", "<html>"),
				field: "projectReport",
			},
			{
				name:  "declared size over limit",
				cv:    &UploadFile{Field: "cv", ContentType: PDFContentType, Size: 1 << 30, Body: strings.NewReader("%PDF")},
				pr:    pdfFile("projectReport", "%PDF"),
				field: "cv",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, _ := newTestUploadService(t, 0)
				_, err := svc.Upload(ctx, tt.cv, tt.pr)
				require.Error(t, err)
				assert.True(t, apperrors.IsValidation(err))
				assert.Equal(t, tt.field, apperrors.GetField(err))
			})
		}
	})

	t.Run("body longer than limit is rejected and cleaned up", func(t *testing.T) {
		svc, store := newTestUploadService(t, 8)
		saved := map[model.DocumentKind]string{}
		store.EXPECT().Save(gomock.Any(), model.DocumentCV, id, gomock.Any()).DoAndReturn(drainSave(saved))
		store.EXPECT().Remove(gomock.Any(), model.DocumentCV, id).Return(nil)

		cv := pdfFile("cv", "%PDF-1.7 this is far too long")
		cv.Size = 4
		_, err := svc.Upload(ctx, cv, pdfFile("projectReport", "%PDF"))
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("second write failure removes both files", func(t *testing.T) {
		svc, store := newTestUploadService(t, 0)
		saved := map[model.DocumentKind]string{}
		store.EXPECT().Save(gomock.Any(), model.DocumentCV, id, gomock.Any()).DoAndReturn(drainSave(saved))
		store.EXPECT().Save(gomock.Any(), model.DocumentProjectReport, id, gomock.Any()).
			Return("", errors.New("disk full"))
		store.EXPECT().Remove(gomock.Any(), model.DocumentCV, id).Return(nil)
		store.EXPECT().Remove(gomock.Any(), model.DocumentProjectReport, id).Return(nil)

		_, err := svc.Upload(ctx, pdfFile("cv", "%PDF cv"), pdfFile("projectReport", "%PDF pr"))
		require.Error(t, err)
		assert.False(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "disk full")
	})
}
