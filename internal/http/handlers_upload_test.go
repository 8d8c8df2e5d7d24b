package httpx

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

type formPart struct {
	field, contentType, body string
}

func multipartRequest(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.field+`.pdf"`)
		h.Set("Content-Type", p.contentType)
		pw, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(pw, p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestUpload(t *testing.T) {
	t.Run("stores both files", func(t *testing.T) {
		api := newTestAPI(t)
		api.store.EXPECT().Save(gomock.Any(), gomock.Any(), testCorrelationID, gomock.Any()).
			DoAndReturn(func(_ context.Context, kind model.DocumentKind, id string, r io.Reader) (string, error) {
				_, err := io.Copy(io.Discard, r)
				return kind.FileName(id), err
			}).Times(2)

		w := api.do(t, multipartRequest(t,
			formPart{"cv", "application/pdf", "%PDF-1.7 cv"},
			formPart{"projectReport", "application/pdf", "%PDF-1.7 report"},
		))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Equal(t, "Files uploaded successfully", body["message"])
		assert.Equal(t, map[string]any{
			"cv":            "cv-" + testCorrelationID + ".pdf",
			"projectReport": "pr-" + testCorrelationID + ".pdf",
			"uuid":          testCorrelationID,
		}, body["data"])
	})

	t.Run("missing part", func(t *testing.T) {
		api := newTestAPI(t)
		w := api.do(t, multipartRequest(t, formPart{"cv", "application/pdf", "%PDF"}))
		require.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "validation_failed", body["error"])
		assert.Contains(t, body["message"], "projectReport")
	})

	t.Run("non pdf", func(t *testing.T) {
		api := newTestAPI(t)
		w := api.do(t, multipartRequest(t,
			formPart{"cv", "image/png", "\x89PNG"},
			formPart{"projectReport", "application/pdf", "%PDF"},
		))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Only PDF files are allowed", decodeBody(t, w)["message"])
	})

	t.Run("request larger than both files allow", func(t *testing.T) {
		api := newTestAPI(t)
		huge := "%PDF" + strings.Repeat("x", 4<<20)
		w := api.do(t, multipartRequest(t,
			formPart{"cv", "application/pdf", huge},
			formPart{"projectReport", "application/pdf", "%PDF"},
		))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "file_too_large", decodeBody(t, w)["error"])
	})

	t.Run("not multipart", func(t *testing.T) {
		api := newTestAPI(t)
		w := api.do(t, jsonRequest(t, http.MethodPost, "/upload", `{}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
