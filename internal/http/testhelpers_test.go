package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hanifsetyadi/cv-analyzer/internal/mocks"
	"github.com/hanifsetyadi/cv-analyzer/internal/service"
)

// testAPI wires the router to real services backed by mocked ports.
type testAPI struct {
	handler  http.Handler
	queue    *mocks.MockQueueRepository
	results  *mocks.MockResultRepository
	store    *mocks.MockDocumentStore
	rubrics  *mocks.MockRubricRepository
	embedder *mocks.MockEmbedder
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := &testAPI{
		queue:    mocks.NewMockQueueRepository(ctrl),
		results:  mocks.NewMockResultRepository(ctrl),
		store:    mocks.NewMockDocumentStore(ctrl),
		rubrics:  mocks.NewMockRubricRepository(ctrl),
		embedder: mocks.NewMockEmbedder(ctrl),
	}

	queueSvc, err := service.NewQueueService(service.QueueServiceOptions{
		Repo:         api.queue,
		DefaultLease: 30 * time.Second,
	})
	require.NoError(t, err)
	status, err := service.NewStatusResolver(service.StatusResolverOptions{Queue: api.queue, Results: api.results})
	require.NoError(t, err)
	uploads, err := service.NewUploadService(service.UploadServiceOptions{
		Store:    api.store,
		MaxBytes: 1 << 10,
		NewID:    func() string { return testCorrelationID },
	})
	require.NoError(t, err)
	rubrics, err := service.NewRubricService(service.RubricServiceOptions{Repo: api.rubrics, Embedder: api.embedder})
	require.NoError(t, err)

	api.handler = NewRouter(RouterServices{
		Queue:   queueSvc,
		Status:  status,
		Uploads: uploads,
		Rubrics: rubrics,
	})
	return api
}

const testCorrelationID = "7d0c5a0e-3f5b-4c8e-9a51-2b6f0d1e9c44"

func (a *testAPI) do(t *testing.T, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)
	return w
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(method, path, rd)
	r.Header.Set("Content-Type", "application/json")
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}
