package httpx

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hanifsetyadi/cv-analyzer/internal/data"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	"github.com/hanifsetyadi/cv-analyzer/internal/testutil"
)

func TestEvaluate(t *testing.T) {
	t.Run("queues the job", func(t *testing.T) {
		api := newTestAPI(t)
		api.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, req *model.EnqueueRequest) (*model.EvaluationJob, error) {
				assert.Equal(t, "abc-123", req.CorrelationID)
				assert.Equal(t, "Backend Engineer", req.JobTitle)
				return &model.EvaluationJob{ID: "job-1", CorrelationID: req.CorrelationID, Status: model.JobStateWaiting}, nil
			})

		w := api.do(t, jsonRequest(t, http.MethodPost, "/evaluate", map[string]string{
			"id":       "abc-123",
			"jobTitle": "Backend Engineer",
		}))
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, map[string]any{"id": "job-1", "status": "queued"}, decodeBody(t, w))
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})

	t.Run("missing fields", func(t *testing.T) {
		for _, body := range []string{`{"id":"abc"}`, `{"jobTitle":"Backend Engineer"}`, `{"id":" ","jobTitle":"x"}`} {
			api := newTestAPI(t)
			w := api.do(t, jsonRequest(t, http.MethodPost, "/evaluate", body))
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		api := newTestAPI(t)
		w := api.do(t, jsonRequest(t, http.MethodPost, "/evaluate", `{"id":`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_json", decodeBody(t, w)["error"])
	})

	t.Run("queue unavailable", func(t *testing.T) {
		api := newTestAPI(t)
		api.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil, errors.New("dial tcp: connection refused"))

		w := api.do(t, jsonRequest(t, http.MethodPost, "/evaluate", map[string]string{
			"id":       "abc-123",
			"jobTitle": "Backend Engineer",
		}))
		require.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "abc-123", body["id"])
		assert.Equal(t, "error", body["status"])
		assert.NotEmpty(t, body["message"])
		assert.NotContains(t, body["message"], "connection refused")
	})
}

func TestResult(t *testing.T) {
	t.Run("queued job", func(t *testing.T) {
		api := newTestAPI(t)
		api.queue.EXPECT().GetByID(gomock.Any(), "job-1").
			Return(&model.EvaluationJob{ID: "job-1", Status: model.JobStateWaiting}, nil)

		w := api.do(t, jsonRequest(t, http.MethodGet, "/result/job-1", nil))
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "job-1", body["id"])
		assert.Equal(t, "queued", body["status"])
	})

	t.Run("evicted job served from result store", func(t *testing.T) {
		api := newTestAPI(t)
		api.queue.EXPECT().GetByID(gomock.Any(), "abc-123").Return(nil, data.ErrJobNotFound)
		api.results.EXPECT().Get(gomock.Any(), "abc-123").Return(&model.EvaluationResult{
			CorrelationID: "abc-123",
			JobID:         "job-1",
			Evaluation:    testutil.SampleEvaluation(),
			CreatedAt:     testutil.TestTime(),
		}, nil)

		w := api.do(t, jsonRequest(t, http.MethodGet, "/result/abc-123", nil))
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "completed", body["status"])
		assert.Equal(t, "database", body["source"])
		result, ok := body["result"].(map[string]any)
		require.True(t, ok)
		assert.InDelta(t, 0.82, result["cvScore"], 1e-9)
		assert.Equal(t, testutil.TestTime().Format(time.RFC3339), body["completedAt"])
	})

	t.Run("unknown id", func(t *testing.T) {
		api := newTestAPI(t)
		api.queue.EXPECT().GetByID(gomock.Any(), "nope").Return(nil, data.ErrJobNotFound)
		api.results.EXPECT().Get(gomock.Any(), "nope").Return(nil, data.ErrResultNotFound)

		w := api.do(t, jsonRequest(t, http.MethodGet, "/result/nope", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, map[string]any{"id": "nope", "status": "not_found"}, decodeBody(t, w))
	})

	t.Run("store outage", func(t *testing.T) {
		api := newTestAPI(t)
		api.queue.EXPECT().GetByID(gomock.Any(), "job-1").Return(nil, errors.New("connection reset"))

		w := api.do(t, jsonRequest(t, http.MethodGet, "/result/job-1", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
