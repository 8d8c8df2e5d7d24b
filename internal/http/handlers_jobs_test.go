package httpx

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hanifsetyadi/cv-analyzer/internal/data"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

func TestListJobs(t *testing.T) {
	t.Run("filters and paginates", func(t *testing.T) {
		api := newTestAPI(t)
		failed := model.JobStateFailed
		api.queue.EXPECT().List(gomock.Any(), model.JobListOptions{Status: &failed, Limit: 10, Offset: 20}).
			Return([]*model.EvaluationJob{{ID: "job-1", Status: model.JobStateFailed}}, nil)

		w := api.do(t, jsonRequest(t, http.MethodGet, "/jobs?status=failed&limit=10&offset=20", nil))
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		jobs, ok := body["jobs"].([]any)
		require.True(t, ok)
		assert.Len(t, jobs, 1)
		assert.InDelta(t, 10, body["limit"], 0)
	})

	t.Run("defaults and clamps", func(t *testing.T) {
		api := newTestAPI(t)
		api.queue.EXPECT().List(gomock.Any(), model.JobListOptions{Limit: maxJobListLimit}).Return(nil, nil)

		w := api.do(t, jsonRequest(t, http.MethodGet, "/jobs?limit=100000", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{}, decodeBody(t, w)["jobs"])
	})

	t.Run("bad status", func(t *testing.T) {
		api := newTestAPI(t)
		w := api.do(t, jsonRequest(t, http.MethodGet, "/jobs?status=exploded", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestJobStats(t *testing.T) {
	api := newTestAPI(t)
	api.queue.EXPECT().Stats(gomock.Any()).Return(&model.JobStats{Waiting: 2, Completed: 5}, nil)

	w := api.do(t, jsonRequest(t, http.MethodGet, "/jobs/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.InDelta(t, 2, body["waiting"], 0)
	assert.InDelta(t, 5, body["completed"], 0)
}

func TestGetJob(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		api := newTestAPI(t)
		api.queue.EXPECT().GetByID(gomock.Any(), "job-1").
			Return(&model.EvaluationJob{ID: "job-1", Status: model.JobStateActive, Attempts: 1}, nil)

		w := api.do(t, jsonRequest(t, http.MethodGet, "/jobs/job-1", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "active", decodeBody(t, w)["status"])
	})

	t.Run("not found", func(t *testing.T) {
		api := newTestAPI(t)
		api.queue.EXPECT().GetByID(gomock.Any(), "job-2").Return(nil, data.ErrJobNotFound)

		w := api.do(t, jsonRequest(t, http.MethodGet, "/jobs/job-2", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("store error hides detail", func(t *testing.T) {
		api := newTestAPI(t)
		api.queue.EXPECT().GetByID(gomock.Any(), "job-3").Return(nil, errors.New("pq: password authentication failed"))

		w := api.do(t, jsonRequest(t, http.MethodGet, "/jobs/job-3", nil))
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "password")
	})
}
