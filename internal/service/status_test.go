package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hanifsetyadi/cv-analyzer/internal/data"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	"github.com/hanifsetyadi/cv-analyzer/internal/mocks"
	"github.com/hanifsetyadi/cv-analyzer/internal/testutil"
)

func newTestResolver(t *testing.T) (*StatusResolver, *mocks.MockQueueRepository, *mocks.MockResultRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	queue := mocks.NewMockQueueRepository(ctrl)
	results := mocks.NewMockResultRepository(ctrl)
	r, err := NewStatusResolver(StatusResolverOptions{Queue: queue, Results: results})
	require.NoError(t, err)
	return r, queue, results
}

func TestStatusResolver_QueueStates(t *testing.T) {
	ctx := context.Background()
	completedAt := testutil.TimePtr(testutil.TestTime())
	payload := json.RawMessage(`{"cvScore":0.82}`)

	tests := []struct {
		name  string
		job   model.EvaluationJob
		check func(t *testing.T, resp *model.StatusResponse)
	}{
		{
			name: "waiting is queued",
			job:  model.EvaluationJob{ID: "j", Status: model.JobStateWaiting},
			check: func(t *testing.T, resp *model.StatusResponse) {
				assert.Equal(t, model.StatusQueued, resp.Status)
			},
		},
		{
			name: "delayed is queued",
			job:  model.EvaluationJob{ID: "j", Status: model.JobStateDelayed, Attempts: 1},
			check: func(t *testing.T, resp *model.StatusResponse) {
				assert.Equal(t, model.StatusQueued, resp.Status)
				assert.Equal(t, 1, resp.Attempts)
			},
		},
		{
			name: "active",
			job:  model.EvaluationJob{ID: "j", Status: model.JobStateActive},
			check: func(t *testing.T, resp *model.StatusResponse) {
				assert.Equal(t, model.StatusActive, resp.Status)
				assert.Nil(t, resp.Result)
			},
		},
		{
			name: "completed carries result",
			job: model.EvaluationJob{
				ID: "j", Status: model.JobStateCompleted, Result: payload, CompletedAt: completedAt,
			},
			check: func(t *testing.T, resp *model.StatusResponse) {
				assert.Equal(t, model.StatusCompleted, resp.Status)
				assert.JSONEq(t, string(payload), string(resp.Result))
				assert.Equal(t, completedAt, resp.CompletedAt)
				assert.Empty(t, resp.Source)
			},
		},
		{
			name: "failed carries error",
			job: model.EvaluationJob{
				ID: "j", Status: model.JobStateFailed, LastError: testutil.StringPtr("generation error: quota"),
				FailedAt: completedAt,
			},
			check: func(t *testing.T, resp *model.StatusResponse) {
				assert.Equal(t, model.StatusFailed, resp.Status)
				assert.Equal(t, "generation error: quota", resp.Error)
				assert.Equal(t, completedAt, resp.FailedAt)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, queue, _ := newTestResolver(t)
			job := tt.job
			queue.EXPECT().GetByID(gomock.Any(), "j").Return(&job, nil)

			resp, err := r.GetStatus(ctx, "j")
			require.NoError(t, err)
			assert.Equal(t, "j", resp.ID)
			tt.check(t, resp)
		})
	}
}

func TestStatusResolver_FallsBackToResultStore(t *testing.T) {
	ctx := context.Background()

	t.Run("result only resolves completed from database", func(t *testing.T) {
		r, queue, results := newTestResolver(t)
		queue.EXPECT().GetByID(gomock.Any(), "abc-123").Return(nil, data.ErrJobNotFound)
		results.EXPECT().Get(gomock.Any(), "abc-123").Return(&model.EvaluationResult{
			CorrelationID: "abc-123",
			JobID:         "job-1",
			Evaluation:    testutil.SampleEvaluation(),
			CreatedAt:     testutil.TestTime(),
		}, nil)

		resp, err := r.GetStatus(ctx, "abc-123")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, resp.Status)
		assert.Equal(t, model.StatusSourceDatabase, resp.Source)
		require.NotNil(t, resp.CompletedAt)
		assert.Equal(t, testutil.TestTime(), *resp.CompletedAt)

		var eval model.Evaluation
		require.NoError(t, json.Unmarshal(resp.Result, &eval))
		assert.Equal(t, testutil.SampleEvaluation(), eval)
	})

	t.Run("unknown id is not found after both stores", func(t *testing.T) {
		r, queue, results := newTestResolver(t)
		queue.EXPECT().GetByID(gomock.Any(), "nope").Return(nil, data.ErrJobNotFound)
		results.EXPECT().Get(gomock.Any(), "nope").Return(nil, data.ErrResultNotFound)

		resp, err := r.GetStatus(ctx, "nope")
		require.NoError(t, err)
		assert.Equal(t, model.StatusNotFound, resp.Status)
	})

	t.Run("queue outage is an error, not not_found", func(t *testing.T) {
		r, queue, _ := newTestResolver(t)
		queue.EXPECT().GetByID(gomock.Any(), "j").Return(nil, errors.New("connection reset"))

		_, err := r.GetStatus(ctx, "j")
		require.Error(t, err)
	})

	t.Run("result store outage is an error", func(t *testing.T) {
		r, queue, results := newTestResolver(t)
		queue.EXPECT().GetByID(gomock.Any(), "j").Return(nil, data.ErrJobNotFound)
		results.EXPECT().Get(gomock.Any(), "j").Return(nil, errors.New("timeout"))

		_, err := r.GetStatus(ctx, "j")
		require.Error(t, err)
	})
}
