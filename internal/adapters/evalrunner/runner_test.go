package evalrunner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	"github.com/hanifsetyadi/cv-analyzer/internal/testutil"
)

type fakeQueue struct {
	mu         sync.Mutex
	pending    []*model.EvaluationJob
	claimErr   error
	alive      bool
	hbErr      error
	heartbeats int
	claims     []string // claim ids presented by Heartbeat, Complete and Fail
	completed  map[string]json.RawMessage
	failed     map[string]string
	reportErrs []error // ctx.Err() observed by Complete/Fail
	outcome    model.FailOutcome
}

func newFakeQueue(jobs ...*model.EvaluationJob) *fakeQueue {
	return &fakeQueue{
		pending:   jobs,
		alive:     true,
		completed: map[string]json.RawMessage{},
		failed:    map[string]string{},
		outcome:   model.FailOutcome{Status: model.JobStateDelayed, Attempts: 1},
	}
}

func (q *fakeQueue) ClaimNext(context.Context, time.Duration) (*model.EvaluationJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	if len(q.pending) == 0 {
		return nil, model.ErrNoJobsAvailable
	}
	j := q.pending[0]
	q.pending = q.pending[1:]
	return j, nil
}

func (q *fakeQueue) Subscribe() (func(), <-chan struct{}) {
	return func() {}, make(chan struct{})
}

func (q *fakeQueue) Heartbeat(_ context.Context, _, claimID string, _ time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heartbeats++
	q.claims = append(q.claims, claimID)
	if q.hbErr != nil {
		return false, q.hbErr
	}
	return q.alive, nil
}

func (q *fakeQueue) Complete(ctx context.Context, id, claimID string, result json.RawMessage) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.claims = append(q.claims, claimID)
	q.completed[id] = result
	q.reportErrs = append(q.reportErrs, ctx.Err())
	return true, nil
}

func (q *fakeQueue) Fail(ctx context.Context, id, claimID, msg string) (*model.FailOutcome, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.claims = append(q.claims, claimID)
	q.failed[id] = msg
	q.reportErrs = append(q.reportErrs, ctx.Err())
	out := q.outcome
	return &out, nil
}

func (q *fakeQueue) snapshot() (map[string]json.RawMessage, map[string]string, []error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c := make(map[string]json.RawMessage, len(q.completed))
	for k, v := range q.completed {
		c[k] = v
	}
	f := make(map[string]string, len(q.failed))
	for k, v := range q.failed {
		f[k] = v
	}
	return c, f, append([]error(nil), q.reportErrs...)
}

type pipelineFunc func(ctx context.Context, job *model.EvaluationJob) (*model.EvaluationResult, error)

func (f pipelineFunc) Evaluate(ctx context.Context, job *model.EvaluationJob) (*model.EvaluationResult, error) {
	return f(ctx, job)
}

func evalJob(id string) *model.EvaluationJob {
	return &model.EvaluationJob{
		ID:            id,
		CorrelationID: "corr-" + id,
		ClaimID:       "claim-" + id,
		JobTitle:      "Backend Engineer",
		Status:        model.JobStateActive,
		MaxAttempts:   3,
	}
}

type runHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// stop cancels the runner and returns Run's error. Safe to call more than once.
func (h *runHandle) stop() error {
	h.cancel()
	<-h.done
	return h.err
}

func startRunner(t *testing.T, opts RunnerOptions) *runHandle {
	t.Helper()
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	r, err := NewRunner(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &runHandle{cancel: cancel, done: make(chan struct{})}
	go func() {
		h.err = r.Run(ctx)
		close(h.done)
	}()
	t.Cleanup(func() { _ = h.stop() })
	return h
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(RunnerOptions{Pipeline: pipelineFunc(nil)})
	require.Error(t, err)
	_, err = NewRunner(RunnerOptions{Queue: newFakeQueue()})
	require.Error(t, err)

	r, err := NewRunner(RunnerOptions{Queue: newFakeQueue(), Pipeline: pipelineFunc(nil), Lease: 30 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, r.heartbeat)
	assert.Equal(t, 1, r.workers)
}

func TestRunner_CompletesJob(t *testing.T) {
	q := newFakeQueue(evalJob("j1"))
	eval := testutil.SampleEvaluation()
	startRunner(t, RunnerOptions{
		Queue: q,
		Pipeline: pipelineFunc(func(_ context.Context, job *model.EvaluationJob) (*model.EvaluationResult, error) {
			return &model.EvaluationResult{
				CorrelationID: job.CorrelationID,
				JobID:         job.ID,
				JobTitle:      job.JobTitle,
				Evaluation:    eval,
			}, nil
		}),
	})

	require.Eventually(t, func() bool {
		c, _, _ := q.snapshot()
		return len(c) == 1
	}, 2*time.Second, 10*time.Millisecond)

	completed, failed, _ := q.snapshot()
	assert.Empty(t, failed)
	var got model.Evaluation
	require.NoError(t, json.Unmarshal(completed["j1"], &got))
	assert.Equal(t, eval, got)
}

func TestRunner_ReportsFailure(t *testing.T) {
	q := newFakeQueue(evalJob("j1"))
	startRunner(t, RunnerOptions{
		Queue: q,
		Pipeline: pipelineFunc(func(context.Context, *model.EvaluationJob) (*model.EvaluationResult, error) {
			return nil, model.NewGenerationError("generate content", errors.New("quota exceeded"))
		}),
	})

	require.Eventually(t, func() bool {
		_, f, _ := q.snapshot()
		return len(f) == 1
	}, 2*time.Second, 10*time.Millisecond)

	completed, failed, _ := q.snapshot()
	assert.Empty(t, completed)
	assert.Contains(t, failed["j1"], "quota exceeded")
}

func TestRunner_ConcurrentWorkersDrainQueue(t *testing.T) {
	jobs := []*model.EvaluationJob{evalJob("a"), evalJob("b"), evalJob("c"), evalJob("d")}
	q := newFakeQueue(jobs...)
	startRunner(t, RunnerOptions{
		Queue:       q,
		Concurrency: 3,
		Pipeline: pipelineFunc(func(_ context.Context, job *model.EvaluationJob) (*model.EvaluationResult, error) {
			return &model.EvaluationResult{JobID: job.ID, Evaluation: testutil.SampleEvaluation()}, nil
		}),
	})

	require.Eventually(t, func() bool {
		c, _, _ := q.snapshot()
		return len(c) == len(jobs)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunner_LeaseLostCancelsWithoutReporting(t *testing.T) {
	q := newFakeQueue(evalJob("j1"))
	q.alive = false
	causes := make(chan error, 1)
	startRunner(t, RunnerOptions{
		Queue:             q,
		Lease:             time.Second,
		HeartbeatInterval: 20 * time.Millisecond,
		Pipeline: pipelineFunc(func(ctx context.Context, _ *model.EvaluationJob) (*model.EvaluationResult, error) {
			<-ctx.Done()
			causes <- context.Cause(ctx)
			return nil, ctx.Err()
		}),
	})

	select {
	case cause := <-causes:
		assert.ErrorIs(t, cause, errLeaseLost)
	case <-time.After(2 * time.Second):
		t.Fatal("evaluation was not cancelled after losing its lease")
	}

	// Give the worker a moment to (not) report.
	time.Sleep(50 * time.Millisecond)
	completed, failed, _ := q.snapshot()
	assert.Empty(t, completed)
	assert.Empty(t, failed)
}

func TestRunner_FailingHeartbeatsPastLeaseCancel(t *testing.T) {
	q := newFakeQueue(evalJob("j1"))
	q.hbErr = errors.New("connection refused")
	causes := make(chan error, 1)
	startRunner(t, RunnerOptions{
		Queue:             q,
		Lease:             100 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
		Pipeline: pipelineFunc(func(ctx context.Context, _ *model.EvaluationJob) (*model.EvaluationResult, error) {
			<-ctx.Done()
			causes <- context.Cause(ctx)
			return nil, ctx.Err()
		}),
	})

	select {
	case cause := <-causes:
		assert.ErrorIs(t, cause, errLeaseLost)
	case <-time.After(2 * time.Second):
		t.Fatal("evaluation kept running after its lease ran out")
	}

	time.Sleep(50 * time.Millisecond)
	completed, failed, _ := q.snapshot()
	assert.Empty(t, completed)
	assert.Empty(t, failed)
}

func TestRunner_PresentsClaimID(t *testing.T) {
	q := newFakeQueue(evalJob("j1"))
	release := make(chan struct{})
	startRunner(t, RunnerOptions{
		Queue:             q,
		Lease:             time.Second,
		HeartbeatInterval: 10 * time.Millisecond,
		Pipeline: pipelineFunc(func(_ context.Context, job *model.EvaluationJob) (*model.EvaluationResult, error) {
			<-release
			return &model.EvaluationResult{JobID: job.ID, Evaluation: testutil.SampleEvaluation()}, nil
		}),
	})

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.heartbeats > 0
	}, 2*time.Second, 5*time.Millisecond)
	close(release)

	require.Eventually(t, func() bool {
		c, _, _ := q.snapshot()
		return len(c) == 1
	}, 2*time.Second, 10*time.Millisecond)

	q.mu.Lock()
	defer q.mu.Unlock()
	require.NotEmpty(t, q.claims)
	for _, c := range q.claims {
		assert.Equal(t, "claim-j1", c)
	}
}

func TestRunner_ShutdownReportsInterruptedAttempt(t *testing.T) {
	q := newFakeQueue(evalJob("j1"))
	started := make(chan struct{})
	h := startRunner(t, RunnerOptions{
		Queue: q,
		Pipeline: pipelineFunc(func(ctx context.Context, _ *model.EvaluationJob) (*model.EvaluationResult, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})

	<-started
	assert.ErrorIs(t, h.stop(), context.Canceled)

	_, failed, reportErrs := q.snapshot()
	assert.Contains(t, failed["j1"], context.Canceled.Error())
	require.Len(t, reportErrs, 1)
	assert.NoError(t, reportErrs[0], "report must not inherit the cancelled context")
}

func TestRunner_ClaimErrorDoesNotStopWorker(t *testing.T) {
	q := newFakeQueue(evalJob("j1"))
	q.claimErr = errors.New("connection refused")
	startRunner(t, RunnerOptions{
		Queue: q,
		Pipeline: pipelineFunc(func(_ context.Context, job *model.EvaluationJob) (*model.EvaluationResult, error) {
			return &model.EvaluationResult{JobID: job.ID, Evaluation: testutil.SampleEvaluation()}, nil
		}),
	})

	time.Sleep(30 * time.Millisecond)
	q.mu.Lock()
	q.claimErr = nil
	q.mu.Unlock()

	require.Eventually(t, func() bool {
		c, _, _ := q.snapshot()
		return len(c) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
