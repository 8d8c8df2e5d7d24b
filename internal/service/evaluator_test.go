package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	"github.com/hanifsetyadi/cv-analyzer/internal/mocks"
	"github.com/hanifsetyadi/cv-analyzer/internal/testutil"
)

type staticContext struct {
	text  string
	calls int
}

func (s *staticContext) GetContext(context.Context, string) string {
	s.calls++
	return s.text
}

type evaluatorFixture struct {
	docs      *mocks.MockDocumentStore
	extractor *mocks.MockTextExtractor
	generator *mocks.MockGenerator
	results   *mocks.MockResultRepository
	context   *staticContext
	sink      *recordingSink
	eval      *Evaluator
}

func newEvaluatorFixture(t *testing.T) *evaluatorFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &evaluatorFixture{
		docs:      mocks.NewMockDocumentStore(ctrl),
		extractor: mocks.NewMockTextExtractor(ctrl),
		generator: mocks.NewMockGenerator(ctrl),
		results:   mocks.NewMockResultRepository(ctrl),
		context:   &staticContext{text: "CV rubric\nJob description"},
		sink:      &recordingSink{},
	}
	var err error
	f.eval, err = NewEvaluator(EvaluatorOptions{
		Documents:         f.docs,
		Extractor:         f.extractor,
		Context:           f.context,
		Generator:         f.generator,
		Results:           f.results,
		GenerationTimeout: time.Second,
		Metrics:           f.sink,
		Now:               testutil.TestTime,
	})
	require.NoError(t, err)
	return f
}

// expectDocuments serves "<kind> text" for both documents.
func (f *evaluatorFixture) expectDocuments(correlationID string) {
	f.docs.EXPECT().Open(gomock.Any(), gomock.Any(), correlationID).
		DoAndReturn(func(_ context.Context, kind model.DocumentKind, _ string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(string(kind) + " text")), nil
		}).Times(2)
	f.extractor.EXPECT().ExtractText(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r io.Reader) (string, error) {
			b, err := io.ReadAll(r)
			return string(b), err
		}).Times(2)
}

func sampleJob() *model.EvaluationJob {
	return &model.EvaluationJob{
		ID:            "job-1",
		CorrelationID: "abc-123",
		JobTitle:      "Backend Engineer",
		Status:        model.JobStateActive,
		MaxAttempts:   3,
	}
}

func TestNewEvaluator_RequiresDependencies(t *testing.T) {
	_, err := NewEvaluator(EvaluatorOptions{})
	require.Error(t, err)
}

func TestEvaluator_Evaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("success persists once", func(t *testing.T) {
		f := newEvaluatorFixture(t)
		f.expectDocuments("abc-123")

		sample := testutil.SampleEvaluation()
		sample.CVScore = 0.8249
		f.generator.EXPECT().Evaluate(gomock.Any(), model.GenerationRequest{
			JobTitle:    "Backend Engineer",
			Context:     "CV rubric\nJob description",
			CVText:      "cv text",
			ProjectText: "pr text",
		}).Return(&sample, nil)
		f.results.EXPECT().Upsert(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, res *model.EvaluationResult) error {
				assert.Equal(t, "abc-123", res.CorrelationID)
				assert.Equal(t, "job-1", res.JobID)
				assert.Equal(t, testutil.TestTime(), res.CreatedAt)
				return nil
			}).Times(1)

		res, err := f.eval.Evaluate(ctx, sampleJob())
		require.NoError(t, err)
		assert.InDelta(t, 0.82, res.CVScore, 1e-9)
		assert.Equal(t, 1, f.context.calls)
		assert.Len(t, f.sink.named("pipeline.stage"), 4)
	})

	t.Run("empty context is allowed", func(t *testing.T) {
		f := newEvaluatorFixture(t)
		f.context.text = ""
		f.expectDocuments("abc-123")

		sample := testutil.SampleEvaluation()
		f.generator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req model.GenerationRequest) (*model.Evaluation, error) {
				assert.Empty(t, req.Context)
				return &sample, nil
			})
		f.results.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

		_, err := f.eval.Evaluate(ctx, sampleJob())
		require.NoError(t, err)
	})

	t.Run("missing document is a parse error and writes nothing", func(t *testing.T) {
		f := newEvaluatorFixture(t)
		f.docs.EXPECT().Open(gomock.Any(), gomock.Any(), "abc-123").
			DoAndReturn(func(_ context.Context, kind model.DocumentKind, _ string) (io.ReadCloser, error) {
				if kind == model.DocumentCV {
					return nil, errors.New("no such file")
				}
				return io.NopCloser(strings.NewReader("pr text")), nil
			}).Times(2)
		f.extractor.EXPECT().ExtractText(gomock.Any(), gomock.Any()).Return("pr text", nil).MaxTimes(1)

		_, err := f.eval.Evaluate(ctx, sampleJob())
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrParse)
		assert.Equal(t, 0, f.context.calls)
	})

	t.Run("blank extraction is a parse error", func(t *testing.T) {
		f := newEvaluatorFixture(t)
		f.docs.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(io.NopCloser(strings.NewReader("")), nil).Times(2)
		f.extractor.EXPECT().ExtractText(gomock.Any(), gomock.Any()).Return("   ", nil).Times(2)

		_, err := f.eval.Evaluate(ctx, sampleJob())
		assert.ErrorIs(t, err, model.ErrParse)
		assert.ErrorIs(t, err, ErrNoText)
	})

	t.Run("generator failure is a generation error", func(t *testing.T) {
		f := newEvaluatorFixture(t)
		f.expectDocuments("abc-123")
		f.generator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(nil, errors.New("quota exceeded"))

		_, err := f.eval.Evaluate(ctx, sampleJob())
		assert.ErrorIs(t, err, model.ErrGeneration)
	})

	t.Run("out of range score is a generation error", func(t *testing.T) {
		f := newEvaluatorFixture(t)
		f.expectDocuments("abc-123")
		bad := testutil.SampleEvaluation()
		bad.ProjectScore = 7
		f.generator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(&bad, nil)

		_, err := f.eval.Evaluate(ctx, sampleJob())
		assert.ErrorIs(t, err, model.ErrGeneration)
		assert.ErrorIs(t, err, model.ErrInvalidEvaluation)
	})

	t.Run("generation call is bounded by timeout", func(t *testing.T) {
		f := newEvaluatorFixture(t)
		f.eval.timeout = 20 * time.Millisecond
		f.expectDocuments("abc-123")
		f.generator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ model.GenerationRequest) (*model.Evaluation, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})

		_, err := f.eval.Evaluate(ctx, sampleJob())
		assert.ErrorIs(t, err, model.ErrGeneration)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("store failure is a persistence error", func(t *testing.T) {
		f := newEvaluatorFixture(t)
		f.expectDocuments("abc-123")
		sample := testutil.SampleEvaluation()
		f.generator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(&sample, nil)
		f.results.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

		_, err := f.eval.Evaluate(ctx, sampleJob())
		assert.ErrorIs(t, err, model.ErrPersistence)
		stages := f.sink.named("pipeline.stage")
		require.NotEmpty(t, stages)
		last := stages[len(stages)-1]
		assert.Equal(t, StagePersist, last.tags["stage"])
		assert.Equal(t, "error", last.tags["result"])
	})
}
