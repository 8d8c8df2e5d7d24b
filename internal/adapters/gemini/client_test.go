package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hanifsetyadi/cv-analyzer/config"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

type fakeModels struct {
	genResp  *genai.GenerateContentResponse
	genErr   error
	embResp  *genai.EmbedContentResponse
	embErr   error
	genModel string
	genCfg   *genai.GenerateContentConfig
	prompt   string
	embCfg   *genai.EmbedContentConfig
	embTexts []string
}

func (f *fakeModels) GenerateContent(
	_ context.Context,
	modelName string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.genModel = modelName
	f.genCfg = cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.genResp, f.genErr
}

func (f *fakeModels) EmbedContent(
	_ context.Context,
	_ string,
	contents []*genai.Content,
	cfg *genai.EmbedContentConfig,
) (*genai.EmbedContentResponse, error) {
	f.embCfg = cfg
	for _, c := range contents {
		f.embTexts = append(f.embTexts, c.Parts[0].Text)
	}
	return f.embResp, f.embErr
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: s}}},
		}},
	}
}

func vector(n int) []float32 {
	v := make([]float32, n)
	v[0] = 1
	return v
}

func testRequest() model.GenerationRequest {
	return model.GenerationRequest{
		JobTitle:    "Backend Engineer",
		Context:     "CV rubric",
		CVText:      "Go developer",
		ProjectText: "Queue service",
	}
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := RenderPrompt(testRequest())
	require.NoError(t, err)

	assert.Contains(t, prompt, "Eval Backend Engineer candidate. Use rubrics strictly.")
	assert.Contains(t, prompt, "RUBRICS:\nCV rubric")
	assert.Contains(t, prompt, "CV:\nGo developer")
	assert.Contains(t, prompt, "PROJECT:\nQueue service")
	assert.Contains(t, prompt, `"overall_summary"`)
	assert.Contains(t, prompt, "No markdown.")
}

func TestClient_Evaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes structured response", func(t *testing.T) {
		fm := &fakeModels{genResp: textResponse(`{
			"cv_match_rate": 0.82,
			"cv_feedback": "Strong Go.",
			"project_score": 4.5,
			"project_feedback": "Solid.",
			"overall_summary": "Hire."
		}`)}
		c := newClient(fm, config.GeminiConfig{}, nil)

		eval, err := c.Evaluate(ctx, testRequest())
		require.NoError(t, err)
		assert.Equal(t, &model.Evaluation{
			CVScore:         0.82,
			CVFeedback:      "Strong Go.",
			ProjectScore:    4.5,
			ProjectFeedback: "Solid.",
			Summary:         "Hire.",
		}, eval)

		assert.Equal(t, defaultModel, fm.genModel)
		require.NotNil(t, fm.genCfg)
		assert.Equal(t, "application/json", fm.genCfg.ResponseMIMEType)
		require.NotNil(t, fm.genCfg.Temperature)
		assert.InDelta(t, 0.3, *fm.genCfg.Temperature, 1e-6)
		assert.Contains(t, fm.prompt, "Eval Backend Engineer candidate")
	})

	t.Run("tolerates fenced json", func(t *testing.T) {
		fm := &fakeModels{genResp: textResponse("```json\n" +
			`{"cv_match_rate":0.5,"cv_feedback":"a","project_score":3,"project_feedback":"b","overall_summary":"c"}` +
			"\n```")}
		c := newClient(fm, config.GeminiConfig{Model: "gemini-pro", Temperature: 0.7}, nil)

		eval, err := c.Evaluate(ctx, testRequest())
		require.NoError(t, err)
		assert.InDelta(t, 0.5, eval.CVScore, 1e-9)
		assert.Equal(t, "gemini-pro", fm.genModel)
		assert.InDelta(t, 0.7, *fm.genCfg.Temperature, 1e-6)
	})

	tests := []struct {
		name string
		fm   *fakeModels
	}{
		{name: "api error", fm: &fakeModels{genErr: genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}}},
		{name: "empty response", fm: &fakeModels{genResp: &genai.GenerateContentResponse{}}},
		{name: "not json", fm: &fakeModels{genResp: textResponse("I think they are great")}},
		{name: "missing score", fm: &fakeModels{genResp: textResponse(`{"cv_feedback":"a","project_score":3}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name+" is a generation error", func(t *testing.T) {
			c := newClient(tt.fm, config.GeminiConfig{}, nil)
			_, err := c.Evaluate(ctx, testRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrGeneration)
		})
	}
}

func TestClient_Embed(t *testing.T) {
	ctx := context.Background()

	t.Run("returns one vector per text", func(t *testing.T) {
		fm := &fakeModels{embResp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{
			{Values: vector(model.EmbeddingDimensions)},
			{Values: vector(model.EmbeddingDimensions)},
		}}}
		c := newClient(fm, config.GeminiConfig{}, nil)

		out, err := c.Embed(ctx, []string{"eval Backend Engineer", "rubric"})
		require.NoError(t, err)
		assert.Len(t, out, 2)
		assert.Equal(t, []string{"eval Backend Engineer", "rubric"}, fm.embTexts)
		require.NotNil(t, fm.embCfg.OutputDimensionality)
		assert.Equal(t, int32(model.EmbeddingDimensions), *fm.embCfg.OutputDimensionality)
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		c := newClient(&fakeModels{}, config.GeminiConfig{}, nil)
		out, err := c.Embed(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("count mismatch", func(t *testing.T) {
		fm := &fakeModels{embResp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{
			{Values: vector(model.EmbeddingDimensions)},
		}}}
		c := newClient(fm, config.GeminiConfig{}, nil)
		_, err := c.Embed(ctx, []string{"a", "b"})
		require.Error(t, err)
	})

	t.Run("wrong dimensions", func(t *testing.T) {
		fm := &fakeModels{embResp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{
			{Values: vector(3)},
		}}}
		c := newClient(fm, config.GeminiConfig{}, nil)
		_, err := c.Embed(ctx, []string{"a"})
		require.Error(t, err)
	})

	t.Run("api error", func(t *testing.T) {
		c := newClient(&fakeModels{embErr: errors.New("unavailable")}, config.GeminiConfig{}, nil)
		_, err := c.Embed(ctx, []string{"a"})
		require.Error(t, err)
	})
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Options{Config: config.GeminiConfig{}})
	require.Error(t, err)
}
