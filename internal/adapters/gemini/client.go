// Package gemini implements the embedding and generation ports on top of the Google GenAI SDK.
package gemini

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"google.golang.org/genai"

	"github.com/hanifsetyadi/cv-analyzer/config"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

const (
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "gemini-embedding-001"
	defaultTemperature    = 0.3
)

//go:embed prompt.tmpl
var promptSource string

var promptTemplate = template.Must(template.New("evaluation").Option("missingkey=error").Parse(promptSource))

// modelsAPI is the subset of *genai.Models used by Client.
type modelsAPI interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
	EmbedContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.EmbedContentConfig,
	) (*genai.EmbedContentResponse, error)
}

// Client generates evaluations and embeddings with Gemini.
type Client struct {
	models         modelsAPI
	model          string
	embeddingModel string
	temperature    float32
	dimensions     int32
	logger         *slog.Logger
}

// Options configures a Client.
type Options struct {
	Config config.GeminiConfig
	Logger *slog.Logger
}

// NewClient creates a Client configured for the Gemini API backend.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	cfg := opts.Config
	cfg.Sanitize()
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required (GEMINI_API_KEY or GOOGLE_API_KEY)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(client.Models, cfg, opts.Logger), nil
}

func newClient(models modelsAPI, cfg config.GeminiConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		models:         models,
		model:          strings.TrimSpace(cfg.Model),
		embeddingModel: strings.TrimSpace(cfg.EmbeddingModel),
		temperature:    cfg.Temperature,
		dimensions:     model.EmbeddingDimensions,
		logger:         logger.With("component", "gemini"),
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.embeddingModel == "" {
		c.embeddingModel = defaultEmbeddingModel
	}
	if c.temperature == 0 {
		c.temperature = defaultTemperature
	}
	return c
}

// Model returns the generation model name.
func (c *Client) Model() string { return c.model }

// Embed returns one vector per input text, sized for the rubric index.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	resp, err := c.models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(c.dimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("embed content: got %d embeddings for %d inputs", got, len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) != int(c.dimensions) {
			return nil, fmt.Errorf("embed content: embedding %d has unexpected dimensions", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// Evaluate renders the evaluation prompt and decodes the structured response.
// Range validation is left to the caller.
func (c *Client) Evaluate(ctx context.Context, req model.GenerationRequest) (*model.Evaluation, error) {
	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, model.NewGenerationError("render prompt", err)
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(c.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   evaluationSchema,
	})
	if err != nil {
		return nil, model.NewGenerationError("generate content", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, model.NewGenerationError("generate content", errors.New("empty response"))
	}

	eval, err := decodeEvaluation(text)
	if err != nil {
		c.logger.WarnContext(ctx, "undecodable generation response", "error", err, "bytes", len(text))
		return nil, model.NewGenerationError("decode response", err)
	}
	return eval, nil
}

// RenderPrompt fills the evaluation prompt template.
func RenderPrompt(req model.GenerationRequest) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			b.WriteString(part.Text)
		}
		// Only the first candidate with content is used.
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// wireEvaluation is the JSON shape requested from the model.
type wireEvaluation struct {
	CVMatchRate     *float64 `json:"cv_match_rate"`
	CVFeedback      string   `json:"cv_feedback"`
	ProjectScore    *float64 `json:"project_score"`
	ProjectFeedback string   `json:"project_feedback"`
	OverallSummary  string   `json:"overall_summary"`
}

func decodeEvaluation(text string) (*model.Evaluation, error) {
	text = stripFences(text)
	var w wireEvaluation
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, err
	}
	if w.CVMatchRate == nil {
		return nil, errors.New("cv_match_rate missing")
	}
	if w.ProjectScore == nil {
		return nil, errors.New("project_score missing")
	}
	return &model.Evaluation{
		CVScore:         *w.CVMatchRate,
		CVFeedback:      w.CVFeedback,
		ProjectScore:    *w.ProjectScore,
		ProjectFeedback: w.ProjectFeedback,
		Summary:         w.OverallSummary,
	}, nil
}

// stripFences removes a surrounding ```json fence some models emit despite the MIME type.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var evaluationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"cv_match_rate": {
			Type:        genai.TypeNumber,
			Description: "Weighted CV match from 0 to 1 with 2 decimals: technical skills, experience, achievements, collaboration.",
		},
		"cv_feedback": {
			Type:        genai.TypeString,
			Description: "Key CV strengths and gaps for the role, 50 words max.",
		},
		"project_score": {
			Type:        genai.TypeNumber,
			Description: "Project score from 1 to 5 with 1 decimal: correctness, code quality, resilience, documentation, creativity.",
		},
		"project_feedback": {
			Type:        genai.TypeString,
			Description: "Main project findings, 50 words max.",
		},
		"overall_summary": {
			Type:        genai.TypeString,
			Description: "Hire recommendation combining CV and project, 40 words max.",
		},
	},
	Required: []string{"cv_match_rate", "cv_feedback", "project_score", "project_feedback", "overall_summary"},
	PropertyOrdering: []string{
		"cv_match_rate", "cv_feedback", "project_score", "project_feedback", "overall_summary",
	},
}
