package config

import "strings"

// GeminiConfig configures the Gemini generation and embedding models.
type GeminiConfig struct {
	// APIKey is read from GEMINI_API_KEY, falling back to GOOGLE_API_KEY.
	APIKey         string  `env:"GEMINI_API_KEY"`
	GoogleAPIKey   string  `env:"GOOGLE_API_KEY"`
	Model          string  `env:"GEMINI_MODEL"           envDefault:"gemini-2.5-flash"`
	EmbeddingModel string  `env:"GEMINI_EMBEDDING_MODEL" envDefault:"gemini-embedding-001"`
	Temperature    float32 `env:"GEMINI_TEMPERATURE"     envDefault:"0.3"`
}

// Sanitize resolves the API key alias and clamps the temperature to [0,2].
func (g *GeminiConfig) Sanitize() {
	g.APIKey = strings.TrimSpace(g.APIKey)
	if g.APIKey == "" {
		g.APIKey = strings.TrimSpace(g.GoogleAPIKey)
	}
	g.GoogleAPIKey = ""
	if g.Temperature < 0 {
		g.Temperature = 0
	}
	if g.Temperature > 2 {
		g.Temperature = 2
	}
}
