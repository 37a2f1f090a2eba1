package enhancer

import (
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type ModelConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// NewOpenAIModel connects to any OpenAI-compatible chat endpoint. The default
// configuration points at Gemini's compatibility endpoint.
func NewOpenAIModel(cfg ModelConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}
