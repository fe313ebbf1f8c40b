package llm

import (
	"github.com/spherical/pdf2md/internal/config"
	"github.com/spherical/pdf2md/internal/domain"
)

// Generator is a content generator that reports the model it calls.
type Generator interface {
	domain.ContentGenerator
	Model() string
}

// FromConfig builds the client for the configured provider.
func FromConfig(cfg config.LLMConfig) Generator {
	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	opts := []Option{WithRetryConfig(retry)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}

	if cfg.Provider == config.ProviderGemini {
		return NewGeminiClient(cfg.APIKey, cfg.Model, opts...)
	}
	return NewClient(cfg.APIKey, cfg.Model, opts...)
}
