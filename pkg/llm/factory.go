package llm

import (
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/retry"
)

// NewClient builds the language capability from config. With both a Gemini
// key and an Ollama endpoint configured, calls go through the fallback
// chain; with only one, that provider is used directly.
func NewClient(cfg *config.Config) Client {
	policy := retry.DefaultPolicy(cfg.CapabilityTimeout)

	var gemini Client
	if cfg.GeminiAPIKey != "" {
		gemini = NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, policy)
	}
	ollama := NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel, policy)

	if gemini != nil {
		return NewFallbackClient(gemini, ollama)
	}
	return ollama
}
