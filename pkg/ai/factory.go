package ai

import (
	"fmt"

	"github.com/rs/zerolog"

	"replytrack-backend/pkg/gemini"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini", "ollama" or "auto"

	// Gemini config
	GeminiAPIKey string

	// Ollama config
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"
}

// NewAssistant creates an Assistant based on the config.
// "auto" routes Gemini first and falls back to Ollama when a Gemini key is set.
func NewAssistant(cfg Config, logger zerolog.Logger) (Assistant, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiAssistant(gemini.NewGeminiService(cfg.GeminiAPIKey)), nil

	case ProviderOllama:
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil

	case ProviderAuto, "":
		ollama := NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel)
		if cfg.GeminiAPIKey == "" {
			return ollama, nil
		}
		return NewFallbackService(NewGeminiAssistant(gemini.NewGeminiService(cfg.GeminiAPIKey)), ollama, logger), nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
