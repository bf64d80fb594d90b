package ai

import (
	"context"

	"replytrack-backend/pkg/gemini"
)

// GeminiAssistant implements Assistant on top of the Gemini REST client
type GeminiAssistant struct {
	*llmAssistant
	service *gemini.GeminiService
}

func NewGeminiAssistant(service *gemini.GeminiService) *GeminiAssistant {
	g := &GeminiAssistant{service: service}
	g.llmAssistant = newAssistant("gemini", g)
	return g
}

func (g *GeminiAssistant) generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	return g.service.GenerateContent(ctx, prompt, jsonOutput)
}
