package ai

import (
	"context"

	"replytrack-backend/internal/tracking/domain"
)

// ThreadStatusClassifier decides whether a conversation is waiting on the
// other party, waiting on the account owner, or needs nothing
type ThreadStatusClassifier interface {
	DetermineThreadStatus(ctx context.Context, msgs []*domain.Message, userSentLastEmail bool) (*domain.StatusVerdict, error)
}

// FollowUpDrafter writes the HTML body of a follow-up nudge for a thread
type FollowUpDrafter interface {
	GenerateFollowUp(ctx context.Context, msgs []*domain.Message) (string, error)
}

// Assistant is the interface for AI classification and drafting.
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type Assistant interface {
	ThreadStatusClassifier
	FollowUpDrafter
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

// textGenerator is the raw completion call each provider exposes
type textGenerator interface {
	generate(ctx context.Context, prompt string, jsonOutput bool) (string, error)
}
