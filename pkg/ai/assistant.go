package ai

import (
	"context"
	"errors"
	"fmt"

	"replytrack-backend/internal/tracking/domain"
)

// llmAssistant turns a provider's raw completion call into an Assistant
type llmAssistant struct {
	name string
	gen  textGenerator
}

func newAssistant(name string, gen textGenerator) *llmAssistant {
	return &llmAssistant{name: name, gen: gen}
}

// DetermineThreadStatus implements ThreadStatusClassifier
func (a *llmAssistant) DetermineThreadStatus(ctx context.Context, msgs []*domain.Message, userSentLastEmail bool) (*domain.StatusVerdict, error) {
	if len(msgs) == 0 {
		return &domain.StatusVerdict{Status: domain.StatusNone, Rationale: "empty thread"}, nil
	}

	text, err := a.gen.generate(ctx, statusPrompt(msgs, userSentLastEmail), true)
	if err != nil {
		if errors.Is(err, domain.ErrClassification) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrClassification, a.name, err)
	}
	return parseVerdict(text)
}

// GenerateFollowUp implements FollowUpDrafter
func (a *llmAssistant) GenerateFollowUp(ctx context.Context, msgs []*domain.Message) (string, error) {
	text, err := a.gen.generate(ctx, followUpPrompt(msgs), false)
	if err != nil {
		return "", fmt.Errorf("%s follow-up generation failed: %w", a.name, err)
	}

	body := cleanDraftBody(text)
	if body == "" {
		return "", fmt.Errorf("%s returned an empty follow-up", a.name)
	}
	return body, nil
}
