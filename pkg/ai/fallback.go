package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"replytrack-backend/internal/tracking/domain"
)

// FallbackService implements smart AI provider routing with fallback.
// Gemini answers first for quality; Ollama takes over when Gemini is out of
// quota or unreachable. Drafting uses the same order.
type FallbackService struct {
	primary   Assistant
	secondary Assistant
	logger    zerolog.Logger
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(primary, secondary Assistant, logger zerolog.Logger) *FallbackService {
	return &FallbackService{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With().Str("component", "ai_fallback").Logger(),
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}

	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource_exhausted",
		"resource exhausted",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// shouldFallBack reports whether the other provider is worth a try.
// A malformed verdict from a reachable provider is retried too.
func shouldFallBack(err error) bool {
	return isQuotaError(err) || isConnectionError(err) || errors.Is(err, domain.ErrClassification)
}

// DetermineThreadStatus tries the primary provider, then the secondary
func (f *FallbackService) DetermineThreadStatus(ctx context.Context, msgs []*domain.Message, userSentLastEmail bool) (*domain.StatusVerdict, error) {
	if f.primary != nil {
		verdict, err := f.primary.DetermineThreadStatus(ctx, msgs, userSentLastEmail)
		if err == nil {
			return verdict, nil
		}
		if f.secondary == nil || !shouldFallBack(err) || ctx.Err() != nil {
			return nil, err
		}
		f.logger.Warn().Err(err).Msg("primary classifier failed, falling back")
	}

	if f.secondary != nil {
		return f.secondary.DetermineThreadStatus(ctx, msgs, userSentLastEmail)
	}
	return nil, fmt.Errorf("%w: no AI provider available", domain.ErrClassification)
}

// GenerateFollowUp tries the primary provider, then the secondary
func (f *FallbackService) GenerateFollowUp(ctx context.Context, msgs []*domain.Message) (string, error) {
	if f.primary != nil {
		body, err := f.primary.GenerateFollowUp(ctx, msgs)
		if err == nil {
			return body, nil
		}
		if f.secondary == nil || ctx.Err() != nil {
			return "", err
		}
		f.logger.Warn().Err(err).Msg("primary drafter failed, falling back")
	}

	if f.secondary != nil {
		return f.secondary.GenerateFollowUp(ctx, msgs)
	}
	return "", fmt.Errorf("no AI provider available for follow-up drafting")
}
