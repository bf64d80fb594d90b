package notification

import (
	"context"
	"fmt"

	accountdomain "replytrack-backend/internal/account/domain"
	accountrepo "replytrack-backend/internal/account/repository"
	"replytrack-backend/internal/tracking/domain"
	"replytrack-backend/pkg/fcm"

	"github.com/rs/zerolog"
)

// PushSender delivers a notification to device tokens and returns the ones that failed
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// ReminderNotifier sends an FCM reminder when a reply the owner owes gets
// its follow-up label
type ReminderNotifier struct {
	sender PushSender
	tokens accountrepo.DeviceTokenRepository
	logger zerolog.Logger
}

func NewReminderNotifier(sender PushSender, tokens accountrepo.DeviceTokenRepository, logger zerolog.Logger) *ReminderNotifier {
	return &ReminderNotifier{
		sender: sender,
		tokens: tokens,
		logger: logger.With().Str("component", "follow_up_reminder").Logger(),
	}
}

func (n *ReminderNotifier) NotifyFollowUp(ctx context.Context, account *accountdomain.EmailAccount, tracker *domain.ThreadTracker, last *domain.Message) error {
	tokens, err := n.tokens.GetTokensByAccountID(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("get device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	sender := last.From
	if sender == "" {
		sender = "someone"
	}
	subject := last.Subject
	if r := []rune(subject); len(r) > 100 {
		subject = string(r[:97]) + "..."
	}
	if subject == "" {
		subject = "(no subject)"
	}

	failed, err := n.sender.SendToDevices(ctx, tokenStrings, fcm.NotificationData{
		Title: fmt.Sprintf("Still waiting on your reply to %s", sender),
		Body:  subject,
		Data: map[string]string{
			"type":       "follow_up",
			"tracker_id": tracker.ID,
			"thread_id":  string(tracker.ThreadID),
			"message_id": string(last.ID),
		},
		ClickAction: fmt.Sprintf("/inbox/%s", last.ID),
	})
	if err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	// Cleanup failed tokens
	for _, token := range failed {
		if err := n.tokens.DeleteToken(ctx, token); err != nil {
			n.logger.Warn().Err(err).Msg("failed to delete stale device token")
		}
	}
	n.logger.Info().
		Str("email_account_id", account.ID).
		Str("tracker_id", tracker.ID).
		Int("devices", len(tokenStrings)-len(failed)).
		Msg("follow-up reminder sent")
	return nil
}
