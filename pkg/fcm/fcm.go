package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	messagingClient *messaging.Client
	logger          zerolog.Logger
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(ctx context.Context, credentialsFile string, logger zerolog.Logger) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	logger = logger.With().Str("component", "fcm").Logger()
	logger.Info().Msg("client initialized")
	return &Client{
		messagingClient: messagingClient,
		logger:          logger,
	}, nil
}

// NotificationData contains the data to send in a push notification
type NotificationData struct {
	Title string
	Body  string
	Data  map[string]string // Custom data payload
	// Click action
	ClickAction string // URL to open when notification is clicked
}

// SendToDevices sends a push notification to multiple device tokens.
// Returns the tokens that failed to receive the notification.
func (c *Client) SendToDevices(ctx context.Context, tokens []string, notification NotificationData) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	webpush := &messaging.WebpushConfig{
		Notification: &messaging.WebpushNotification{
			Title: notification.Title,
			Body:  notification.Body,
			Icon:  "/icon-192.svg",
		},
	}
	if notification.ClickAction != "" {
		webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: notification.ClickAction}
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data:    notification.Data,
		Webpush: webpush,
	}

	response, err := c.messagingClient.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	c.logger.Debug().
		Int("success", response.SuccessCount).
		Int("failure", response.FailureCount).
		Msg("multicast sent")

	// Collect failed tokens
	var failedTokens []string
	for i, resp := range response.Responses {
		if !resp.Success {
			failedTokens = append(failedTokens, tokens[i])
			c.logger.Warn().Err(resp.Error).Str("token_prefix", prefix(tokens[i])).Msg("failed to send to token")
		}
	}

	return failedTokens, nil
}

func prefix(token string) string {
	if len(token) > 20 {
		return token[:20] + "..."
	}
	return token
}
