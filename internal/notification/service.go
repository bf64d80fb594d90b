package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	accountdomain "replytrack-backend/internal/account/domain"
	"replytrack-backend/internal/tracking/domain"
	"replytrack-backend/internal/tracking/usecase"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on every mailbox change
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// AccountStore is what the consumer needs from the account repository
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*accountdomain.EmailAccount, error)
	FindByEmail(ctx context.Context, email string) (*accountdomain.EmailAccount, error)
	AdvanceHistoryID(ctx context.Context, id string, historyID uint64) (bool, error)
}

// HistoryLister is implemented by providers that can replay mailbox changes
type HistoryLister interface {
	ListAddedMessages(ctx context.Context, startHistoryID uint64) ([]domain.MessageID, uint64, error)
}

// MailboxWatcher is implemented by providers that can publish mailbox changes to a topic
type MailboxWatcher interface {
	Watch(ctx context.Context, topicName string) (uint64, error)
}

// Service turns Gmail push notifications into reconcile calls
type Service struct {
	pubsubClient *pubsub.Client
	accounts     AccountStore
	providers    usecase.ProviderFactory
	reconciler   usecase.ReconcileUsecase
	projectID    string
	topicName    string
	subName      string
	logger       zerolog.Logger
}

// NewService creates the push consumer. Without a project id only the
// webhook path is available.
func NewService(ctx context.Context, projectID, topicName, credentialsFile string, accounts AccountStore, providers usecase.ProviderFactory, reconciler usecase.ReconcileUsecase, logger zerolog.Logger) (*Service, error) {
	s := &Service{
		accounts:   accounts,
		providers:  providers,
		reconciler: reconciler,
		projectID:  projectID,
		topicName:  topicName,
		subName:    topicName + "-sub", // Convention: topic-sub
		logger:     logger.With().Str("component", "gmail_push").Logger(),
	}
	if projectID == "" {
		return s, nil
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	s.pubsubClient = client
	return s, nil
}

// Start pulls from the subscription until ctx is cancelled, creating the
// subscription if it is missing
func (s *Service) Start(ctx context.Context) {
	if s.pubsubClient == nil {
		s.logger.Info().Msg("no pubsub project configured, relying on push webhook")
		return
	}

	logger := s.logger.With().Str("topic", s.topicName).Str("subscription", s.subName).Logger()
	logger.Info().Msg("starting notification service")

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("error checking subscription existence")
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("error checking topic existence")
			return
		}
		if !topicExists {
			logger.Error().Msg("topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 60 * time.Second,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to create subscription")
			return
		}
		logger.Info().Msg("created subscription")
	}

	logger.Info().Msg("listening for messages")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := s.HandleMessage(ctx, msg.Data); err != nil {
			logger.Warn().Err(err).Str("pubsub_message_id", msg.ID).Msg("notification not processed, requesting redelivery")
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("error receiving messages")
	}
}

// Close releases the pubsub client
func (s *Service) Close() error {
	if s.pubsubClient == nil {
		return nil
	}
	return s.pubsubClient.Close()
}

// WatchAccount subscribes the account's mailbox to the topic and records the
// starting history id, so the next notification has a point to replay from
func (s *Service) WatchAccount(ctx context.Context, accountID string) (uint64, error) {
	if s.projectID == "" {
		return 0, fmt.Errorf("no pubsub project configured")
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		return 0, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}

	provider, err := s.providers.ForAccount(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("open provider: %w", err)
	}
	watcher, ok := provider.(MailboxWatcher)
	if !ok {
		return 0, fmt.Errorf("provider for %s cannot watch mailboxes", account.ID)
	}

	topic := fmt.Sprintf("projects/%s/topics/%s", s.projectID, s.topicName)
	historyID, err := watcher.Watch(ctx, topic)
	if err != nil {
		return 0, fmt.Errorf("watch mailbox: %w", err)
	}
	if _, err := s.accounts.AdvanceHistoryID(ctx, account.ID, historyID); err != nil {
		return 0, fmt.Errorf("record history id: %w", err)
	}

	s.logger.Info().Str("email_account_id", account.ID).Uint64("history_id", historyID).Msg("mailbox watch started")
	return historyID, nil
}

// HandleMessage processes one notification payload. A returned error asks
// for redelivery; malformed or unknown payloads are dropped.
func (s *Service) HandleMessage(ctx context.Context, data []byte) error {
	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal notification, dropping")
		return nil
	}
	return s.handleNotification(ctx, notification)
}

func (s *Service) handleNotification(ctx context.Context, n GmailNotification) error {
	logger := s.logger.With().Str("email", n.EmailAddress).Uint64("history_id", n.HistoryID).Logger()

	account, err := s.accounts.FindByEmail(ctx, n.EmailAddress)
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		logger.Info().Msg("no account for notification, dropping")
		return nil
	}
	logger = logger.With().Str("email_account_id", account.ID).Logger()

	// Deduplication: history ids only grow, so anything at or below the
	// stored one was already replayed
	if n.HistoryID <= account.LastHistoryID {
		logger.Debug().Uint64("last_history_id", account.LastHistoryID).Msg("skipping duplicate notification")
		return nil
	}

	if account.LastHistoryID == 0 {
		// Nothing to replay from yet; start tracking at this point.
		_, err := s.accounts.AdvanceHistoryID(ctx, account.ID, n.HistoryID)
		return err
	}

	provider, err := s.providers.ForAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("open provider: %w", err)
	}
	lister, ok := provider.(HistoryLister)
	if !ok {
		return fmt.Errorf("provider for %s cannot list history", account.ID)
	}

	ids, latest, err := lister.ListAddedMessages(ctx, account.LastHistoryID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The stored id fell out of Gmail's history window; resume from here.
			logger.Warn().Err(err).Msg("history expired, skipping to notification")
			_, err := s.accounts.AdvanceHistoryID(ctx, account.ID, n.HistoryID)
			return err
		}
		return fmt.Errorf("list history: %w", err)
	}

	for _, id := range ids {
		s.reconcileAdded(ctx, logger, provider, account.ID, id)
	}

	if latest < n.HistoryID {
		latest = n.HistoryID
	}
	if _, err := s.accounts.AdvanceHistoryID(ctx, account.ID, latest); err != nil {
		return fmt.Errorf("advance history id: %w", err)
	}
	logger.Info().Int("messages", len(ids)).Uint64("advanced_to", latest).Msg("notification processed")
	return nil
}

// reconcileAdded reconciles one added message. Failures stay local: the
// next event on the thread re-derives its state anyway.
func (s *Service) reconcileAdded(ctx context.Context, logger zerolog.Logger, provider domain.MailProvider, accountID string, id domain.MessageID) {
	logger = logger.With().Str("message_id", string(id)).Logger()

	msg, err := provider.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug().Msg("added message already gone")
		} else {
			logger.Warn().Err(err).Msg("failed to fetch added message")
		}
		return
	}
	if msg.HasLabel("DRAFT") {
		return
	}

	direction := usecase.DirectionInbound
	if provider.IsSentMessage(msg) {
		direction = usecase.DirectionOutbound
	}

	if err := s.reconciler.Reconcile(ctx, accountID, msg.ThreadID, msg.ID, direction); err != nil {
		logger.Warn().Err(err).Str("thread_id", string(msg.ThreadID)).Msg("reconcile failed")
	}
}
