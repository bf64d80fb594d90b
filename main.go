package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "replytrack-backend/cmd/api"
	accountRepo "replytrack-backend/internal/account/repository"
	"replytrack-backend/internal/notification"
	rulesRepo "replytrack-backend/internal/rules/repository"
	trackingDelivery "replytrack-backend/internal/tracking/delivery"
	trackingRepo "replytrack-backend/internal/tracking/repository"
	"replytrack-backend/internal/tracking/scheduler"
	"replytrack-backend/internal/tracking/usecase"
	"replytrack-backend/pkg/ai"
	"replytrack-backend/pkg/config"
	"replytrack-backend/pkg/database"
	"replytrack-backend/pkg/fcm"
	"replytrack-backend/pkg/gmail"
	"replytrack-backend/pkg/metrics"

	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", "reply-tracker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Auto-migrate database schemas
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Initialize repositories (dependency injection)
	accounts := accountRepo.NewAccountRepository(db)
	deviceTokens := accountRepo.NewDeviceTokenRepository(db)
	executedRules := rulesRepo.NewExecutedRuleRepository(db)
	trackers := trackingRepo.NewThreadTrackerRepository(db)
	draftSendLogs := trackingRepo.NewDraftSendLogRepository(db)

	recorder := metrics.NewRecorder()

	assistant, err := ai.NewAssistant(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiApiKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize AI service")
	}
	logger.Info().Str("provider", cfg.AIProvider).Msg("AI service initialized")

	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GmailRequestsPerSecond, logger)
	providers := usecase.NewGmailProviderFactory(gmailService, accounts)

	opts := usecase.Options{
		CallTimeout: cfg.ExternalCallTimeout,
		Concurrency: cfg.FollowUpConcurrency,
	}

	// FCM is optional; follow-ups work without push reminders
	var notifier usecase.Notifier
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize FCM client, push reminders disabled")
		} else {
			notifier = notification.NewReminderNotifier(fcmClient, deviceTokens, logger)
		}
	}

	// Initialize use cases (dependency injection)
	drafts := usecase.NewDraftLifecycleUsecase(providers, executedRules, draftSendLogs, recorder, opts, logger)
	reconciler := usecase.NewReconcileUsecase(accounts, providers, trackers, assistant, drafts, recorder, opts, logger)
	followUps := usecase.NewFollowUpUsecase(providers, trackers, assistant, notifier, recorder, opts)

	followUpScheduler := scheduler.NewFollowUpScheduler(accounts, followUps, cfg.FollowUpInterval, logger)
	followUpScheduler.Start(ctx)

	// Extract short topic name from full resource name if necessary
	topicName := cfg.GooglePubSubTopic
	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}
	if topicName == "" {
		topicName = "gmail-updates"
	}

	notifService, err := notification.NewService(ctx, cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, accounts, providers, reconciler, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize notification service")
	}
	go notifService.Start(ctx)

	// Initialize HTTP handler
	trackingHandler := trackingDelivery.NewTrackingHandler(notifService, followUpScheduler, reconciler, deviceTokens, logger)
	handler := api.NewHandler(cfg, trackingHandler, recorder, logger)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := handler.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	// Start server
	if err := handler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	followUpScheduler.Stop()
	if err := notifService.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close pubsub client")
	}
}
