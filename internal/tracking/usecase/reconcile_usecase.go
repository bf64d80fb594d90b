package usecase

import (
	"context"
	"errors"
	"fmt"

	"replytrack-backend/internal/tracking/domain"
	"replytrack-backend/internal/tracking/repository"
	"replytrack-backend/pkg/ai"
	"replytrack-backend/pkg/metrics"

	"github.com/rs/zerolog"
)

// reconcileUsecase implements ReconcileUsecase
type reconcileUsecase struct {
	accounts   AccountFinder
	providers  ProviderFactory
	trackers   repository.ThreadTrackerRepository
	classifier ai.ThreadStatusClassifier
	drafts     DraftLifecycleUsecase
	metrics    *metrics.Recorder
	opts       Options
	logger     zerolog.Logger
}

// NewReconcileUsecase creates a new instance of reconcileUsecase.
// drafts may be nil, in which case outbound events only reconcile trackers.
func NewReconcileUsecase(
	accounts AccountFinder,
	providers ProviderFactory,
	trackers repository.ThreadTrackerRepository,
	classifier ai.ThreadStatusClassifier,
	drafts DraftLifecycleUsecase,
	recorder *metrics.Recorder,
	opts Options,
	logger zerolog.Logger,
) ReconcileUsecase {
	return &reconcileUsecase{
		accounts:   accounts,
		providers:  providers,
		trackers:   trackers,
		classifier: classifier,
		drafts:     drafts,
		metrics:    recorder,
		opts:       opts.withDefaults(),
		logger:     logger.With().Str("component", "reconciler").Logger(),
	}
}

func (u *reconcileUsecase) Reconcile(ctx context.Context, accountID string, threadID domain.ThreadID, messageID domain.MessageID, direction Direction) error {
	logger := u.logger.With().
		Str("email_account_id", accountID).
		Str("thread_id", string(threadID)).
		Str("message_id", string(messageID)).
		Str("direction", string(direction)).
		Logger()

	err := u.reconcile(ctx, logger, accountID, threadID, messageID, direction)
	switch {
	case err == nil:
		u.metrics.Reconciliation(string(direction), metrics.ResultSuccess)
	case errors.Is(err, domain.ErrNotFound):
		logger.Info().Err(err).Msg("thread or account gone, skipping reconciliation")
		u.metrics.Reconciliation(string(direction), metrics.ResultSkipped)
		return nil
	default:
		logger.Error().Err(err).Msg("reconciliation failed")
		u.metrics.Reconciliation(string(direction), metrics.ResultError)
	}
	return err
}

func (u *reconcileUsecase) reconcile(ctx context.Context, logger zerolog.Logger, accountID string, threadID domain.ThreadID, messageID domain.MessageID, direction Direction) error {
	account, err := u.accounts.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if account == nil {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}

	provider, err := u.providers.ForAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("open provider: %w", err)
	}

	// Always the whole thread: events arrive out of order, so only the
	// current transcript tells the truth.
	msgs, err := callWithTimeout(ctx, u.opts.CallTimeout, func(ctx context.Context) ([]*domain.Message, error) {
		return provider.GetThreadMessages(ctx, threadID)
	})
	if err != nil {
		return fmt.Errorf("fetch thread: %w", err)
	}
	domain.SortChronologically(msgs)
	last := domain.LastMessage(msgs)
	if last == nil {
		return fmt.Errorf("thread %s has no messages: %w", threadID, domain.ErrNotFound)
	}

	reconcileErr := u.applyStatus(ctx, logger, provider, accountID, threadID, msgs, last)

	if direction != DirectionOutbound || u.drafts == nil {
		return reconcileErr
	}

	// Draft cleanup depends only on the sent message, so it runs even when
	// classification failed.
	sent := findMessage(msgs, messageID)
	if sent == nil {
		sent, err = callWithTimeout(ctx, u.opts.CallTimeout, func(ctx context.Context) (*domain.Message, error) {
			return provider.GetMessage(ctx, messageID)
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Info().Msg("sent message gone, skipping draft cleanup")
				return reconcileErr
			}
			return errors.Join(reconcileErr, fmt.Errorf("fetch sent message: %w", err))
		}
	}

	if err := u.drafts.OnOutboundMessage(ctx, account, threadID, sent); err != nil {
		return errors.Join(reconcileErr, fmt.Errorf("draft cleanup: %w", err))
	}
	return reconcileErr
}

// applyStatus classifies the thread, labels its last message and then
// writes trackers. No tracker is touched unless both earlier steps succeed.
func (u *reconcileUsecase) applyStatus(ctx context.Context, logger zerolog.Logger, provider domain.MailProvider, accountID string, threadID domain.ThreadID, msgs []*domain.Message, last *domain.Message) error {
	userSentLast := provider.IsSentMessage(last)

	verdict, err := callWithTimeout(ctx, u.opts.CallTimeout, func(ctx context.Context) (*domain.StatusVerdict, error) {
		return u.classifier.DetermineThreadStatus(ctx, msgs, userSentLast)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrClassification) {
			// keep ErrTransientProvider visible for timeouts
			err = fmt.Errorf("%w: %w", domain.ErrClassification, err)
		}
		return err
	}

	logger.Debug().
		Str("status", string(verdict.Status)).
		Str("rationale", verdict.Rationale).
		Bool("user_sent_last", userSentLast).
		Msg("thread classified")

	if name := verdict.Status.LabelName(); name != "" {
		if err := applyLabel(ctx, provider, u.opts.CallTimeout, name, last.ID); err != nil {
			return err
		}
	}

	return u.applyVerdict(ctx, logger, accountID, threadID, verdict.Status, last)
}

// applyVerdict plans and writes tracker changes. A conflict means another
// event moved the trackers first; the plan is recomputed once from a fresh
// read, and a second conflict leaves the thread to that other event.
func (u *reconcileUsecase) applyVerdict(ctx context.Context, logger zerolog.Logger, accountID string, threadID domain.ThreadID, status domain.ThreadStatus, last *domain.Message) error {
	for attempt := 0; attempt < 2; attempt++ {
		open, err := u.trackers.FindUnresolvedByThread(ctx, accountID, threadID)
		if err != nil {
			return fmt.Errorf("load trackers: %w", err)
		}

		plan := domain.PlanTransition(status, open, accountID, last)
		err = u.applyPlan(ctx, logger, plan)
		if !errors.Is(err, domain.ErrOptimisticConflict) {
			return err
		}
		logger.Warn().Err(err).Int("attempt", attempt+1).Msg("tracker conflict")
	}

	logger.Warn().Msg("trackers kept changing, leaving thread to the concurrent event")
	return nil
}

func (u *reconcileUsecase) applyPlan(ctx context.Context, logger zerolog.Logger, plan domain.TrackerPlan) error {
	// Resolves go first so a replacement never collides with the open-tracker unique index.
	for _, t := range plan.Resolve {
		if err := u.trackers.Resolve(ctx, t.ID); err != nil {
			return fmt.Errorf("resolve tracker %s: %w", t.ID, err)
		}
		logger.Info().Str("tracker_id", t.ID).Str("type", string(t.Type)).Msg("tracker resolved")
	}

	if plan.Refresh != nil {
		if err := u.trackers.Refresh(ctx, plan.Refresh.ID, plan.Refresh.MessageID, plan.Refresh.SentAt); err != nil {
			return fmt.Errorf("refresh tracker %s: %w", plan.Refresh.ID, err)
		}
		logger.Info().Str("tracker_id", plan.Refresh.ID).Str("type", string(plan.Refresh.Type)).Msg("tracker refreshed")
	}

	if plan.Create != nil {
		if err := u.trackers.Create(ctx, plan.Create); err != nil {
			return fmt.Errorf("create %s tracker: %w", plan.Create.Type, err)
		}
		logger.Info().Str("tracker_id", plan.Create.ID).Str("type", string(plan.Create.Type)).Msg("tracker created")
	}
	return nil
}
