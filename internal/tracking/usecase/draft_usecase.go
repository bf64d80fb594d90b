package usecase

import (
	"context"
	"errors"
	"fmt"

	accountdomain "replytrack-backend/internal/account/domain"
	"replytrack-backend/internal/tracking/domain"
	"replytrack-backend/internal/tracking/repository"
	"replytrack-backend/pkg/fuzzy"
	"replytrack-backend/pkg/metrics"

	"github.com/rs/zerolog"
)

// draftLifecycleUsecase implements DraftLifecycleUsecase
type draftLifecycleUsecase struct {
	providers  ProviderFactory
	actions    DraftActionFinder
	logs       repository.DraftSendLogRepository
	similarity SimilarityFunc
	metrics    *metrics.Recorder
	opts       Options
	logger     zerolog.Logger
}

// NewDraftLifecycleUsecase creates a new instance of draftLifecycleUsecase
// scoring drafts with fuzzy.Similarity
func NewDraftLifecycleUsecase(
	providers ProviderFactory,
	actions DraftActionFinder,
	logs repository.DraftSendLogRepository,
	recorder *metrics.Recorder,
	opts Options,
	logger zerolog.Logger,
) DraftLifecycleUsecase {
	return &draftLifecycleUsecase{
		providers:  providers,
		actions:    actions,
		logs:       logs,
		similarity: fuzzy.Similarity,
		metrics:    recorder,
		opts:       opts.withDefaults(),
		logger:     logger.With().Str("component", "draft_lifecycle").Logger(),
	}
}

func (u *draftLifecycleUsecase) OnOutboundMessage(ctx context.Context, account *accountdomain.EmailAccount, threadID domain.ThreadID, sent *domain.Message) error {
	logger := u.logger.With().
		Str("email_account_id", account.ID).
		Str("thread_id", string(threadID)).
		Str("message_id", string(sent.ID)).
		Logger()

	action, err := u.actions.LatestDraftAction(ctx, account.ID, threadID)
	if err != nil {
		return fmt.Errorf("find draft action: %w", err)
	}
	if action == nil || action.DraftID == nil || *action.DraftID == "" {
		return nil
	}
	draftID := *action.DraftID
	logger = logger.With().Str("draft_id", string(draftID)).Str("executed_action_id", action.ID).Logger()

	provider, err := u.providers.ForAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("open provider: %w", err)
	}

	draft, err := callWithTimeout(ctx, u.opts.CallTimeout, func(ctx context.Context) (*domain.Draft, error) {
		return provider.GetDraft(ctx, draftID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug().Msg("draft already gone")
			return nil
		}
		return fmt.Errorf("fetch draft: %w", err)
	}

	score := u.similarity(draft.Body, sent.Body)
	entry := &domain.DraftSendLog{
		ExecutedActionID: action.ID,
		SentMessageID:    sent.ID,
		DraftID:          draftID,
		SimilarityScore:  score,
		WasSentFromDraft: domain.WasSentFromDraft(score),
	}
	created, err := u.logs.Create(ctx, entry)
	if err != nil {
		return fmt.Errorf("write draft send log: %w", err)
	}
	if created {
		u.metrics.DraftSendLog(entry.WasSentFromDraft)
		logger.Info().
			Float64("similarity", score).
			Bool("sent_from_draft", entry.WasSentFromDraft).
			Msg("draft send logged")
	}

	// The provider's send-draft path turns the draft's own message into the
	// sent message; there is nothing left to delete.
	if draft.MessageID != "" && draft.MessageID == sent.ID {
		logger.Debug().Msg("draft consumed by send")
		return nil
	}

	return u.deleteDraft(ctx, logger, provider, draftID)
}

// deleteDraft removes a draft only if the drafts listing still returns it,
// so nothing but a draft id ever reaches DeleteDraft
func (u *draftLifecycleUsecase) deleteDraft(ctx context.Context, logger zerolog.Logger, provider domain.MailProvider, id domain.DraftID) error {
	drafts, err := callWithTimeout(ctx, u.opts.CallTimeout, func(ctx context.Context) ([]*domain.Draft, error) {
		return provider.GetDrafts(ctx, 0)
	})
	if err != nil {
		return fmt.Errorf("list drafts: %w", err)
	}

	listed := false
	for _, d := range drafts {
		if d.ID == id {
			listed = true
			break
		}
	}
	if !listed {
		logger.Info().Msg("draft not in listing, nothing to delete")
		return nil
	}

	_, err = callWithTimeout(ctx, u.opts.CallTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, provider.DeleteDraft(ctx, id)
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete draft: %w", err)
	}
	logger.Info().Msg("stale draft deleted")
	return nil
}
