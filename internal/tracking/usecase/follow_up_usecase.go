package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountdomain "replytrack-backend/internal/account/domain"
	"replytrack-backend/internal/tracking/domain"
	"replytrack-backend/internal/tracking/repository"
	"replytrack-backend/pkg/ai"
	"replytrack-backend/pkg/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// followUpUsecase implements FollowUpUsecase
type followUpUsecase struct {
	providers ProviderFactory
	trackers  repository.ThreadTrackerRepository
	drafter   ai.FollowUpDrafter
	notifier  Notifier
	metrics   *metrics.Recorder
	opts      Options
	now       func() time.Time
}

// NewFollowUpUsecase creates a new instance of followUpUsecase.
// notifier may be nil.
func NewFollowUpUsecase(
	providers ProviderFactory,
	trackers repository.ThreadTrackerRepository,
	drafter ai.FollowUpDrafter,
	notifier Notifier,
	recorder *metrics.Recorder,
	opts Options,
) FollowUpUsecase {
	return &followUpUsecase{
		providers: providers,
		trackers:  trackers,
		drafter:   drafter,
		notifier:  notifier,
		metrics:   recorder,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// errSkipped marks a tracker left alone this sweep
var errSkipped = errors.New("skipped")

func (u *followUpUsecase) ProcessAccountFollowUps(ctx context.Context, account *accountdomain.EmailAccount, logger zerolog.Logger) error {
	logger = logger.With().Str("email_account_id", account.ID).Logger()

	if !account.FollowUpsEnabled() {
		logger.Debug().Msg("follow-ups disabled for account")
		return nil
	}

	trackers, err := u.trackers.FindPendingFollowUps(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("find pending follow-ups: %w", err)
	}
	if len(trackers) == 0 {
		return nil
	}

	provider, err := u.providers.ForAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("open provider: %w", err)
	}

	logger.Info().Int("trackers", len(trackers)).Msg("processing follow-ups")

	// Every tracker stands alone; the group only bounds concurrency.
	var g errgroup.Group
	g.SetLimit(u.opts.Concurrency)
	for _, tracker := range trackers {
		g.Go(func() error {
			tlog := logger.With().
				Str("tracker_id", tracker.ID).
				Str("thread_id", string(tracker.ThreadID)).
				Str("message_id", string(tracker.MessageID)).
				Str("type", string(tracker.Type)).
				Logger()

			err := u.processTracker(ctx, tlog, provider, account, tracker.ID)
			switch {
			case err == nil:
				u.metrics.FollowUp(string(tracker.Type), metrics.ResultSuccess)
			case errors.Is(err, errSkipped):
				tlog.Debug().Err(err).Msg("follow-up skipped")
				u.metrics.FollowUp(string(tracker.Type), metrics.ResultSkipped)
			default:
				tlog.Error().Err(err).Msg("follow-up failed, will retry next sweep")
				u.metrics.FollowUp(string(tracker.Type), metrics.ResultError)
			}
			return nil
		})
	}
	return g.Wait()
}

func (u *followUpUsecase) processTracker(ctx context.Context, logger zerolog.Logger, provider domain.MailProvider, account *accountdomain.EmailAccount, trackerID string) error {
	// The reconciler may have resolved it since the batch query.
	tracker, err := u.trackers.FindByID(ctx, trackerID)
	if err != nil {
		return fmt.Errorf("reload tracker: %w", err)
	}
	if tracker == nil || !tracker.EligibleForFollowUp() {
		return fmt.Errorf("%w: no longer eligible", errSkipped)
	}

	threshold, enabled := followUpThreshold(account, tracker.Type)
	if !enabled {
		return fmt.Errorf("%w: %s follow-ups disabled", errSkipped, tracker.Type)
	}

	trigger, err := callWithTimeout(ctx, u.opts.CallTimeout, func(ctx context.Context) (*domain.Message, error) {
		return provider.GetMessage(ctx, tracker.MessageID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: triggering message gone", errSkipped)
		}
		return fmt.Errorf("fetch triggering message: %w", err)
	}

	now := u.now()
	if age := now.Sub(trigger.Date); age < threshold {
		return fmt.Errorf("%w: age %s below threshold %s", errSkipped, age.Round(time.Second), threshold)
	}

	thread, err := callWithTimeout(ctx, u.opts.CallTimeout, func(ctx context.Context) ([]*domain.Message, error) {
		return provider.GetThreadMessages(ctx, tracker.ThreadID)
	})
	if err != nil {
		return fmt.Errorf("fetch thread: %w", err)
	}
	domain.SortChronologically(thread)
	last := domain.LastMessage(thread)
	if last == nil {
		last = trigger
		thread = []*domain.Message{trigger}
	}

	if err := applyLabel(ctx, provider, u.opts.CallTimeout, domain.LabelFollowUp, last.ID); err != nil {
		return err
	}

	switch tracker.Type {
	case domain.TrackerAwaiting:
		if account.FollowUpAutoDraftEnabled {
			if err := u.createFollowUpDraft(ctx, provider, thread, last); err != nil {
				return err
			}
			logger.Info().Msg("follow-up draft created")
		}
	case domain.TrackerNeedsReply:
		// A reply the owner owes is never drafted for them; it is only a nudge.
		if u.notifier != nil {
			if err := u.notifier.NotifyFollowUp(ctx, account, tracker, last); err != nil {
				logger.Warn().Err(err).Msg("follow-up push reminder failed")
			}
		}
	default:
		return fmt.Errorf("unknown tracker type %q", tracker.Type)
	}

	if err := u.trackers.MarkFollowUpApplied(ctx, tracker.ID, now); err != nil {
		if errors.Is(err, domain.ErrOptimisticConflict) {
			return fmt.Errorf("%w: tracker changed during follow-up: %v", errSkipped, err)
		}
		return fmt.Errorf("mark follow-up applied: %w", err)
	}
	logger.Info().Str("labelled_message_id", string(last.ID)).Msg("follow-up applied")
	return nil
}

// followUpThreshold returns the configured age before a tracker of type t
// gets a follow-up. Thresholds are fractional days.
func followUpThreshold(account *accountdomain.EmailAccount, t domain.TrackerType) (time.Duration, bool) {
	var days *float64
	switch t {
	case domain.TrackerAwaiting:
		days = account.FollowUpAwaitingReplyDays
	case domain.TrackerNeedsReply:
		days = account.FollowUpNeedsReplyDays
	default:
		return 0, false
	}
	if days == nil {
		return 0, false
	}
	return time.Duration(*days * float64(24*time.Hour)), true
}

func (u *followUpUsecase) createFollowUpDraft(ctx context.Context, provider domain.MailProvider, thread []*domain.Message, last *domain.Message) error {
	if u.drafter == nil {
		return fmt.Errorf("auto-draft enabled but no drafter configured")
	}

	body, err := callWithTimeout(ctx, u.opts.CallTimeout, func(ctx context.Context) (string, error) {
		return u.drafter.GenerateFollowUp(ctx, thread)
	})
	if err != nil {
		return fmt.Errorf("generate follow-up: %w", err)
	}

	email := followUpEmail(provider, last, body)
	_, err = callWithTimeout(ctx, u.opts.CallTimeout, func(ctx context.Context) (domain.DraftID, error) {
		return provider.CreateDraft(ctx, email)
	})
	if err != nil {
		return fmt.Errorf("create follow-up draft: %w", err)
	}
	return nil
}

// followUpEmail addresses a reply to the last message. When the owner sent
// it, the reply goes to the same recipients.
func followUpEmail(provider domain.MailProvider, last *domain.Message, body string) domain.OutgoingEmail {
	email := domain.OutgoingEmail{
		ThreadID:  last.ThreadID,
		Subject:   replySubject(last.Subject),
		HTML:      body,
		InReplyTo: last.HeaderID,
	}
	if provider.IsSentMessage(last) {
		email.To = last.To
		email.Cc = last.Cc
	} else {
		email.To = last.From
	}

	refs := strings.TrimSpace(last.References)
	if last.HeaderID != "" {
		refs = strings.TrimSpace(refs + " " + last.HeaderID)
	}
	email.References = refs
	return email
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:") {
		return subject
	}
	return "Re: " + subject
}
