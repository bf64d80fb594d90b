package usecase

import (
	"context"
	"time"

	accountdomain "replytrack-backend/internal/account/domain"
	rulesdomain "replytrack-backend/internal/rules/domain"
	"replytrack-backend/internal/tracking/domain"

	"github.com/rs/zerolog"
)

// Direction is which way the triggering message travelled
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// ReconcileUsecase re-derives a thread's reply status from the full
// current transcript and brings labels and trackers in line with it
type ReconcileUsecase interface {
	// Reconcile handles one inbound or outbound message event. It is safe to
	// call any number of times for the same event.
	Reconcile(ctx context.Context, accountID string, threadID domain.ThreadID, messageID domain.MessageID, direction Direction) error
}

// DraftLifecycleUsecase cleans up AI drafts made stale by an outbound message
type DraftLifecycleUsecase interface {
	// OnOutboundMessage records how close the sent message was to the open
	// AI draft and deletes the draft by its draft id
	OnOutboundMessage(ctx context.Context, account *accountdomain.EmailAccount, threadID domain.ThreadID, sent *domain.Message) error
}

// FollowUpUsecase runs the follow-up sweep for one account
type FollowUpUsecase interface {
	// ProcessAccountFollowUps labels aged trackers and optionally drafts a
	// nudge. Per-tracker failures are logged and left for the next sweep.
	ProcessAccountFollowUps(ctx context.Context, account *accountdomain.EmailAccount, logger zerolog.Logger) error
}

// ProviderFactory opens a mail provider for an account
type ProviderFactory interface {
	ForAccount(ctx context.Context, account *accountdomain.EmailAccount) (domain.MailProvider, error)
}

// AccountFinder loads account configuration
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*accountdomain.EmailAccount, error)
}

// DraftActionFinder is read access to the rule engine's executed actions
type DraftActionFinder interface {
	LatestDraftAction(ctx context.Context, accountID string, threadID domain.ThreadID) (*rulesdomain.ActionItem, error)
}

// Notifier pushes a reminder to the account owner's devices
type Notifier interface {
	NotifyFollowUp(ctx context.Context, account *accountdomain.EmailAccount, tracker *domain.ThreadTracker, last *domain.Message) error
}

// SimilarityFunc scores two message bodies in [0,1]. Identical normalized
// text must score 1.0.
type SimilarityFunc func(a, b string) float64

// Options bounds external calls and sweep parallelism
type Options struct {
	// CallTimeout bounds each provider, classifier and drafting call
	CallTimeout time.Duration
	// Concurrency is how many trackers one account sweep processes at once
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}
