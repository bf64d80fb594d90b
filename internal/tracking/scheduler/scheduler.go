package scheduler

import (
	"context"
	"sync"
	"time"

	accountdomain "replytrack-backend/internal/account/domain"
	"replytrack-backend/internal/tracking/usecase"

	"github.com/rs/zerolog"
)

// AccountLister lists accounts with at least one follow-up type enabled
type AccountLister interface {
	FindWithFollowUpsEnabled(ctx context.Context) ([]*accountdomain.EmailAccount, error)
}

// SweepResult summarises one pass over all accounts
type SweepResult struct {
	Accounts int       `json:"accounts"`
	Failed   int       `json:"failed"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started_at"`
	Duration string    `json:"duration"`
}

// FollowUpScheduler runs the follow-up sweep on a ticker
type FollowUpScheduler struct {
	accounts  AccountLister
	followUps usecase.FollowUpUsecase
	interval  time.Duration
	logger    zerolog.Logger

	// one sweep at a time, whether from the ticker or the cron endpoint
	running sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

// NewFollowUpScheduler creates a new scheduler
func NewFollowUpScheduler(accounts AccountLister, followUps usecase.FollowUpUsecase, interval time.Duration, logger zerolog.Logger) *FollowUpScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &FollowUpScheduler{
		accounts:  accounts,
		followUps: followUps,
		interval:  interval,
		logger:    logger.With().Str("component", "follow_up_scheduler").Logger(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *FollowUpScheduler) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("starting follow-up scheduler")

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.RunOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-s.stop:
				s.logger.Info().Msg("scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info().Msg("scheduler context cancelled")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler and waits for an in-flight sweep
func (s *FollowUpScheduler) Stop() {
	close(s.stop)
	<-s.done
}

// RunOnce sweeps every account with follow-ups enabled. A failing account
// is logged and does not stop the others.
func (s *FollowUpScheduler) RunOnce(ctx context.Context) (result SweepResult) {
	s.running.Lock()
	defer s.running.Unlock()

	result.Started = time.Now()
	defer func() {
		result.Duration = time.Since(result.Started).Round(time.Millisecond).String()
	}()

	accounts, err := s.accounts.FindWithFollowUpsEnabled(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("error listing accounts for follow-up")
		result.Error = err.Error()
		return result
	}
	result.Accounts = len(accounts)

	for _, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		if err := s.followUps.ProcessAccountFollowUps(ctx, account, s.logger); err != nil {
			result.Failed++
			s.logger.Error().Err(err).Str("email_account_id", account.ID).Msg("account follow-up sweep failed")
		}
	}

	s.logger.Info().
		Int("accounts", result.Accounts).
		Int("failed", result.Failed).
		Dur("took", time.Since(result.Started)).
		Msg("follow-up sweep finished")
	return result
}
