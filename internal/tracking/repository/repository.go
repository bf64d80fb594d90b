package repository

import (
	"context"
	"time"

	"replytrack-backend/internal/tracking/domain"
)

// ThreadTrackerRepository defines the interface for tracker data access.
// Writes are conditional on the tracker still being in the state the caller
// decided from; a lost race surfaces as domain.ErrOptimisticConflict.
type ThreadTrackerRepository interface {
	// FindByID finds a tracker by its ID, returning nil when absent
	FindByID(ctx context.Context, id string) (*domain.ThreadTracker, error)

	// FindUnresolvedByThread returns open trackers of any type for a thread
	FindUnresolvedByThread(ctx context.Context, accountID string, threadID domain.ThreadID) ([]*domain.ThreadTracker, error)

	// FindPendingFollowUps returns trackers where resolved = false AND follow_up_applied_at IS NULL
	FindPendingFollowUps(ctx context.Context, accountID string) ([]*domain.ThreadTracker, error)

	// Create inserts a new tracker. Fails with ErrOptimisticConflict when an
	// open tracker of the same type already exists for the thread.
	Create(ctx context.Context, tracker *domain.ThreadTracker) error

	// Refresh repoints an open tracker at a newer message. Fails with
	// ErrOptimisticConflict if it was resolved or followed up meanwhile.
	Refresh(ctx context.Context, id string, messageID domain.MessageID, sentAt time.Time) error

	// Resolve marks a tracker resolved. Resolving an already resolved tracker is a no-op.
	Resolve(ctx context.Context, id string) error

	// MarkFollowUpApplied sets follow_up_applied_at once. Fails with
	// ErrOptimisticConflict if the tracker is no longer eligible.
	MarkFollowUpApplied(ctx context.Context, id string, at time.Time) error
}

// DraftSendLogRepository defines the interface for draft send log writes
type DraftSendLogRepository interface {
	// Create inserts a log row. Returns false when a row for the same
	// action and sent message already exists.
	Create(ctx context.Context, log *domain.DraftSendLog) (bool, error)

	// FindByActionID returns all logs for an executed action, oldest first
	FindByActionID(ctx context.Context, actionID string) ([]*domain.DraftSendLog, error)
}
