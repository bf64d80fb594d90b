package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"replytrack-backend/internal/tracking/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// threadTrackerRepository implements ThreadTrackerRepository using GORM
type threadTrackerRepository struct {
	db *gorm.DB
}

// NewThreadTrackerRepository creates a new GORM-based ThreadTrackerRepository
func NewThreadTrackerRepository(db *gorm.DB) ThreadTrackerRepository {
	return &threadTrackerRepository{db: db}
}

func (r *threadTrackerRepository) FindByID(ctx context.Context, id string) (*domain.ThreadTracker, error) {
	var tracker domain.ThreadTracker
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tracker).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tracker, nil
}

func (r *threadTrackerRepository) FindUnresolvedByThread(ctx context.Context, accountID string, threadID domain.ThreadID) ([]*domain.ThreadTracker, error) {
	var trackers []*domain.ThreadTracker
	err := r.db.WithContext(ctx).
		Where("email_account_id = ? AND thread_id = ? AND resolved = ?", accountID, threadID, false).
		Order("sent_at DESC").
		Find(&trackers).Error
	return trackers, err
}

func (r *threadTrackerRepository) FindPendingFollowUps(ctx context.Context, accountID string) ([]*domain.ThreadTracker, error) {
	var trackers []*domain.ThreadTracker
	err := r.db.WithContext(ctx).
		Where("email_account_id = ? AND resolved = ? AND follow_up_applied_at IS NULL", accountID, false).
		Order("sent_at ASC").
		Find(&trackers).Error
	return trackers, err
}

func (r *threadTrackerRepository) Create(ctx context.Context, tracker *domain.ThreadTracker) error {
	if !tracker.Type.Valid() {
		return fmt.Errorf("invalid tracker type %q", tracker.Type)
	}
	if tracker.ID == "" {
		tracker.ID = uuid.New().String()
	}
	now := time.Now()
	tracker.CreatedAt = now
	tracker.UpdatedAt = now

	err := r.db.WithContext(ctx).Create(tracker).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("open %s tracker exists for thread %s: %w", tracker.Type, tracker.ThreadID, domain.ErrOptimisticConflict)
	}
	return err
}

func (r *threadTrackerRepository) Refresh(ctx context.Context, id string, messageID domain.MessageID, sentAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.ThreadTracker{}).
		Where("id = ? AND resolved = ? AND follow_up_applied_at IS NULL", id, false).
		Updates(map[string]interface{}{
			"message_id": messageID,
			"sent_at":    sentAt,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("refresh tracker %s: %w", id, domain.ErrOptimisticConflict)
	}
	return nil
}

func (r *threadTrackerRepository) Resolve(ctx context.Context, id string) error {
	// resolved never goes back to false, so the guard only avoids a useless write
	return r.db.WithContext(ctx).Model(&domain.ThreadTracker{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{
			"resolved":   true,
			"updated_at": time.Now(),
		}).Error
}

func (r *threadTrackerRepository) MarkFollowUpApplied(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.ThreadTracker{}).
		Where("id = ? AND resolved = ? AND follow_up_applied_at IS NULL", id, false).
		Updates(map[string]interface{}{
			"follow_up_applied_at": at,
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("mark follow-up on tracker %s: %w", id, domain.ErrOptimisticConflict)
	}
	return nil
}
