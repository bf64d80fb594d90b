package repository

import (
	"context"
	"errors"
	"time"

	"replytrack-backend/internal/tracking/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// draftSendLogRepository implements DraftSendLogRepository using GORM
type draftSendLogRepository struct {
	db *gorm.DB
}

// NewDraftSendLogRepository creates a new GORM-based DraftSendLogRepository
func NewDraftSendLogRepository(db *gorm.DB) DraftSendLogRepository {
	return &draftSendLogRepository{db: db}
}

func (r *draftSendLogRepository) Create(ctx context.Context, log *domain.DraftSendLog) (bool, error) {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = time.Now()

	err := r.db.WithContext(ctx).Create(log).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// redelivered outbound event for an already logged send
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *draftSendLogRepository) FindByActionID(ctx context.Context, actionID string) ([]*domain.DraftSendLog, error) {
	var logs []*domain.DraftSendLog
	err := r.db.WithContext(ctx).
		Where("executed_action_id = ?", actionID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
