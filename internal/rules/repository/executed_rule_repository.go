package repository

import (
	"context"
	"errors"

	rulesdomain "replytrack-backend/internal/rules/domain"
	trackingdomain "replytrack-backend/internal/tracking/domain"

	"gorm.io/gorm"
)

// ExecutedRuleRepository is read access to the rule engine's persisted actions
type ExecutedRuleRepository interface {
	// LatestDraftAction returns the newest DRAFT_EMAIL action with a draft id
	// for the thread, or nil when there is none.
	LatestDraftAction(ctx context.Context, accountID string, threadID trackingdomain.ThreadID) (*rulesdomain.ActionItem, error)
}

// executedRuleRepository implements ExecutedRuleRepository using GORM
type executedRuleRepository struct {
	db *gorm.DB
}

// NewExecutedRuleRepository creates a new instance of executedRuleRepository
func NewExecutedRuleRepository(db *gorm.DB) ExecutedRuleRepository {
	return &executedRuleRepository{
		db: db,
	}
}

func (r *executedRuleRepository) LatestDraftAction(ctx context.Context, accountID string, threadID trackingdomain.ThreadID) (*rulesdomain.ActionItem, error) {
	var action rulesdomain.ActionItem
	err := r.db.WithContext(ctx).
		Table("executed_actions").
		Select("executed_actions.*").
		Joins("JOIN executed_rules ON executed_rules.id = executed_actions.executed_rule_id").
		Where("executed_rules.email_account_id = ? AND executed_rules.thread_id = ?", accountID, threadID).
		Where("executed_rules.status <> ?", rulesdomain.ExecutedRuleApplying).
		Where("executed_actions.type = ? AND executed_actions.draft_id IS NOT NULL", rulesdomain.ActionDraftEmail).
		Order("executed_actions.created_at DESC").
		First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &action, nil
}
