package domain

import (
	"time"

	trackingdomain "replytrack-backend/internal/tracking/domain"
)

// ExecutedRuleStatus is the rule engine's execution state.
// APPLYING is the only non-terminal state.
type ExecutedRuleStatus string

const (
	ExecutedRuleApplying ExecutedRuleStatus = "APPLYING"
	ExecutedRuleApplied  ExecutedRuleStatus = "APPLIED"
	ExecutedRuleSkipped  ExecutedRuleStatus = "SKIPPED"
	ExecutedRuleError    ExecutedRuleStatus = "ERROR"
)

// Terminal reports whether the rule has finished executing
func (s ExecutedRuleStatus) Terminal() bool {
	return s != ExecutedRuleApplying
}

// ActionType is the kind of action a rule performed
type ActionType string

const (
	ActionDraftEmail ActionType = "DRAFT_EMAIL"
	ActionLabel      ActionType = "LABEL"
	ActionArchive    ActionType = "ARCHIVE"
	ActionReply      ActionType = "REPLY"
	ActionForward    ActionType = "FORWARD"
	ActionMarkRead   ActionType = "MARK_READ"
)

// ExecutedRule is written by the rule engine; this service only reads it
type ExecutedRule struct {
	ID             string                   `json:"id" gorm:"primaryKey"`
	EmailAccountID string                   `json:"email_account_id" gorm:"index:idx_executed_rule_thread;not null"`
	ThreadID       trackingdomain.ThreadID  `json:"thread_id" gorm:"index:idx_executed_rule_thread;not null"`
	MessageID      trackingdomain.MessageID `json:"message_id" gorm:"not null"`
	Status         ExecutedRuleStatus       `json:"status" gorm:"not null"`
	Actions        []ActionItem             `json:"actions" gorm:"foreignKey:ExecutedRuleID"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ExecutedRule) TableName() string {
	return "executed_rules"
}

// ActionItem is one materialised action of an executed rule
type ActionItem struct {
	ID             string                  `json:"id" gorm:"primaryKey"`
	ExecutedRuleID string                  `json:"executed_rule_id" gorm:"index;not null"`
	Type           ActionType              `json:"type" gorm:"not null"`
	DraftID        *trackingdomain.DraftID `json:"draft_id,omitempty"`
	LabelID        *string                 `json:"label_id,omitempty"`
	Content        string                  `json:"content,omitempty" gorm:"type:text"`
	CreatedAt      time.Time               `json:"created_at"`
}

// TableName specifies the table name for GORM
func (ActionItem) TableName() string {
	return "executed_actions"
}
