package domain

import "time"

// EmailAccount is a connected mailbox plus its follow-up settings.
// Follow-up thresholds are fractional days; nil disables that reminder type.
type EmailAccount struct {
	ID            string `json:"id" gorm:"primaryKey"`
	Email         string `json:"email" gorm:"uniqueIndex;not null"`
	Name          string `json:"name"`
	Provider      string `json:"provider" gorm:"default:google"`
	AccessToken   string `json:"-"`
	RefreshToken  string `json:"-"`
	LastHistoryID uint64 `json:"last_history_id" gorm:"default:0"`

	FollowUpAwaitingReplyDays *float64 `json:"follow_up_awaiting_reply_days,omitempty"`
	FollowUpNeedsReplyDays    *float64 `json:"follow_up_needs_reply_days,omitempty"`
	FollowUpAutoDraftEnabled  bool     `json:"follow_up_auto_draft_enabled" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (EmailAccount) TableName() string {
	return "email_accounts"
}

// FollowUpsEnabled reports whether any follow-up reminder type is configured
func (a *EmailAccount) FollowUpsEnabled() bool {
	return a.FollowUpAwaitingReplyDays != nil || a.FollowUpNeedsReplyDays != nil
}
