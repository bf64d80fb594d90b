package domain

import "time"

// SentFromDraftThreshold is the similarity at or above which a sent
// message counts as the AI draft itself
const SentFromDraftThreshold = 0.9

// DraftSendLog correlates a sent message with the AI draft that was open
// on its thread. Rows are written once and never updated.
type DraftSendLog struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	ExecutedActionID string    `json:"executed_action_id" gorm:"not null;uniqueIndex:idx_draft_send_log_action_message"`
	SentMessageID    MessageID `json:"sent_message_id" gorm:"not null;uniqueIndex:idx_draft_send_log_action_message"`
	DraftID          DraftID   `json:"draft_id" gorm:"not null"`
	SimilarityScore  float64   `json:"similarity_score" gorm:"not null"`
	WasSentFromDraft bool      `json:"was_sent_from_draft" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (DraftSendLog) TableName() string {
	return "draft_send_logs"
}

// WasSentFromDraft applies the send-from-draft threshold to a similarity score
func WasSentFromDraft(score float64) bool {
	return score >= SentFromDraftThreshold
}
