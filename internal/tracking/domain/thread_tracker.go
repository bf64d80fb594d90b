package domain

import (
	"fmt"
	"time"
)

// TrackerType is the kind of open conversational obligation on a thread
type TrackerType string

const (
	// TrackerAwaiting: the account owner sent the last message and waits on a reply
	TrackerAwaiting TrackerType = "AWAITING"
	// TrackerNeedsReply: the account owner received a message and owes a reply
	TrackerNeedsReply TrackerType = "NEEDS_REPLY"
)

// Valid reports whether t is one of the known tracker types
func (t TrackerType) Valid() bool {
	switch t {
	case TrackerAwaiting, TrackerNeedsReply:
		return true
	}
	return false
}

// ThreadTracker records that a thread currently has an open obligation.
// Resolved only ever goes false -> true, and FollowUpAppliedAt is written
// at most once. At most one unresolved tracker per (account, thread, type)
// is enforced by a partial unique index.
type ThreadTracker struct {
	ID                string      `json:"id" gorm:"primaryKey"`
	EmailAccountID    string      `json:"email_account_id" gorm:"not null;index:idx_tracker_account_thread;uniqueIndex:idx_tracker_open,where:resolved = false"`
	ThreadID          ThreadID    `json:"thread_id" gorm:"not null;index:idx_tracker_account_thread;uniqueIndex:idx_tracker_open,where:resolved = false"`
	MessageID         MessageID   `json:"message_id" gorm:"not null"`
	Type              TrackerType `json:"type" gorm:"not null;uniqueIndex:idx_tracker_open,where:resolved = false"`
	SentAt            time.Time   `json:"sent_at" gorm:"not null"`
	Resolved          bool        `json:"resolved" gorm:"not null;default:false;index"`
	FollowUpAppliedAt *time.Time  `json:"follow_up_applied_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ThreadTracker) TableName() string {
	return "thread_trackers"
}

// EligibleForFollowUp reports whether the follow-up sweep may still act on the tracker
func (t *ThreadTracker) EligibleForFollowUp() bool {
	return !t.Resolved && t.FollowUpAppliedAt == nil
}

func (t *ThreadTracker) String() string {
	return fmt.Sprintf("%s(%s thread=%s msg=%s)", t.Type, t.ID, t.ThreadID, t.MessageID)
}
