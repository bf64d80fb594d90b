package domain

// ThreadStatus is the classifier verdict for a thread
type ThreadStatus string

const (
	StatusAwaitingReply ThreadStatus = "AWAITING_REPLY"
	StatusNeedsReply    ThreadStatus = "NEEDS_REPLY"
	StatusNone          ThreadStatus = "NONE"
)

// Label names applied by the reconciler and the follow-up sweep
const (
	LabelAwaitingReply = "Awaiting Reply"
	LabelToReply       = "To Reply"
	LabelFollowUp      = "Follow-up"
)

// StatusVerdict is the classifier output. Rationale is for logs only.
type StatusVerdict struct {
	Status    ThreadStatus `json:"status"`
	Rationale string       `json:"rationale"`
}

// ParseThreadStatus maps classifier output onto a known status
func ParseThreadStatus(s string) (ThreadStatus, bool) {
	switch ThreadStatus(s) {
	case StatusAwaitingReply, StatusNeedsReply, StatusNone:
		return ThreadStatus(s), true
	}
	return "", false
}

// TrackerType returns the tracker the status opens. NONE opens nothing.
func (s ThreadStatus) TrackerType() (TrackerType, bool) {
	switch s {
	case StatusAwaitingReply:
		return TrackerAwaiting, true
	case StatusNeedsReply:
		return TrackerNeedsReply, true
	case StatusNone:
		return "", false
	}
	return "", false
}

// LabelName returns the status label, or "" when the status carries none
func (s ThreadStatus) LabelName() string {
	switch s {
	case StatusAwaitingReply:
		return LabelAwaitingReply
	case StatusNeedsReply:
		return LabelToReply
	case StatusNone:
		return ""
	}
	return ""
}
