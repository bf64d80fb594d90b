package domain

import "sort"

// TrackerPlan is the set of tracker writes that brings a thread's open
// trackers in line with a verdict. It is computed without I/O so the
// state transition can be tested apart from provider and classifier calls.
type TrackerPlan struct {
	// Resolve lists open trackers the verdict answers
	Resolve []*ThreadTracker
	// Refresh is an open tracker of the wanted type to repoint at the last message
	Refresh *ThreadTracker
	// Create is a new tracker to insert
	Create *ThreadTracker
	// Unchanged is an open tracker that already reflects the last message
	Unchanged *ThreadTracker
}

// Empty reports whether the plan performs no writes
func (p TrackerPlan) Empty() bool {
	return len(p.Resolve) == 0 && p.Refresh == nil && p.Create == nil
}

// PlanTransition derives tracker writes from the verdict and the thread's
// currently open trackers. last is the chronologically last message.
//
// An open tracker of the wanted type is refreshed in place unless its
// follow-up was already applied; since that checkpoint is permanent, a
// newer message gets a fresh tracker and the old one is resolved.
func PlanTransition(status ThreadStatus, open []*ThreadTracker, accountID string, last *Message) TrackerPlan {
	var plan TrackerPlan
	want, opens := status.TrackerType()

	sorted := make([]*ThreadTracker, 0, len(open))
	for _, t := range open {
		if t != nil && !t.Resolved {
			sorted = append(sorted, t)
		}
	}
	// newest first so duplicates resolve in favour of the latest
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SentAt.After(sorted[j].SentAt)
	})

	var matched *ThreadTracker
	for _, t := range sorted {
		if !opens || t.Type != want || matched != nil {
			plan.Resolve = append(plan.Resolve, t)
			continue
		}
		matched = t
	}

	if !opens || last == nil {
		return plan
	}

	switch {
	case matched == nil:
		plan.Create = newTracker(accountID, want, last)
	case matched.MessageID == last.ID:
		plan.Unchanged = matched
	case matched.FollowUpAppliedAt == nil:
		refreshed := *matched
		refreshed.MessageID = last.ID
		refreshed.SentAt = last.Date
		plan.Refresh = &refreshed
	default:
		plan.Resolve = append(plan.Resolve, matched)
		plan.Create = newTracker(accountID, want, last)
	}
	return plan
}

func newTracker(accountID string, t TrackerType, last *Message) *ThreadTracker {
	return &ThreadTracker{
		EmailAccountID: accountID,
		ThreadID:       last.ThreadID,
		MessageID:      last.ID,
		Type:           t,
		SentAt:         last.Date,
	}
}
