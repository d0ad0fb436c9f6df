// Package lifecycle holds the job status machine. Every status change in
// the system goes through Next; nothing else mutates a job's status.
package lifecycle

import "fmt"

type Status string

const (
	StatusPending            Status = "pending"
	StatusApproved           Status = "approved"
	StatusDepositPaid        Status = "deposit_paid"
	StatusInProgress         Status = "in_progress"
	StatusCompleted          Status = "completed"
	StatusRevisionRequested  Status = "revision_requested"
	StatusRevisionInProgress Status = "revision_in_progress"
	StatusRevisionCompleted  Status = "revision_completed"
	StatusApprovedByClient   Status = "approved_by_client"
	StatusFinalPaid          Status = "final_paid"
)

type Event string

const (
	EventApproveJob      Event = "approve_job"
	EventDepositVerified Event = "deposit_verified"
	EventClaim           Event = "claim"
	EventSubmitInitial   Event = "submit_initial"
	EventRequestRevision Event = "request_revision"
	EventStartRevision   Event = "start_revision"
	EventSubmitRevision  Event = "submit_revision"
	EventApproveWork     Event = "approve_work"
	EventFinalVerified   Event = "final_verified"
)

// transitions maps an event to the statuses it may fire from and the
// status it lands on. The table is the single source of truth.
var transitions = map[Event]struct {
	from []Status
	to   Status
}{
	EventApproveJob:      {from: []Status{StatusPending}, to: StatusApproved},
	EventDepositVerified: {from: []Status{StatusApproved}, to: StatusDepositPaid},
	EventClaim:           {from: []Status{StatusDepositPaid}, to: StatusInProgress},
	EventSubmitInitial:   {from: []Status{StatusInProgress}, to: StatusCompleted},
	EventRequestRevision: {from: []Status{StatusCompleted, StatusRevisionCompleted}, to: StatusRevisionRequested},
	EventStartRevision:   {from: []Status{StatusRevisionRequested}, to: StatusRevisionInProgress},
	EventSubmitRevision:  {from: []Status{StatusRevisionRequested, StatusRevisionInProgress}, to: StatusRevisionCompleted},
	EventApproveWork:     {from: []Status{StatusCompleted, StatusRevisionCompleted}, to: StatusApprovedByClient},
	EventFinalVerified:   {from: []Status{StatusCompleted, StatusRevisionCompleted, StatusApprovedByClient}, to: StatusFinalPaid},
}

// TransitionError reports an event fired from a status it cannot leave.
type TransitionError struct {
	From  Status
	Event Event
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s to job in status %s", e.Event, e.From)
}

// ValidStatus reports whether s belongs to the closed status set.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusDepositPaid, StatusInProgress,
		StatusCompleted, StatusRevisionRequested, StatusRevisionInProgress,
		StatusRevisionCompleted, StatusApprovedByClient, StatusFinalPaid:
		return true
	}
	return false
}

// CanTransition reports whether ev may fire from status from.
func CanTransition(from Status, ev Event) bool {
	t, ok := transitions[ev]
	if !ok {
		return false
	}
	for _, f := range t.from {
		if f == from {
			return true
		}
	}
	return false
}

// Next returns the status ev lands on when fired from from.
func Next(from Status, ev Event) (Status, error) {
	if !CanTransition(from, ev) {
		return "", TransitionError{From: from, Event: ev}
	}
	return transitions[ev].to, nil
}

// Terminal reports whether no event can fire from s.
func Terminal(s Status) bool {
	for ev := range transitions {
		if CanTransition(s, ev) {
			return false
		}
	}
	return true
}
