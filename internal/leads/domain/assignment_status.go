package domain

// AssignmentStatus is the lifecycle state of one (lead, provider) pairing.
// It is a materialized projection of the most recent relevant ledger event
// for that pairing and may only move along the transition DAG below.
type AssignmentStatus string

const (
	StatusPending   AssignmentStatus = "pending"
	StatusViewed    AssignmentStatus = "viewed"
	StatusQuoted    AssignmentStatus = "quoted"
	StatusDeclined  AssignmentStatus = "declined"
	StatusAccepted  AssignmentStatus = "accepted"
	StatusCompleted AssignmentStatus = "completed"
	StatusExpired   AssignmentStatus = "expired"
)

// legalTransitions is the status DAG. Anything absent here is illegal,
// including every transition out of a terminal status.
var legalTransitions = map[AssignmentStatus]map[AssignmentStatus]struct{}{
	StatusPending: {
		StatusViewed:   {},
		StatusDeclined: {},
		StatusExpired:  {},
	},
	StatusViewed: {
		StatusQuoted:   {},
		StatusDeclined: {},
		StatusExpired:  {},
	},
	StatusQuoted: {
		StatusAccepted: {},
		StatusDeclined: {},
		StatusExpired:  {},
	},
	StatusAccepted: {
		StatusCompleted: {},
	},
}

// statusEvents maps each reachable status to the ledger event type appended
// alongside the transition. Every successful transition writes exactly one
// such event in the same transaction.
var statusEvents = map[AssignmentStatus]EventType{
	StatusViewed:    EventViewed,
	StatusQuoted:    EventQuoted,
	StatusDeclined:  EventDeclined,
	StatusAccepted:  EventAccepted,
	StatusCompleted: EventCompleted,
	StatusExpired:   EventExpired,
}

// IsKnownStatus reports whether s is part of the assignment vocabulary.
func IsKnownStatus(s AssignmentStatus) bool {
	if s == StatusPending {
		return true
	}
	_, ok := statusEvents[s]
	return ok
}

// CanTransition reports whether from → to is a legal walk of the DAG.
func CanTransition(from, to AssignmentStatus) bool {
	targets, ok := legalTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// IsTerminal reports whether no further transitions may leave s.
func IsTerminal(s AssignmentStatus) bool {
	switch s {
	case StatusDeclined, StatusCompleted, StatusExpired:
		return true
	}
	return false
}

// EventTypeFor returns the ledger event type recorded when an assignment
// enters status s. Returns EventDispatched for the initial pending state.
func EventTypeFor(s AssignmentStatus) EventType {
	if s == StatusPending {
		return EventDispatched
	}
	return statusEvents[s]
}

// LiveStatuses returns the non-terminal statuses, the set scanned by the
// lifecycle sweeper.
func LiveStatuses() []AssignmentStatus {
	return []AssignmentStatus{StatusPending, StatusViewed, StatusQuoted, StatusAccepted}
}
