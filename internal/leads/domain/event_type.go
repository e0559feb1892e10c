// Package domain provides core business rules for the lead dispatch and
// lifecycle bounded context: the ledger event vocabulary, the assignment
// status machine, and the typed errors both expose.
package domain

// EventType identifies the kind of fact appended to the lead ledger.
type EventType string

const (
	EventCreated    EventType = "created"
	EventDispatched EventType = "dispatched"
	EventViewed     EventType = "viewed"
	EventQuoted     EventType = "quoted"
	EventDeclined   EventType = "declined"
	EventReassigned EventType = "reassigned"
	EventAccepted   EventType = "accepted"
	EventCompleted  EventType = "completed"
	EventExpired    EventType = "expired"
)

var knownEventTypes = map[EventType]struct{}{
	EventCreated:    {},
	EventDispatched: {},
	EventViewed:     {},
	EventQuoted:     {},
	EventDeclined:   {},
	EventReassigned: {},
	EventAccepted:   {},
	EventCompleted:  {},
	EventExpired:    {},
}

// IsValidEventType reports whether t belongs to the enumerated ledger
// vocabulary. The database mirrors this set with a CHECK constraint.
func IsValidEventType(t EventType) bool {
	_, ok := knownEventTypes[t]
	return ok
}

// KnownEventTypes returns the event vocabulary in funnel order. Consumers
// that fold the ledger (stats) iterate this instead of hardcoding stages.
func KnownEventTypes() []EventType {
	return []EventType{
		EventCreated,
		EventDispatched,
		EventViewed,
		EventQuoted,
		EventAccepted,
		EventCompleted,
		EventDeclined,
		EventReassigned,
		EventExpired,
	}
}

// Metadata keys used across ledger events. The ledger itself treats
// metadata as opaque; these constants keep producers and consumers aligned.
const (
	MetaKeyReason       = "reason"
	MetaKeyAmountCents  = "amountCents"
	MetaKeyValidDays    = "validDays"
	MetaKeyFromProvider = "fromProviderId"
	MetaKeyToProvider   = "toProviderId"

	// ReasonNoCandidates marks the terminal expired event appended when
	// dispatch finds zero eligible providers for a lead.
	ReasonNoCandidates = "no_candidates"
	// ReasonTTLExceeded marks sweeper-driven expiries of unanswered
	// assignments.
	ReasonTTLExceeded = "ttl_exceeded"
	// ReasonQuoteExpired marks sweeper-driven expiries of quoted
	// assignments whose quote validity lapsed without acceptance.
	ReasonQuoteExpired = "quote_expired"
)
