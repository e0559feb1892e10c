package events

import (
	"github.com/google/uuid"

	platformevents "servicesartisans_backend/platform/events"
)

// Event names for the lead lifecycle. Notification and analytics
// subscribers key off these.
const (
	LeadCreatedEvent    = "lead.created"
	LeadDispatchedEvent = "lead.dispatched"
	LeadViewedEvent     = "lead.viewed"
	QuoteSubmittedEvent = "lead.quoted"
	LeadDeclinedEvent   = "lead.declined"
	LeadReassignedEvent = "lead.reassigned"
	QuoteAcceptedEvent  = "lead.accepted"
	JobCompletedEvent   = "lead.completed"
	LeadExpiredEvent    = "lead.expired"
)

// LeadFact is the payload published on the bus after a ledger append
// commits. It carries just enough for subscribers to act; anything
// heavier is re-read from the store.
type LeadFact struct {
	platformevents.BaseEvent
	Name         string         `json:"name"`
	LeadID       uuid.UUID      `json:"leadId"`
	ProviderID   *uuid.UUID     `json:"providerId,omitempty"`
	EventType    string         `json:"eventType"`
	AssignmentID *uuid.UUID     `json:"assignmentId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// EventName implements events.Event.
func (e LeadFact) EventName() string { return e.Name }

// NewLeadFact builds a LeadFact for the given bus event name.
func NewLeadFact(name string, leadID uuid.UUID, providerID, assignmentID *uuid.UUID, eventType string, metadata map[string]any) LeadFact {
	return LeadFact{
		BaseEvent:    platformevents.NewBaseEvent(),
		Name:         name,
		LeadID:       leadID,
		ProviderID:   providerID,
		EventType:    eventType,
		AssignmentID: assignmentID,
		Metadata:     metadata,
	}
}

// FactNameFor maps a ledger event type string to the bus event name.
// Unknown types map to an empty string and are not published.
func FactNameFor(eventType string) string {
	switch eventType {
	case "created":
		return LeadCreatedEvent
	case "dispatched":
		return LeadDispatchedEvent
	case "viewed":
		return LeadViewedEvent
	case "quoted":
		return QuoteSubmittedEvent
	case "declined":
		return LeadDeclinedEvent
	case "reassigned":
		return LeadReassignedEvent
	case "accepted":
		return QuoteAcceptedEvent
	case "completed":
		return JobCompletedEvent
	case "expired":
		return LeadExpiredEvent
	}
	return ""
}
