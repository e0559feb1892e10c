// Package transport defines the HTTP request and response shapes for the
// leads bounded context, decoupled from database models.
package transport

import (
	"time"

	"github.com/google/uuid"

	"servicesartisans_backend/internal/leads/repository"
)

// CreateLeadRequest is the public intake payload.
type CreateLeadRequest struct {
	ServiceType string `json:"serviceType" validate:"required,min=2,max=100"`
	City        string `json:"city" validate:"required,min=1,max=100"`
	PostalCode  string `json:"postalCode" validate:"required,min=2,max=10"`
	Description string `json:"description" validate:"required,min=10,max=2000"`
	Urgency     string `json:"urgency" validate:"omitempty,oneof=urgent cette_semaine flexible"`
	ClientName  string `json:"clientName" validate:"required,min=2,max=100"`
	ClientEmail string `json:"clientEmail" validate:"omitempty,email"`
	ClientPhone string `json:"clientPhone" validate:"omitempty,min=6,max=20"`
}

// QuoteRequest is a provider's priced offer on an assignment.
type QuoteRequest struct {
	AmountCents int64  `json:"amountCents" validate:"required,gt=0"`
	Details     string `json:"details" validate:"omitempty,max=2000"`
	ValidDays   int    `json:"validDays" validate:"omitempty,gt=0,lte=365"`
}

// DeclineRequest carries the optional decline reason.
type DeclineRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// LeadResponse is the outward lead shape.
type LeadResponse struct {
	ID          uuid.UUID `json:"id"`
	ServiceType string    `json:"serviceType"`
	City        string    `json:"city"`
	PostalCode  string    `json:"postalCode"`
	Description string    `json:"description"`
	Urgency     string    `json:"urgency,omitempty"`
	ClientName  string    `json:"clientName"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// EventResponse is one ledger fact.
type EventResponse struct {
	ID         uuid.UUID      `json:"id"`
	LeadID     uuid.UUID      `json:"leadId"`
	ProviderID *uuid.UUID     `json:"providerId,omitempty"`
	EventType  string         `json:"eventType"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AssignmentResponse is the outward assignment shape. Version is exposed
// so clients can detect concurrent changes.
type AssignmentResponse struct {
	ID         uuid.UUID  `json:"id"`
	LeadID     uuid.UUID  `json:"leadId"`
	ProviderID uuid.UUID  `json:"providerId"`
	Status     string     `json:"status"`
	Version    int        `json:"version"`
	AssignedAt time.Time  `json:"assignedAt"`
	ViewedAt   *time.Time `json:"viewedAt,omitempty"`
}

// LeadDetailResponse bundles a lead with its event history.
type LeadDetailResponse struct {
	Lead   LeadResponse    `json:"lead"`
	Events []EventResponse `json:"events"`
}

// FromLead maps the database model. Client contact details are deliberately
// omitted from the general response shape.
func FromLead(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:          lead.ID,
		ServiceType: lead.ServiceType,
		City:        lead.City,
		PostalCode:  lead.PostalCode,
		Description: lead.Description,
		Urgency:     lead.Urgency,
		ClientName:  lead.ClientName,
		Status:      lead.Status,
		CreatedAt:   lead.CreatedAt,
	}
}

// FromEvent maps one ledger row.
func FromEvent(ev repository.LeadEvent) EventResponse {
	return EventResponse{
		ID:         ev.ID,
		LeadID:     ev.LeadID,
		ProviderID: ev.ProviderID,
		EventType:  string(ev.EventType),
		Metadata:   ev.Metadata,
		CreatedAt:  ev.CreatedAt,
	}
}

// FromEvents maps a history slice preserving ledger order.
func FromEvents(events []repository.LeadEvent) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, ev := range events {
		out[i] = FromEvent(ev)
	}
	return out
}

// FromAssignment maps the database model.
func FromAssignment(a repository.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:         a.ID,
		LeadID:     a.LeadID,
		ProviderID: a.ProviderID,
		Status:     string(a.Status),
		Version:    a.Version,
		AssignedAt: a.AssignedAt,
		ViewedAt:   a.ViewedAt,
	}
}

// FromAssignments maps a slice.
func FromAssignments(assignments []repository.Assignment) []AssignmentResponse {
	out := make([]AssignmentResponse, len(assignments))
	for i, a := range assignments {
		out[i] = FromAssignment(a)
	}
	return out
}
