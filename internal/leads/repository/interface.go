package repository

import (
	"context"
	"time"

	"servicesartisans_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Lead is the database model for a client service request. The intake flow
// owns creation; the row is immutable afterwards except for the denormalized
// status field, which always mirrors the latest ledger event for the lead.
type Lead struct {
	ID          uuid.UUID `db:"id"`
	ServiceType string    `db:"service_type"`
	City        string    `db:"city"`
	PostalCode  string    `db:"postal_code"`
	Description string    `db:"description"`
	Urgency     string    `db:"urgency"`
	ClientName  string    `db:"client_name"`
	ClientEmail *string   `db:"client_email"`
	ClientPhone *string   `db:"client_phone"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
}

// LeadEvent is an immutable ledger fact. Events are totally ordered per lead
// by (created_at, seq); seq breaks wall-clock ties by insertion order.
type LeadEvent struct {
	ID         uuid.UUID        `db:"id"`
	LeadID     uuid.UUID        `db:"lead_id"`
	ProviderID *uuid.UUID       `db:"provider_id"`
	EventType  domain.EventType `db:"event_type"`
	Metadata   map[string]any   `db:"metadata"`
	Seq        int64            `db:"seq"`
	CreatedAt  time.Time        `db:"created_at"`
}

// Assignment pairs a lead with one candidate provider. The version column
// drives compare-and-swap updates; status may only walk the domain DAG.
type Assignment struct {
	ID         uuid.UUID               `db:"id"`
	LeadID     uuid.UUID               `db:"lead_id"`
	ProviderID uuid.UUID               `db:"provider_id"`
	Status     domain.AssignmentStatus `db:"status"`
	Version    int                     `db:"version"`
	AssignedAt time.Time               `db:"assigned_at"`
	ViewedAt   *time.Time              `db:"viewed_at"`
}

// Quote is a provider's priced offer on an assignment, persisted alongside
// the quoted transition.
type Quote struct {
	ID           uuid.UUID `db:"id"`
	LeadID       uuid.UUID `db:"lead_id"`
	ProviderID   uuid.UUID `db:"provider_id"`
	AssignmentID uuid.UUID `db:"assignment_id"`
	AmountCents  int64     `db:"amount_cents"`
	Details      *string   `db:"details"`
	ValidUntil   time.Time `db:"valid_until"`
	CreatedAt    time.Time `db:"created_at"`
}

// CreateLeadParams contains intake data for a new lead.
type CreateLeadParams struct {
	ServiceType string
	City        string
	PostalCode  string
	Description string
	Urgency     string
	ClientName  string
	ClientEmail *string
	ClientPhone *string
}

// AppendEventParams describes a ledger append.
type AppendEventParams struct {
	LeadID     uuid.UUID
	ProviderID *uuid.UUID
	EventType  domain.EventType
	Metadata   map[string]any
}

// QuoteParams carries quote data written atomically with a quoted transition.
type QuoteParams struct {
	AmountCents int64
	Details     *string
	ValidUntil  time.Time
}

// TransitionParams describes a compare-and-swap status change. The update is
// applied only when the stored version equals ExpectedVersion; exactly one
// ledger event of the matching type is appended in the same transaction.
type TransitionParams struct {
	AssignmentID    uuid.UUID
	ExpectedVersion int
	NewStatus       domain.AssignmentStatus
	Metadata        map[string]any
	Quote           *QuoteParams
}

// ExpirableFilter selects live assignments whose response window elapsed.
type ExpirableFilter struct {
	PendingBefore time.Time // pending rows assigned before this instant
	ViewedBefore  time.Time // viewed rows viewed before this instant
	QuotedBefore  time.Time // quoted rows whose quote validity ended before this instant
	Limit         int
}

// LeadStore provides lead intake and read operations.
type LeadStore interface {
	CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (Lead, error)
}

// Ledger is the append-only store of lead facts. It deliberately exposes no
// update or delete primitive; the storage layer additionally blocks mutation
// with triggers mapped to domain.ErrImmutabilityViolation.
type Ledger interface {
	Append(ctx context.Context, params AppendEventParams) (LeadEvent, error)
	ListEventsByLead(ctx context.Context, leadID uuid.UUID) ([]LeadEvent, error)
	HasEvent(ctx context.Context, leadID uuid.UUID, eventType domain.EventType) (bool, error)
	HasTerminalExpiry(ctx context.Context, leadID uuid.UUID) (bool, error)
}

// AssignmentStore owns the (lead, provider) pairings and their CAS lifecycle.
type AssignmentStore interface {
	CreateAssignment(ctx context.Context, leadID, providerID uuid.UUID, event AppendEventParams) (Assignment, error)
	GetAssignment(ctx context.Context, id uuid.UUID) (Assignment, error)
	GetAssignmentForProvider(ctx context.Context, id, providerID uuid.UUID) (Assignment, error)
	ListAssignmentsByLead(ctx context.Context, leadID uuid.UUID) ([]Assignment, error)
	ListActiveByProvider(ctx context.Context, providerID uuid.UUID) ([]Assignment, error)
	ListExpirable(ctx context.Context, filter ExpirableFilter) ([]Assignment, error)
	GetQuoteByAssignment(ctx context.Context, assignmentID uuid.UUID) (Quote, error)
	Transition(ctx context.Context, params TransitionParams) (Assignment, LeadEvent, error)
}

// Store aggregates the narrow interfaces the dispatch core depends on.
type Store interface {
	LeadStore
	Ledger
	AssignmentStore
}
