package domain

import "servicesartisans_backend/platform/apperr"

// Sentinel domain errors. Services return these values directly so callers
// can compare with errors.Is while the HTTP layer maps the apperr kind.
var (
	// ErrInvalidEventType rejects an append whose type is outside the
	// enumerated ledger vocabulary.
	ErrInvalidEventType = apperr.Validation("invalid lead event type")

	// ErrUnknownLead rejects an append whose lead does not exist.
	ErrUnknownLead = apperr.Validation("unknown lead")

	// ErrInvalidTransitionRequest rejects a transition request that is
	// malformed before any state is consulted, e.g. an unknown target
	// status or an attempt to transition into pending.
	ErrInvalidTransitionRequest = apperr.Validation("invalid transition request")

	// ErrLeadNotFound signals a missing lead on read paths.
	ErrLeadNotFound = apperr.NotFound("lead not found")

	// ErrAssignmentNotFound signals a missing assignment.
	ErrAssignmentNotFound = apperr.NotFound("assignment not found")

	// ErrDuplicateAssignment rejects a second assignment for the same
	// (lead, provider) pair.
	ErrDuplicateAssignment = apperr.Conflict("assignment already exists for this lead and provider")

	// ErrVersionConflict signals a lost optimistic-concurrency race. The
	// caller must re-read current state; usually the lead has moved on.
	ErrVersionConflict = apperr.Conflict("lead is no longer available")

	// ErrIllegalTransition rejects a status change that is not an edge of
	// the assignment DAG (e.g. completing a declined assignment).
	ErrIllegalTransition = apperr.Conflict("illegal assignment transition")

	// ErrQuoteNotFound signals a quoted assignment without a quote row,
	// which should never happen since both are written in one transaction.
	ErrQuoteNotFound = apperr.NotFound("quote not found")

	// ErrQuoteExpired rejects acceptance of a quote past its validity
	// window.
	ErrQuoteExpired = apperr.Conflict("quote validity window has passed")

	// ErrImmutabilityViolation surfaces a blocked mutation of the
	// append-only ledger. This is a programmer error and must propagate
	// loudly; it is never retried.
	ErrImmutabilityViolation = apperr.Internal("lead ledger is append-only")
)
