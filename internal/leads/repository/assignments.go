package repository

import (
	"context"
	"errors"
	"fmt"

	"servicesartisans_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const assignmentSelectCols = `
	id, lead_id, provider_id, status, version, assigned_at, viewed_at`

// CreateAssignment inserts a pending assignment and appends the matching
// dispatched (or reassigned) event in one transaction. A second assignment
// for the same (lead, provider) pair fails with ErrDuplicateAssignment.
func (r *Repository) CreateAssignment(ctx context.Context, leadID, providerID uuid.UUID, event AppendEventParams) (Assignment, error) {
	if !domain.IsValidEventType(event.EventType) {
		return Assignment{}, domain.ErrInvalidEventType
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, err
	}
	defer tx.Rollback(ctx)

	var assignment Assignment
	err = tx.QueryRow(ctx, `
		INSERT INTO lead_assignments (lead_id, provider_id, status)
		VALUES ($1, $2, $3)
		RETURNING`+assignmentSelectCols+`
	`, leadID, providerID, string(domain.StatusPending)).Scan(
		&assignment.ID,
		&assignment.LeadID,
		&assignment.ProviderID,
		&assignment.Status,
		&assignment.Version,
		&assignment.AssignedAt,
		&assignment.ViewedAt,
	)
	if err != nil {
		return Assignment{}, mapAssignmentError(err)
	}

	if _, err := appendEventTx(ctx, tx, event); err != nil {
		return Assignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, err
	}
	return assignment, nil
}

// Transition performs the compare-and-swap status change. The update is
// applied only when the stored version equals ExpectedVersion; otherwise
// the caller lost the race and receives ErrVersionConflict. Exactly one
// ledger event of the matching type is written in the same transaction,
// along with the optional quote row for quoted transitions.
func (r *Repository) Transition(ctx context.Context, params TransitionParams) (Assignment, LeadEvent, error) {
	if !domain.IsKnownStatus(params.NewStatus) || params.NewStatus == domain.StatusPending {
		return Assignment{}, LeadEvent{}, domain.ErrInvalidTransitionRequest
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, LeadEvent{}, err
	}
	defer tx.Rollback(ctx)

	var current Assignment
	err = tx.QueryRow(ctx, `
		SELECT`+assignmentSelectCols+`
		FROM lead_assignments
		WHERE id = $1
	`, params.AssignmentID).Scan(
		&current.ID,
		&current.LeadID,
		&current.ProviderID,
		&current.Status,
		&current.Version,
		&current.AssignedAt,
		&current.ViewedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, LeadEvent{}, domain.ErrAssignmentNotFound
		}
		return Assignment{}, LeadEvent{}, err
	}

	if current.Version != params.ExpectedVersion {
		return Assignment{}, LeadEvent{}, domain.ErrVersionConflict
	}
	if !domain.CanTransition(current.Status, params.NewStatus) {
		return Assignment{}, LeadEvent{}, domain.ErrIllegalTransition
	}

	var updated Assignment
	err = tx.QueryRow(ctx, `
		UPDATE lead_assignments
		SET status = $3,
			version = version + 1,
			viewed_at = CASE WHEN $3 = 'viewed' THEN now() ELSE viewed_at END
		WHERE id = $1 AND version = $2
		RETURNING`+assignmentSelectCols+`
	`, params.AssignmentID, params.ExpectedVersion, string(params.NewStatus)).Scan(
		&updated.ID,
		&updated.LeadID,
		&updated.ProviderID,
		&updated.Status,
		&updated.Version,
		&updated.AssignedAt,
		&updated.ViewedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row changed between the read and the CAS: someone else won.
			return Assignment{}, LeadEvent{}, domain.ErrVersionConflict
		}
		return Assignment{}, LeadEvent{}, err
	}

	event, err := appendEventTx(ctx, tx, AppendEventParams{
		LeadID:     updated.LeadID,
		ProviderID: &updated.ProviderID,
		EventType:  domain.EventTypeFor(params.NewStatus),
		Metadata:   params.Metadata,
	})
	if err != nil {
		return Assignment{}, LeadEvent{}, err
	}

	if params.Quote != nil {
		if params.NewStatus != domain.StatusQuoted {
			return Assignment{}, LeadEvent{}, fmt.Errorf("quote payload only valid on quoted transition, got %s", params.NewStatus)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO lead_quotes (lead_id, provider_id, assignment_id, amount_cents, details, valid_until)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, updated.LeadID, updated.ProviderID, updated.ID, params.Quote.AmountCents, params.Quote.Details, params.Quote.ValidUntil); err != nil {
			return Assignment{}, LeadEvent{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, LeadEvent{}, err
	}
	return updated, event, nil
}

// GetQuoteByAssignment returns the quote written with the quoted transition.
func (r *Repository) GetQuoteByAssignment(ctx context.Context, assignmentID uuid.UUID) (Quote, error) {
	var q Quote
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, provider_id, assignment_id, amount_cents, details, valid_until, created_at
		FROM lead_quotes
		WHERE assignment_id = $1
	`, assignmentID).Scan(
		&q.ID,
		&q.LeadID,
		&q.ProviderID,
		&q.AssignmentID,
		&q.AmountCents,
		&q.Details,
		&q.ValidUntil,
		&q.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, domain.ErrQuoteNotFound
		}
		return Quote{}, err
	}
	return q, nil
}

// GetAssignment returns one assignment by ID.
func (r *Repository) GetAssignment(ctx context.Context, id uuid.UUID) (Assignment, error) {
	return r.getAssignment(ctx, `WHERE id = $1`, id)
}

// GetAssignmentForProvider returns an assignment only when it belongs to the
// given provider, so provider-facing handlers cannot act on foreign rows.
func (r *Repository) GetAssignmentForProvider(ctx context.Context, id, providerID uuid.UUID) (Assignment, error) {
	return r.getAssignment(ctx, `WHERE id = $1 AND provider_id = $2`, id, providerID)
}

func (r *Repository) getAssignment(ctx context.Context, where string, args ...any) (Assignment, error) {
	var a Assignment
	err := r.pool.QueryRow(ctx, `
		SELECT`+assignmentSelectCols+`
		FROM lead_assignments
	`+where, args...).Scan(
		&a.ID,
		&a.LeadID,
		&a.ProviderID,
		&a.Status,
		&a.Version,
		&a.AssignedAt,
		&a.ViewedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, domain.ErrAssignmentNotFound
		}
		return Assignment{}, err
	}
	return a, nil
}

// ListAssignmentsByLead returns every assignment for a lead, oldest first.
func (r *Repository) ListAssignmentsByLead(ctx context.Context, leadID uuid.UUID) ([]Assignment, error) {
	return r.listAssignments(ctx, `
		SELECT`+assignmentSelectCols+`
		FROM lead_assignments
		WHERE lead_id = $1
		ORDER BY assigned_at ASC
	`, leadID)
}

// ListActiveByProvider returns the provider's live queue, newest first.
// Terminal assignments drop out of the queue silently (sweeper expiries
// included).
func (r *Repository) ListActiveByProvider(ctx context.Context, providerID uuid.UUID) ([]Assignment, error) {
	return r.listAssignments(ctx, `
		SELECT`+assignmentSelectCols+`
		FROM lead_assignments
		WHERE provider_id = $1
		  AND status IN ('pending', 'viewed', 'quoted', 'accepted')
		ORDER BY assigned_at DESC
	`, providerID)
}

// ListExpirable returns live assignments whose window elapsed: pending rows
// by assigned_at, viewed rows by viewed_at, quoted rows by the quote's
// valid_until. Accepted rows are never swept; completion is the provider's
// call.
func (r *Repository) ListExpirable(ctx context.Context, filter ExpirableFilter) ([]Assignment, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	return r.listAssignments(ctx, `
		SELECT`+assignmentSelectCols+`
		FROM lead_assignments
		WHERE (status = 'pending' AND assigned_at < $1)
		   OR (status = 'viewed' AND viewed_at < $2)
		   OR (status = 'quoted' AND EXISTS (
			SELECT 1 FROM lead_quotes q
			WHERE q.assignment_id = lead_assignments.id
			  AND q.valid_until < $3
		   ))
		ORDER BY assigned_at ASC
		LIMIT $4
	`, filter.PendingBefore, filter.ViewedBefore, filter.QuotedBefore, limit)
}

func (r *Repository) listAssignments(ctx context.Context, query string, args ...any) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Assignment, 0)
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(
			&a.ID,
			&a.LeadID,
			&a.ProviderID,
			&a.Status,
			&a.Version,
			&a.AssignedAt,
			&a.ViewedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
