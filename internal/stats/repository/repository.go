// Package repository reads the raw ledger and assignment rows the stats
// service folds. It never writes; all KPIs are replayed from facts.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRow is the slice of a ledger event the aggregator needs.
type EventRow struct {
	LeadID     uuid.UUID
	ProviderID *uuid.UUID
	EventType  string
	CreatedAt  time.Time
}

// AssignmentRow is the slice of an assignment the provider KPIs need.
type AssignmentRow struct {
	ProviderID uuid.UUID
	Status     string
	AssignedAt time.Time
	ViewedAt   *time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEventsBetween returns ledger events in [from, to) in ledger order.
func (r *Repository) ListEventsBetween(ctx context.Context, from, to time.Time) ([]EventRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT lead_id, provider_id, event_type, created_at
		FROM lead_events
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, seq ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var ev EventRow
		if err := rows.Scan(&ev.LeadID, &ev.ProviderID, &ev.EventType, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ListAssignmentsByProvider returns a provider's assignments assigned at or
// after since, oldest first. A zero since returns the full history.
func (r *Repository) ListAssignmentsByProvider(ctx context.Context, providerID uuid.UUID, since time.Time) ([]AssignmentRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, status, assigned_at, viewed_at
		FROM lead_assignments
		WHERE provider_id = $1 AND assigned_at >= $2
		ORDER BY assigned_at ASC
	`, providerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssignmentRow
	for rows.Next() {
		var a AssignmentRow
		if err := rows.Scan(&a.ProviderID, &a.Status, &a.AssignedAt, &a.ViewedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
