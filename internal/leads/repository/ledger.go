package repository

import (
	"context"
	"encoding/json"

	"servicesartisans_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Append writes one immutable fact to the lead ledger and refreshes the
// lead's denormalized status projection in the same transaction.
func (r *Repository) Append(ctx context.Context, params AppendEventParams) (LeadEvent, error) {
	if !domain.IsValidEventType(params.EventType) {
		return LeadEvent{}, domain.ErrInvalidEventType
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return LeadEvent{}, err
	}
	defer tx.Rollback(ctx)

	event, err := appendEventTx(ctx, tx, params)
	if err != nil {
		return LeadEvent{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return LeadEvent{}, err
	}
	return event, nil
}

// appendEventTx inserts a ledger event inside an open transaction and
// projects the event type onto leads.status. Callers that pair an append
// with an assignment update share the transaction so both land atomically.
func appendEventTx(ctx context.Context, tx pgx.Tx, params AppendEventParams) (LeadEvent, error) {
	metadataJSON, err := json.Marshal(params.Metadata)
	if err != nil {
		return LeadEvent{}, err
	}

	var event LeadEvent
	err = tx.QueryRow(ctx, `
		INSERT INTO lead_events (lead_id, provider_id, event_type, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, provider_id, event_type, seq, created_at
	`, params.LeadID, params.ProviderID, string(params.EventType), metadataJSON).Scan(
		&event.ID,
		&event.LeadID,
		&event.ProviderID,
		&event.EventType,
		&event.Seq,
		&event.CreatedAt,
	)
	if err != nil {
		return LeadEvent{}, mapLedgerError(err)
	}
	// Metadata is already in hand; no need to re-scan the stored JSONB.
	event.Metadata = params.Metadata

	// Keep the denormalized lead status equal to the latest ledger event.
	if _, err := tx.Exec(ctx, `
		UPDATE leads SET status = $2 WHERE id = $1
	`, params.LeadID, string(params.EventType)); err != nil {
		return LeadEvent{}, err
	}

	return event, nil
}

const eventSelectCols = `
	id, lead_id, provider_id, event_type, metadata, seq, created_at`

// ListEventsByLead returns every ledger event for a lead in append order.
// Ties on created_at are resolved by seq, i.e. insertion order.
func (r *Repository) ListEventsByLead(ctx context.Context, leadID uuid.UUID) ([]LeadEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+eventSelectCols+`
		FROM lead_events
		WHERE lead_id = $1
		ORDER BY created_at ASC, seq ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// HasEvent reports whether at least one event of the given type exists for
// the lead. The dispatch trigger uses this for idempotency.
func (r *Repository) HasEvent(ctx context.Context, leadID uuid.UUID, eventType domain.EventType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM lead_events WHERE lead_id = $1 AND event_type = $2
		)
	`, leadID, string(eventType)).Scan(&exists)
	return exists, err
}

// HasTerminalExpiry reports whether the lead already carries a lead-level
// expired event, i.e. one without a provider attached. Only candidate-pool
// exhaustion appends such events; provider-level expiries always carry the
// provider id.
func (r *Repository) HasTerminalExpiry(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM lead_events
			WHERE lead_id = $1 AND event_type = 'expired' AND provider_id IS NULL
		)
	`, leadID).Scan(&exists)
	return exists, err
}

func scanEvent(row pgx.Row) (LeadEvent, error) {
	var event LeadEvent
	var rawMetadata []byte
	if err := row.Scan(
		&event.ID,
		&event.LeadID,
		&event.ProviderID,
		&event.EventType,
		&rawMetadata,
		&event.Seq,
		&event.CreatedAt,
	); err != nil {
		return LeadEvent{}, err
	}
	if len(rawMetadata) > 0 {
		_ = json.Unmarshal(rawMetadata, &event.Metadata)
	}
	return event, nil
}

func collectEvents(rows pgx.Rows) ([]LeadEvent, error) {
	items := make([]LeadEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
