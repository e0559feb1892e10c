package repository

import (
	"context"
	"errors"

	"servicesartisans_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadSelectCols = `
	id, service_type, city, postal_code, description, urgency,
	client_name, client_email, client_phone, status, created_at`

// CreateLead inserts a new lead in the initial created state. The ledger's
// created event is appended by the service after the row exists.
func (r *Repository) CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (service_type, city, postal_code, description, urgency,
			client_name, client_email, client_phone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING`+leadSelectCols+`
	`,
		params.ServiceType,
		params.City,
		params.PostalCode,
		params.Description,
		params.Urgency,
		params.ClientName,
		params.ClientEmail,
		params.ClientPhone,
		string(domain.EventCreated),
	).Scan(
		&lead.ID,
		&lead.ServiceType,
		&lead.City,
		&lead.PostalCode,
		&lead.Description,
		&lead.Urgency,
		&lead.ClientName,
		&lead.ClientEmail,
		&lead.ClientPhone,
		&lead.Status,
		&lead.CreatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// GetLead returns one lead by ID.
func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		SELECT`+leadSelectCols+`
		FROM leads
		WHERE id = $1
	`, id).Scan(
		&lead.ID,
		&lead.ServiceType,
		&lead.City,
		&lead.PostalCode,
		&lead.Description,
		&lead.Urgency,
		&lead.ClientName,
		&lead.ClientEmail,
		&lead.ClientPhone,
		&lead.Status,
		&lead.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, domain.ErrLeadNotFound
		}
		return Lead{}, err
	}
	return lead, nil
}
