// Package repository persists provider profiles and derives the candidate
// pool statistics the dispatch policy consumes.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"servicesartisans_backend/internal/leads/dispatch"
	"servicesartisans_backend/internal/providers/domain"
)

const pgUniqueViolation = "23505"

// Provider is the database model for an artisan profile.
type Provider struct {
	ID          uuid.UUID `db:"id"`
	CompanyName string    `db:"company_name"`
	Email       string    `db:"email"`
	Phone       *string   `db:"phone"`
	ServiceType string    `db:"service_type"`
	City        string    `db:"city"`
	PostalCode  string    `db:"postal_code"`
	Active      bool      `db:"active"`
	Rating      float64   `db:"rating"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// CreateProviderParams contains data for a new provider profile.
type CreateProviderParams struct {
	CompanyName string
	Email       string
	Phone       *string
	ServiceType string
	City        string
	PostalCode  string
}

// UpdateProviderParams carries the mutable profile fields. Nil means keep.
type UpdateProviderParams struct {
	CompanyName *string
	Phone       *string
	ServiceType *string
	City        *string
	PostalCode  *string
	Active      *bool
	Rating      *float64
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const providerSelectCols = `
	id, company_name, email, phone, service_type, city, postal_code,
	active, rating, created_at, updated_at`

// CreateProvider inserts a new provider profile.
func (r *Repository) CreateProvider(ctx context.Context, params CreateProviderParams) (Provider, error) {
	var p Provider
	err := r.pool.QueryRow(ctx, `
		INSERT INTO providers (company_name, email, phone, service_type, city, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING`+providerSelectCols+`
	`,
		params.CompanyName,
		params.Email,
		params.Phone,
		params.ServiceType,
		params.City,
		params.PostalCode,
	).Scan(
		&p.ID, &p.CompanyName, &p.Email, &p.Phone, &p.ServiceType,
		&p.City, &p.PostalCode, &p.Active, &p.Rating, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Provider{}, domain.ErrDuplicateEmail
		}
		return Provider{}, err
	}
	return p, nil
}

// GetProvider returns one provider by ID.
func (r *Repository) GetProvider(ctx context.Context, id uuid.UUID) (Provider, error) {
	var p Provider
	err := r.pool.QueryRow(ctx, `
		SELECT`+providerSelectCols+`
		FROM providers
		WHERE id = $1
	`, id).Scan(
		&p.ID, &p.CompanyName, &p.Email, &p.Phone, &p.ServiceType,
		&p.City, &p.PostalCode, &p.Active, &p.Rating, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Provider{}, domain.ErrProviderNotFound
		}
		return Provider{}, err
	}
	return p, nil
}

// ListProviders returns all profiles, newest first.
func (r *Repository) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+providerSelectCols+`
		FROM providers
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(
			&p.ID, &p.CompanyName, &p.Email, &p.Phone, &p.ServiceType,
			&p.City, &p.PostalCode, &p.Active, &p.Rating, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProvider applies the non-nil fields and returns the updated row.
func (r *Repository) UpdateProvider(ctx context.Context, id uuid.UUID, params UpdateProviderParams) (Provider, error) {
	var p Provider
	err := r.pool.QueryRow(ctx, `
		UPDATE providers
		SET company_name = COALESCE($2, company_name),
			phone = COALESCE($3, phone),
			service_type = COALESCE($4, service_type),
			city = COALESCE($5, city),
			postal_code = COALESCE($6, postal_code),
			active = COALESCE($7, active),
			rating = COALESCE($8, rating),
			updated_at = now()
		WHERE id = $1
		RETURNING`+providerSelectCols+`
	`,
		id,
		params.CompanyName,
		params.Phone,
		params.ServiceType,
		params.City,
		params.PostalCode,
		params.Active,
		params.Rating,
	).Scan(
		&p.ID, &p.CompanyName, &p.Email, &p.Phone, &p.ServiceType,
		&p.City, &p.PostalCode, &p.Active, &p.Rating, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Provider{}, domain.ErrProviderNotFound
		}
		return Provider{}, err
	}
	return p, nil
}

// ListCandidates returns active providers of the lead's trade together with
// the assignment-derived fairness statistics. Daily load, recency and
// response rate are computed from lead_assignments on every call instead of
// being counters, so they can never drift from the ledger.
func (r *Repository) ListCandidates(ctx context.Context, lead dispatch.LeadInfo) ([]dispatch.Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.service_type, p.city, p.postal_code, p.active, p.rating,
			COALESCE(s.assigned_today, 0),
			s.last_assigned_at,
			COALESCE(s.response_rate, 0)
		FROM providers p
		LEFT JOIN LATERAL (
			SELECT
				count(*) FILTER (WHERE a.assigned_at >= date_trunc('day', now())) AS assigned_today,
				max(a.assigned_at) AS last_assigned_at,
				count(*) FILTER (WHERE a.viewed_at IS NOT NULL)::float / NULLIF(count(*), 0) AS response_rate
			FROM lead_assignments a
			WHERE a.provider_id = p.id
		) s ON true
		WHERE p.active AND lower(p.service_type) = lower($1)
	`, lead.ServiceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dispatch.Candidate
	for rows.Next() {
		var c dispatch.Candidate
		if err := rows.Scan(
			&c.ProviderID,
			&c.ServiceType,
			&c.City,
			&c.PostalCode,
			&c.Active,
			&c.Rating,
			&c.AssignedToday,
			&c.LastAssignedAt,
			&c.ResponseRate,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
