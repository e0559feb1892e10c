package repository

import (
	"errors"
	"strings"

	"servicesartisans_backend/internal/leads/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements Store over Postgres. All assignment mutation flows
// through the CAS transition; the ledger tables carry database-side guards
// in addition to the narrow interface.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Postgres error codes the core maps to domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgRaiseException      = "P0001"
)

// appendOnlyMarker is the token raised by the lead_events mutation guard
// triggers (see migrations). Matching on it keeps unrelated RAISE
// EXCEPTION errors out of the immutability bucket.
const appendOnlyMarker = "append-only"

// mapLedgerError translates storage-level failures on ledger writes into
// the domain taxonomy. Unmapped errors pass through untouched.
func mapLedgerError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgForeignKeyViolation:
		return domain.ErrUnknownLead
	case pgCheckViolation:
		if strings.Contains(pgErr.ConstraintName, "event_type") {
			return domain.ErrInvalidEventType
		}
	case pgRaiseException:
		if strings.Contains(pgErr.Message, appendOnlyMarker) {
			return domain.ErrImmutabilityViolation
		}
	}
	return err
}

// mapAssignmentError translates storage-level failures on assignment
// creation into the domain taxonomy.
func mapAssignmentError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return domain.ErrDuplicateAssignment
	case pgForeignKeyViolation:
		return domain.ErrUnknownLead
	}
	return err
}
