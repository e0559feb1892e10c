// Package service applies input normalization and business rules to
// provider profile operations.
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"servicesartisans_backend/internal/providers/repository"
	"servicesartisans_backend/platform/apperr"
	"servicesartisans_backend/platform/phone"
)

type Service struct {
	repo *repository.Repository
}

func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// CreateProviderInput holds validated profile data.
type CreateProviderInput struct {
	CompanyName string
	Email       string
	Phone       string
	ServiceType string
	City        string
	PostalCode  string
}

func (s *Service) CreateProvider(ctx context.Context, input CreateProviderInput) (repository.Provider, error) {
	params := repository.CreateProviderParams{
		CompanyName: strings.TrimSpace(input.CompanyName),
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		ServiceType: strings.ToLower(strings.TrimSpace(input.ServiceType)),
		City:        strings.TrimSpace(input.City),
		PostalCode:  strings.TrimSpace(input.PostalCode),
	}
	if normalized := phone.NormalizeE164(input.Phone); normalized != "" {
		params.Phone = &normalized
	}
	return s.repo.CreateProvider(ctx, params)
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (repository.Provider, error) {
	return s.repo.GetProvider(ctx, id)
}

func (s *Service) ListProviders(ctx context.Context) ([]repository.Provider, error) {
	return s.repo.ListProviders(ctx)
}

// UpdateProviderInput mirrors the repository's partial update semantics.
type UpdateProviderInput struct {
	CompanyName *string
	Phone       *string
	ServiceType *string
	City        *string
	PostalCode  *string
	Active      *bool
	Rating      *float64
}

func (s *Service) UpdateProvider(ctx context.Context, id uuid.UUID, input UpdateProviderInput) (repository.Provider, error) {
	if input.Rating != nil && (*input.Rating < 0 || *input.Rating > 5) {
		return repository.Provider{}, apperr.Validation("rating must be between 0 and 5")
	}

	params := repository.UpdateProviderParams{
		CompanyName: trimmed(input.CompanyName),
		ServiceType: lowered(input.ServiceType),
		City:        trimmed(input.City),
		PostalCode:  trimmed(input.PostalCode),
		Active:      input.Active,
		Rating:      input.Rating,
	}
	if input.Phone != nil {
		if normalized := phone.NormalizeE164(*input.Phone); normalized != "" {
			params.Phone = &normalized
		}
	}
	return s.repo.UpdateProvider(ctx, id, params)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func lowered(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.ToLower(strings.TrimSpace(*s))
	return &t
}
