// Package transport defines HTTP shapes for provider administration.
package transport

import (
	"time"

	"github.com/google/uuid"

	"servicesartisans_backend/internal/providers/repository"
)

// CreateProviderRequest registers a new artisan profile.
type CreateProviderRequest struct {
	CompanyName string `json:"companyName" validate:"required,min=2,max=150"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"omitempty,min=6,max=20"`
	ServiceType string `json:"serviceType" validate:"required,min=2,max=100"`
	City        string `json:"city" validate:"required,min=1,max=100"`
	PostalCode  string `json:"postalCode" validate:"required,min=2,max=10"`
}

// UpdateProviderRequest applies a partial profile update.
type UpdateProviderRequest struct {
	CompanyName *string  `json:"companyName" validate:"omitempty,min=2,max=150"`
	Phone       *string  `json:"phone" validate:"omitempty,min=6,max=20"`
	ServiceType *string  `json:"serviceType" validate:"omitempty,min=2,max=100"`
	City        *string  `json:"city" validate:"omitempty,min=1,max=100"`
	PostalCode  *string  `json:"postalCode" validate:"omitempty,min=2,max=10"`
	Active      *bool    `json:"active"`
	Rating      *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
}

// ProviderResponse is the outward provider shape.
type ProviderResponse struct {
	ID          uuid.UUID `json:"id"`
	CompanyName string    `json:"companyName"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone,omitempty"`
	ServiceType string    `json:"serviceType"`
	City        string    `json:"city"`
	PostalCode  string    `json:"postalCode"`
	Active      bool      `json:"active"`
	Rating      float64   `json:"rating"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FromProvider maps the database model.
func FromProvider(p repository.Provider) ProviderResponse {
	return ProviderResponse{
		ID:          p.ID,
		CompanyName: p.CompanyName,
		Email:       p.Email,
		Phone:       p.Phone,
		ServiceType: p.ServiceType,
		City:        p.City,
		PostalCode:  p.PostalCode,
		Active:      p.Active,
		Rating:      p.Rating,
		CreatedAt:   p.CreatedAt,
	}
}

// FromProviders maps a slice.
func FromProviders(providers []repository.Provider) []ProviderResponse {
	out := make([]ProviderResponse, len(providers))
	for i, p := range providers {
		out[i] = FromProvider(p)
	}
	return out
}
