// Package providers manages artisan profiles and exposes the candidate
// pool the dispatch policy selects from.
package providers

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "servicesartisans_backend/internal/http"
	"servicesartisans_backend/internal/providers/handler"
	"servicesartisans_backend/internal/providers/repository"
	"servicesartisans_backend/internal/providers/service"
	"servicesartisans_backend/platform/validator"
)

// Module is the providers bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
	service *service.Service
}

// NewModule creates and initializes the providers module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	return &Module{
		handler: handler.New(svc, val),
		repo:    repo,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "providers"
}

// CandidateSource returns the repository view consumed by lead dispatch.
func (m *Module) CandidateSource() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts provider administration routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/providers"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
