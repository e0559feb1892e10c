// Package leads provides the lead dispatch and lifecycle bounded context.
// This file defines the module that encapsulates all leads setup and route
// registration.
package leads

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"servicesartisans_backend/internal/events"
	apphttp "servicesartisans_backend/internal/http"
	"servicesartisans_backend/internal/leads/handler"
	"servicesartisans_backend/internal/leads/maintenance"
	"servicesartisans_backend/internal/leads/repository"
	"servicesartisans_backend/internal/leads/service"
	"servicesartisans_backend/platform/config"
	platformevents "servicesartisans_backend/platform/events"
	"servicesartisans_backend/platform/logger"
	"servicesartisans_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	sweeper *maintenance.Sweeper
}

// NewModule creates and initializes the leads module with all its
// dependencies. The candidate source is provided by the providers module.
func NewModule(pool *pgxpool.Pool, candidates service.CandidateSource, eventBus platformevents.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.NewService(repo, candidates, eventBus, cfg, log)
	sweeper := maintenance.NewSweeper(repo, svc, cfg, log)

	// Dispatch runs off the intake request path: the created fact triggers
	// it on the bus, and redelivery is safe because OnLeadCreated is
	// idempotent.
	eventBus.Subscribe(events.LeadCreatedEvent, platformevents.HandlerFunc(func(ctx context.Context, event platformevents.Event) error {
		fact, ok := event.(events.LeadFact)
		if !ok {
			return nil
		}
		return svc.OnLeadCreated(ctx, fact.LeadID)
	}))

	return &Module{
		handler: handler.New(svc, sweeper, val),
		service: svc,
		sweeper: sweeper,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead lifecycle service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Sweeper returns the lifecycle sweeper, driven by cmd/scheduler.
func (m *Module) Sweeper() *maintenance.Sweeper {
	return m.sweeper
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Intake is public but rate limited per IP.
	public := ctx.V1.Group("/leads")
	public.Use(ctx.IntakeRateLimiter.RateLimit())
	m.handler.RegisterLeadRoutes(public, ctx.Protected.Group("/leads"))

	m.handler.RegisterProviderRoutes(ctx.Protected.Group("/provider"))
	m.handler.RegisterInternalRoutes(ctx.Internal)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
