// Package stats derives funnel and provider KPIs by replaying the lead
// ledger. It is strictly read-only.
package stats

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "servicesartisans_backend/internal/http"
	"servicesartisans_backend/internal/stats/handler"
	"servicesartisans_backend/internal/stats/repository"
	"servicesartisans_backend/internal/stats/service"
	"servicesartisans_backend/platform/httpkit"
)

// Module is the stats bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the stats module.
func NewModule(pool *pgxpool.Pool) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	return &Module{handler: handler.New(svc)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "stats"
}

// RegisterRoutes mounts stats routes. Reports expose platform-wide funnel
// numbers and other providers' KPIs, so they are restricted to the admin
// role on top of authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	stats := ctx.Protected.Group("/stats")
	stats.Use(httpkit.RequireRole("admin"))
	m.handler.RegisterRoutes(stats)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
