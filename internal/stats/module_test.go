package stats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apphttp "servicesartisans_backend/internal/http"
	"servicesartisans_backend/internal/stats/handler"
	"servicesartisans_backend/internal/stats/repository"
	"servicesartisans_backend/internal/stats/service"
	"servicesartisans_backend/platform/httpkit"
)

type emptySource struct{}

func (emptySource) ListEventsBetween(context.Context, time.Time, time.Time) ([]repository.EventRow, error) {
	return nil, nil
}

func (emptySource) ListAssignmentsByProvider(context.Context, uuid.UUID, time.Time) ([]repository.AssignmentRow, error) {
	return nil, nil
}

func statsEngineWithRoles(roles []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	v1 := engine.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextRolesKey, roles)
		c.Next()
	})

	m := &Module{handler: handler.New(service.New(emptySource{}))}
	m.RegisterRoutes(&apphttp.RouterContext{Protected: protected})
	return engine
}

func TestStatsRoutesRejectNonAdminRoles(t *testing.T) {
	engine := statsEngineWithRoles([]string{"provider"})

	for _, path := range []string{
		"/api/v1/stats/funnel",
		"/api/v1/stats/providers/" + uuid.NewString(),
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("GET %s as provider: got %d, want %d", path, rec.Code, http.StatusForbidden)
		}
	}
}

func TestStatsRoutesAllowAdminRole(t *testing.T) {
	engine := statsEngineWithRoles([]string{"admin"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/funnel", nil)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/stats/funnel as admin: got %d, want %d", rec.Code, http.StatusOK)
	}
}
