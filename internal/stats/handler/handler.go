// Package handler exposes funnel and provider KPIs over HTTP.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"servicesartisans_backend/internal/stats/service"
	"servicesartisans_backend/platform/httpkit"
)

const defaultWindow = 30 * 24 * time.Hour

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/funnel", h.Funnel)
	rg.GET("/providers/:id", h.Provider)
}

// Funnel returns the conversion report for a window. from/to are RFC 3339
// query parameters; the window defaults to the last 30 days.
func (h *Handler) Funnel(c *gin.Context) {
	to := time.Now()
	from := to.Add(-defaultWindow)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid from timestamp", nil)
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid to timestamp", nil)
			return
		}
		to = parsed
	}
	if !from.Before(to) {
		httpkit.Error(c, http.StatusBadRequest, "from must precede to", nil)
		return
	}

	report, err := h.svc.Funnel(c.Request.Context(), from, to)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, report)
}

// Provider returns one provider's KPIs. The optional days query parameter
// limits the window; it defaults to the full assignment history.
func (h *Handler) Provider(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid provider id", nil)
		return
	}

	var since time.Time
	if raw := c.Query("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			httpkit.Error(c, http.StatusBadRequest, "days must be a positive integer", nil)
			return
		}
		since = time.Now().AddDate(0, 0, -days)
	}

	report, err := h.svc.Provider(c.Request.Context(), id, since)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, report)
}
