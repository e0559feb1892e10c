// Package handler exposes the leads bounded context over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"servicesartisans_backend/internal/leads/maintenance"
	"servicesartisans_backend/internal/leads/service"
	"servicesartisans_backend/internal/leads/transport"
	"servicesartisans_backend/platform/httpkit"
	"servicesartisans_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc     *service.Service
	sweeper *maintenance.Sweeper
	val     *validator.Validator
}

func New(svc *service.Service, sweeper *maintenance.Sweeper, val *validator.Validator) *Handler {
	return &Handler{svc: svc, sweeper: sweeper, val: val}
}

// RegisterLeadRoutes mounts lead intake and read routes.
func (h *Handler) RegisterLeadRoutes(public, protected *gin.RouterGroup) {
	public.POST("", h.CreateLead)
	protected.GET("/:id", h.GetLead)
	protected.POST("/:id/dispatch", h.DispatchLead)
}

// RegisterProviderRoutes mounts the provider workspace action routes.
func (h *Handler) RegisterProviderRoutes(rg *gin.RouterGroup) {
	rg.GET("/assignments", h.ListAssignments)
	rg.POST("/assignments/:id/view", h.ViewLead)
	rg.POST("/assignments/:id/quote", h.SendQuote)
	rg.POST("/assignments/:id/decline", h.DeclineLead)
	rg.POST("/assignments/:id/accept", h.AcceptQuote)
	rg.POST("/assignments/:id/complete", h.CompleteJob)
}

// RegisterInternalRoutes mounts cron-secret guarded maintenance routes.
func (h *Handler) RegisterInternalRoutes(rg *gin.RouterGroup) {
	rg.POST("/sweep", h.Sweep)
}

func (h *Handler) CreateLead(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.CreateLead(c.Request.Context(), service.CreateLeadInput{
		ServiceType: req.ServiceType,
		City:        req.City,
		PostalCode:  req.PostalCode,
		Description: req.Description,
		Urgency:     req.Urgency,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.Created(c, transport.FromLead(lead))
}

func (h *Handler) GetLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, history, err := h.svc.GetLead(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.LeadDetailResponse{
		Lead:   transport.FromLead(lead),
		Events: transport.FromEvents(history),
	})
}

// DispatchLead manually (re)triggers dispatch for a lead. The operation is
// idempotent: a live assignment short-circuits to current state.
func (h *Handler) DispatchLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	assignment, err := h.svc.Dispatch(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	if assignment == nil {
		httpkit.OK(c, gin.H{"dispatched": false})
		return
	}

	httpkit.OK(c, transport.FromAssignment(*assignment))
}

func (h *Handler) ListAssignments(c *gin.Context) {
	providerID, ok := httpkit.MustGetProviderID(c)
	if !ok {
		return
	}

	assignments, err := h.svc.ListActiveAssignments(c.Request.Context(), providerID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.FromAssignments(assignments))
}

func (h *Handler) ViewLead(c *gin.Context) {
	h.providerAction(c, func(assignmentID, providerID uuid.UUID) (any, error) {
		a, err := h.svc.ViewLead(c.Request.Context(), assignmentID, providerID)
		return transport.FromAssignment(a), err
	})
}

func (h *Handler) SendQuote(c *gin.Context) {
	providerID, ok := httpkit.MustGetProviderID(c)
	if !ok {
		return
	}
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	assignment, err := h.svc.SendQuote(c.Request.Context(), assignmentID, providerID, service.QuoteInput{
		AmountCents: req.AmountCents,
		Details:     req.Details,
		ValidDays:   req.ValidDays,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.FromAssignment(assignment))
}

func (h *Handler) DeclineLead(c *gin.Context) {
	providerID, ok := httpkit.MustGetProviderID(c)
	if !ok {
		return
	}
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	// The body is optional; a bare decline is allowed.
	var req transport.DeclineRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}

	assignment, err := h.svc.DeclineLead(c.Request.Context(), assignmentID, providerID, req.Reason)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.FromAssignment(assignment))
}

func (h *Handler) AcceptQuote(c *gin.Context) {
	h.providerAction(c, func(assignmentID, providerID uuid.UUID) (any, error) {
		a, err := h.svc.AcceptQuote(c.Request.Context(), assignmentID, providerID)
		return transport.FromAssignment(a), err
	})
}

func (h *Handler) CompleteJob(c *gin.Context) {
	h.providerAction(c, func(assignmentID, providerID uuid.UUID) (any, error) {
		a, err := h.svc.CompleteJob(c.Request.Context(), assignmentID, providerID)
		return transport.FromAssignment(a), err
	})
}

// Sweep runs one sweeper batch on demand. Used by external cron alongside
// the scheduler's periodic loop.
func (h *Handler) Sweep(c *gin.Context) {
	expired, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"expired": expired})
}

func (h *Handler) providerAction(c *gin.Context, fn func(assignmentID, providerID uuid.UUID) (any, error)) {
	providerID, ok := httpkit.MustGetProviderID(c)
	if !ok {
		return
	}
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	payload, err := fn(assignmentID, providerID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, payload)
}
