// Package handler exposes provider administration over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"servicesartisans_backend/internal/providers/service"
	"servicesartisans_backend/internal/providers/transport"
	"servicesartisans_backend/platform/httpkit"
	"servicesartisans_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id", h.Update)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	provider, err := h.svc.CreateProvider(c.Request.Context(), service.CreateProviderInput{
		CompanyName: req.CompanyName,
		Email:       req.Email,
		Phone:       req.Phone,
		ServiceType: req.ServiceType,
		City:        req.City,
		PostalCode:  req.PostalCode,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.Created(c, transport.FromProvider(provider))
}

func (h *Handler) List(c *gin.Context) {
	providers, err := h.svc.ListProviders(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.FromProviders(providers))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	provider, err := h.svc.GetProvider(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.FromProvider(provider))
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	provider, err := h.svc.UpdateProvider(c.Request.Context(), id, service.UpdateProviderInput{
		CompanyName: req.CompanyName,
		Phone:       req.Phone,
		ServiceType: req.ServiceType,
		City:        req.City,
		PostalCode:  req.PostalCode,
		Active:      req.Active,
		Rating:      req.Rating,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.FromProvider(provider))
}
