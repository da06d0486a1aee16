// Package api exposes the detection provider registry over HTTP.
package api

import (
	"context"
	"net/http"

	"vehicle_inspection_backend/platform/httpkit"
	"vehicle_inspection_backend/platform/logger"
	"vehicle_inspection_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Registry is the part of detection.Registry the API needs.
type Registry interface {
	List() []string
	Active() string
	SetActive(ctx context.Context, name string) error
}

type SetActiveRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

type ProvidersResponse struct {
	Providers []string `json:"providers"`
	Active    string   `json:"active"`
}

// Handler serves the provider endpoints.
type Handler struct {
	registry Registry
	val      *validator.Validator
	log      *logger.Logger
}

// NewHandler creates a provider handler.
func NewHandler(registry Registry, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{registry: registry, val: val, log: log}
}

// ListProviders returns the registered providers and the active one.
// GET /api/v1/detection/providers
func (h *Handler) ListProviders(c *gin.Context) {
	httpkit.OK(c, ProvidersResponse{Providers: h.registry.List(), Active: h.registry.Active()})
}

// SetActiveProvider switches the provider used for new analyses.
// PUT /api/v1/detection/providers/active
func (h *Handler) SetActiveProvider(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", validator.FieldErrors(err))
		return
	}

	previous := h.registry.Active()
	if httpkit.HandleError(c, h.registry.SetActive(c.Request.Context(), req.Name)) {
		return
	}
	h.log.WithContext(c.Request.Context()).Info("detection provider switched", "from", previous, "provider", req.Name)
	httpkit.OK(c, ProvidersResponse{Providers: h.registry.List(), Active: h.registry.Active()})
}
