package api

import (
	apphttp "vehicle_inspection_backend/internal/http"
	"vehicle_inspection_backend/platform/logger"
	"vehicle_inspection_backend/platform/validator"
)

// Module mounts the provider endpoints.
type Module struct {
	handler *Handler
}

// NewModule creates the detection module.
func NewModule(registry Registry, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(registry, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "detection"
}

// RegisterRoutes mounts detection routes. Switching the provider is an
// operator action and sits on the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/detection/providers", m.handler.ListProviders)
	ctx.Admin.PUT("/detection/providers/active", m.handler.SetActiveProvider)
}

var _ apphttp.Module = (*Module)(nil)
