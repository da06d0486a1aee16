// Package assessments provides the vehicle inspection bounded context module.
package assessments

import (
	"context"
	"fmt"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/assessments/handler"
	"vehicle_inspection_backend/internal/assessments/repository"
	"vehicle_inspection_backend/internal/assessments/service"
	"vehicle_inspection_backend/internal/assessments/transport"
	"vehicle_inspection_backend/internal/events"
	apphttp "vehicle_inspection_backend/internal/http"
	"vehicle_inspection_backend/platform/lock"
	"vehicle_inspection_backend/platform/logger"
	"vehicle_inspection_backend/platform/validator"

	"github.com/google/uuid"
)

// AnalysisScheduler queues a background analysis of one phase.
type AnalysisScheduler interface {
	EnqueueAnalyzePhase(ctx context.Context, assessmentID uuid.UUID, phase domain.Phase) error
}

// Deps are the collaborators the module is built from.
type Deps struct {
	Repo     repository.Repository
	Analyzer service.Analyzer
	Store    service.PhotoStore
	Locker   lock.Locker
	Bus      events.Publisher
	Val      *validator.Validator
	Log      *logger.Logger
	Options  service.Options
}

// Module is the assessments bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	service   *service.Service
	scheduler AnalysisScheduler
	log       *logger.Logger
}

// NewModule creates the assessments module.
func NewModule(deps Deps) (*Module, error) {
	if err := transport.RegisterValidations(deps.Val); err != nil {
		return nil, fmt.Errorf("assessments validations: %w", err)
	}

	svc := service.New(deps.Repo, deps.Analyzer, deps.Store, deps.Locker, deps.Bus, deps.Log, deps.Options)
	maxFileSize := deps.Options.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = 20 << 20
	}

	return &Module{
		handler: handler.New(svc, deps.Val, maxFileSize),
		service: svc,
		log:     deps.Log,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assessments"
}

// Service returns the service layer for the worker and other composition roots.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts assessment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/assessments")
	g.POST("", m.handler.Create)
	g.GET("", m.handler.List)
	g.GET("/:id", m.handler.Get)
	g.DELETE("/:id", m.handler.Delete)

	g.PUT("/:id/photos/:phase/:angle", m.handler.UploadPhoto)
	g.GET("/:id/photos/:phase/:angle/url", m.handler.PhotoURL)
	g.GET("/:id/completeness/:phase", m.handler.Completeness)

	g.POST("/:id/analyze/pickup", m.handler.AnalyzePickup)
	g.POST("/:id/analyze/return", m.handler.AnalyzeReturn)
	g.POST("/:id/compare", m.handler.Compare)
	g.GET("/:id/summary", m.handler.Summary)
}

// EnableAutoAnalysis subscribes to photo uploads and queues an analysis
// whenever an upload completes a phase.
func (m *Module) EnableAutoAnalysis(bus events.Bus, scheduler AnalysisScheduler) {
	m.scheduler = scheduler
	bus.Subscribe(events.PhotoUploaded{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.PhotoUploaded:
		if !e.PhaseComplete || m.scheduler == nil {
			return nil
		}
		phase := domain.Phase(e.Phase)
		if err := m.scheduler.EnqueueAnalyzePhase(ctx, e.AssessmentID, phase); err != nil {
			return fmt.Errorf("enqueue %s analysis for %s: %w", phase, e.AssessmentID, err)
		}
		m.log.WithContext(ctx).Info("phase analysis queued", "assessmentId", e.AssessmentID, "phase", phase)
		return nil
	default:
		return nil
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
