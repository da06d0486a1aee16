package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vehicle_inspection_backend/internal/assessments"
	"vehicle_inspection_backend/internal/assessments/service"
	"vehicle_inspection_backend/internal/bootstrap"
	detectionapi "vehicle_inspection_backend/internal/detection/api"
	"vehicle_inspection_backend/internal/events"
	apphttp "vehicle_inspection_backend/internal/http"
	"vehicle_inspection_backend/internal/http/router"
	"vehicle_inspection_backend/internal/scheduler"
	"vehicle_inspection_backend/platform/config"
	"vehicle_inspection_backend/platform/logger"
	"vehicle_inspection_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.GetHTTPAddr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	infra, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize infrastructure", "error", err)
		panic("failed to initialize infrastructure: " + err.Error())
	}
	defer infra.Close()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	assessmentsModule, err := assessments.NewModule(assessments.Deps{
		Repo:     infra.Repo,
		Analyzer: infra.Registry,
		Store:    infra.Store,
		Locker:   infra.Locker,
		Bus:      eventBus,
		Val:      val,
		Log:      log,
		Options: service.Options{
			MaxConcurrency: cfg.GetDetectionMaxConcurrency(),
			MaxFileSize:    cfg.GetMinIOMaxFileSize(),
		},
	})
	if err != nil {
		log.Error("failed to initialize assessments module", "error", err)
		panic("failed to initialize assessments module: " + err.Error())
	}

	if cfg.IsAutoAnalyzeEnabled() {
		client, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize analysis scheduler client", "error", err)
			panic("failed to initialize analysis scheduler client: " + err.Error())
		}
		defer func() { _ = client.Close() }()
		assessmentsModule.EnableAutoAnalysis(eventBus, client)
		log.Info("auto analysis enabled", "queue", cfg.GetAsynqQueueName())
	}

	detectionModule := detectionapi.NewModule(infra.Registry, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:      cfg,
		AuthEnabled: cfg.IsAuthEnabled(),
		Logger:      log,
		EventBus:    eventBus,
		Modules: []apphttp.Module{
			assessmentsModule,
			detectionModule,
		},
	}
	if infra.Pool != nil {
		app.Health = infra.Pool
	}
	if !app.AuthEnabled {
		log.Warn("JWT_ACCESS_SECRET not configured; API routes are unauthenticated")
	}

	engine := router.New(app)
	engine.MaxMultipartMemory = cfg.GetMinIOMaxFileSize()
	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.GetHTTPAddr())
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}
