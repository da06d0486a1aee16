package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"vehicle_inspection_backend/internal/assessments/service"
	"vehicle_inspection_backend/internal/bootstrap"
	"vehicle_inspection_backend/internal/events"
	"vehicle_inspection_backend/internal/scheduler"
	"vehicle_inspection_backend/platform/config"
	"vehicle_inspection_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	if !cfg.IsSchedulerEnabled() {
		panic("worker requires REDIS_URL")
	}
	if !cfg.IsDatabaseEnabled() || !cfg.IsMinIOEnabled() {
		// an in-memory repository or store cannot see what the API wrote
		log.Warn("worker is running without a shared database or object store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize infrastructure", "error", err)
		panic("failed to initialize infrastructure: " + err.Error())
	}
	defer infra.Close()

	// Events raised by queued analyses stay in this process.
	eventBus := events.NewInMemoryBus(log)
	svc := service.New(infra.Repo, infra.Registry, infra.Store, infra.Locker, eventBus, log, service.Options{
		MaxConcurrency: cfg.GetDetectionMaxConcurrency(),
		MaxFileSize:    cfg.GetMinIOMaxFileSize(),
	})

	worker, err := scheduler.NewWorker(cfg, svc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
	log.Info("worker stopped")
}
