// Package bootstrap builds the infrastructure shared by the API and the
// worker binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vehicle_inspection_backend/internal/adapters/storage"
	"vehicle_inspection_backend/internal/assessments/repository"
	"vehicle_inspection_backend/internal/detection"
	"vehicle_inspection_backend/internal/detection/gemini"
	"vehicle_inspection_backend/internal/detection/gocv"
	"vehicle_inspection_backend/internal/detection/mock"
	"vehicle_inspection_backend/platform/config"
	"vehicle_inspection_backend/platform/db"
	"vehicle_inspection_backend/platform/lock"
	"vehicle_inspection_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Infrastructure is everything the assessments module runs on.
type Infrastructure struct {
	// Pool is nil when no database is configured.
	Pool     *pgxpool.Pool
	Repo     repository.Repository
	Store    storage.ObjectStore
	Registry *detection.Registry
	Locker   lock.Locker

	closers []func()
}

// Close releases connections in reverse order of creation.
func (i *Infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}

// Build connects to the configured backends. Each of database, object
// storage and Redis falls back to an in-process implementation when it is
// not configured.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{}

	if err := infra.openRepository(ctx, cfg, log); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.openStore(ctx, cfg, log); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.openLocker(ctx, cfg, log); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.buildRegistry(ctx, cfg, log); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *Infrastructure) openRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.IsDatabaseEnabled() {
		log.Warn("DATABASE_URL not configured; assessments are kept in memory")
		i.Repo = repository.NewMemoryRepository()
		return nil
	}

	if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		i.Pool = p
		return nil
	}); err != nil {
		log.DatabaseError("connect", err)
		return fmt.Errorf("connect to database: %w", err)
	}
	i.closers = append(i.closers, i.Pool.Close)
	log.Info("database connection established")

	if err := WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, i.Pool)
	}); err != nil {
		log.DatabaseError("migrate", err)
		return fmt.Errorf("run database migrations: %w", err)
	}
	log.Info("database migrations complete")

	i.Repo = repository.NewPostgres(i.Pool)
	return nil
}

func (i *Infrastructure) openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; photos are kept in memory")
		i.Store = storage.NewMemoryStore()
		return nil
	}

	store, err := storage.NewMinIOStore(cfg)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	if err := WithRetry(ctx, log, "ensure vehicle photo bucket", 5, 2*time.Second, func() error {
		return store.EnsureBucketExists(ctx)
	}); err != nil {
		return fmt.Errorf("ensure storage bucket exists: %w", err)
	}
	log.Info("storage service initialized", "vehiclePhotosBucket", store.Bucket())
	i.Store = store
	return nil
}

func (i *Infrastructure) openLocker(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.IsSchedulerEnabled() {
		i.Locker = lock.NewKeyedMutex()
		return nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() && opt.TLSConfig != nil {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	client := redis.NewClient(opt)
	if err := WithRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		_ = client.Close()
		return fmt.Errorf("connect to redis: %w", err)
	}
	i.closers = append(i.closers, func() { _ = client.Close() })
	i.Locker = lock.NewRedisLocker(client)
	log.Info("assessment locks use redis")
	return nil
}

func (i *Infrastructure) buildRegistry(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	policy, err := detection.LoadCostPolicy(cfg.GetDetectionCostPolicyFile())
	if err != nil {
		return err
	}

	registry := detection.NewRegistry(log, detection.WithCallTimeout(cfg.GetDetectionTimeout()))
	registry.Register(mock.Name, mock.New(policy, mock.WithImageSource(i.Store)))

	geminiProvider, err := gemini.New(ctx, cfg, i.Store, policy)
	if err != nil {
		log.Warn("gemini provider unavailable", "error", err)
	} else {
		registry.Register(gemini.Name, geminiProvider)
	}
	registry.Register(gocv.Name, gocv.New(i.Store, policy, cfg.GetGoCVMinArea()))

	if err := registry.ActivateWithFallback(ctx, cfg.GetDetectionProvider(), mock.Name); err != nil {
		return fmt.Errorf("activate detection provider: %w", err)
	}
	log.Info("detection provider active", "provider", registry.Active(), "available", registry.List())
	i.Registry = registry
	return nil
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
