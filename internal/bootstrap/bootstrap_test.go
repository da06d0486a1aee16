package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"vehicle_inspection_backend/internal/adapters/storage"
	"vehicle_inspection_backend/internal/assessments/repository"
	"vehicle_inspection_backend/internal/detection/mock"
	"vehicle_inspection_backend/platform/config"
	"vehicle_inspection_backend/platform/lock"
	"vehicle_inspection_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	calls := 0
	err := WithRetry(ctx, logger.Nop(), "flaky", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	err = WithRetry(ctx, logger.Nop(), "broken", 2, time.Millisecond, func() error {
		return errors.New("down")
	})
	require.EqualError(t, err, "broken: down")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = WithRetry(canceled, logger.Nop(), "canceled", 2, time.Millisecond, func() error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildLogsDatabaseFailure(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{DatabaseURL: "postgres://inspector@127.0.0.1:1/inspections"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, cfg, logger.NewWithWriter("production", &buf))

	require.ErrorContains(t, err, "connect to database")
	require.Contains(t, buf.String(), "database_error")
	require.Contains(t, buf.String(), `"operation":"connect"`)
}

func TestBuildInMemory(t *testing.T) {
	cfg := &config.Config{
		DetectionProvider: "gemini",
		DetectionTimeout:  time.Second,
		GeminiModel:       "gemini-2.5-flash",
		GoCVMinArea:       400,
	}

	infra, err := Build(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer infra.Close()

	require.Nil(t, infra.Pool)
	require.IsType(t, &repository.MemoryRepository{}, infra.Repo)
	require.IsType(t, &storage.MemoryStore{}, infra.Store)
	require.IsType(t, &lock.KeyedMutex{}, infra.Locker)
	// gemini has no key, so the registry falls back
	require.Equal(t, mock.Name, infra.Registry.Active())
	require.Contains(t, infra.Registry.List(), "gocv")
}

func TestBuildUsesRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		DetectionProvider: "mock",
		RedisURL:          "redis://" + mr.Addr(),
	}

	infra, err := Build(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer infra.Close()

	require.IsType(t, &lock.RedisLocker{}, infra.Locker)
	unlock, err := infra.Locker.Lock(context.Background(), "assessment:1")
	require.NoError(t, err)
	unlock()
}
