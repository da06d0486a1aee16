package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DETECTION_PROVIDER", "mock")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("AUTO_ANALYZE", "false")
	t.Setenv("CORS_ALLOW_ALL", "false")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "mock", cfg.GetDetectionProvider())
	require.Equal(t, 5, cfg.GetDetectionMaxConcurrency())
	require.Equal(t, 60*time.Second, cfg.GetDetectionTimeout())
	require.False(t, cfg.IsDatabaseEnabled())
	require.False(t, cfg.IsAutoAnalyzeEnabled())
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("DETECTION_PROVIDER", "tesseract")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresRedisForAutoAnalyze(t *testing.T) {
	t.Setenv("DETECTION_PROVIDER", "mock")
	t.Setenv("AUTO_ANALYZE", "true")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadWildcardOriginForcesAllowAll(t *testing.T) {
	t.Setenv("DETECTION_PROVIDER", "mock")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.GetCORSAllowAll())
}
