package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vehicle_inspection_backend/internal/detection"
	"vehicle_inspection_backend/internal/detection/mock"
	"vehicle_inspection_backend/platform/logger"
	"vehicle_inspection_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type brokenProvider struct{}

func (brokenProvider) Name() string                        { return "broken" }
func (brokenProvider) ValidateConfig(context.Context) bool { return false }
func (brokenProvider) Analyze(context.Context, detection.Request) (*detection.Result, error) {
	return nil, context.Canceled
}

func newEngine(t *testing.T) (*gin.Engine, *detection.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := detection.NewRegistry(logger.Nop())
	registry.Register(mock.Name, mock.New(detection.DefaultCostPolicy()))
	registry.Register("broken", brokenProvider{})
	require.NoError(t, registry.SetActive(context.Background(), mock.Name))

	h := NewHandler(registry, validator.New(), logger.Nop())
	engine := gin.New()
	engine.GET("/providers", h.ListProviders)
	engine.PUT("/providers/active", h.SetActiveProvider)
	return engine, registry
}

func put(engine *gin.Engine, name string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(SetActiveRequest{Name: name})
	req := httptest.NewRequest(http.MethodPut, "/providers/active", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestListProviders(t *testing.T) {
	engine, _ := newEngine(t)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProvidersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"broken", "mock"}, resp.Providers)
	require.Equal(t, mock.Name, resp.Active)
}

func TestSetActiveProvider(t *testing.T) {
	engine, registry := newEngine(t)

	require.Equal(t, http.StatusNotFound, put(engine, "missing").Code)
	require.Equal(t, http.StatusBadRequest, put(engine, "broken").Code)
	require.Equal(t, mock.Name, registry.Active())

	require.Equal(t, http.StatusBadRequest, put(engine, "").Code)
	require.Equal(t, http.StatusOK, put(engine, mock.Name).Code)
}
