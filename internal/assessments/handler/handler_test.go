package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"vehicle_inspection_backend/internal/adapters/storage"
	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/assessments/repository"
	"vehicle_inspection_backend/internal/assessments/service"
	"vehicle_inspection_backend/internal/assessments/transport"
	"vehicle_inspection_backend/internal/detection"
	"vehicle_inspection_backend/internal/detection/mock"
	"vehicle_inspection_backend/internal/events"
	"vehicle_inspection_backend/platform/lock"
	"vehicle_inspection_backend/platform/logger"
	"vehicle_inspection_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	val := validator.New()
	require.NoError(t, transport.RegisterValidations(val))

	registry := detection.NewRegistry(logger.Nop())
	registry.Register(mock.Name, mock.New(detection.DefaultCostPolicy()))
	require.NoError(t, registry.SetActive(context.Background(), mock.Name))

	svc := service.New(
		repository.NewMemoryRepository(),
		registry,
		storage.NewMemoryStore(),
		lock.NewKeyedMutex(),
		events.NewInMemoryBus(logger.Nop()),
		logger.Nop(),
		service.Options{MaxFileSize: 1 << 20},
	)
	h := New(svc, val, 1<<20)

	engine := gin.New()
	g := engine.Group("/api/v1/assessments")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/photos/:phase/:angle", h.UploadPhoto)
	g.GET("/:id/photos/:phase/:angle/url", h.PhotoURL)
	g.GET("/:id/completeness/:phase", h.Completeness)
	g.POST("/:id/analyze/pickup", h.AnalyzePickup)
	g.POST("/:id/analyze/return", h.AnalyzeReturn)
	g.POST("/:id/compare", h.Compare)
	g.GET("/:id/summary", h.Summary)
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func uploadPhoto(t *testing.T, engine *gin.Engine, id, phase, angle string) *httptest.ResponseRecorder {
	t.Helper()
	return uploadPhotoBytes(t, engine, id, phase, angle, []byte{0xFF, 0xD8, 0xFF, 0xD9})
}

func uploadPhotoBytes(t *testing.T, engine *gin.Engine, id, phase, angle string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.jpg"`, angle))
	header.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/v1/assessments/%s/photos/%s/%s", id, phase, angle), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func createAssessment(t *testing.T, engine *gin.Engine) string {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/api/v1/assessments", transport.CreateAssessmentRequest{
		VehicleID:   "VH-42",
		VehicleName: "Blue Hatchback",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var a domain.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	require.Equal(t, domain.StatusPickupInProgress, a.Status)
	return a.ID.String()
}

func TestCreateRejectsMissingFields(t *testing.T) {
	engine := newTestEngine(t)
	rec := doJSON(t, engine, http.MethodPost, "/api/v1/assessments", map[string]string{"vehicleId": "VH-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "vehicleName")
}

func TestGetReturnsFiveAnglesPerPhase(t *testing.T) {
	engine := newTestEngine(t)
	id := createAssessment(t, engine)

	rec := doJSON(t, engine, http.MethodGet, "/api/v1/assessments/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ID     string                                `json:"id"`
		Phases map[string]map[string]json.RawMessage `json:"phases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, id, body.ID)
	require.Len(t, body.Phases["pickup"], 5)
	require.Len(t, body.Phases["return"], 5)
}

func TestUnknownAndMalformedIDs(t *testing.T) {
	engine := newTestEngine(t)

	rec := doJSON(t, engine, http.MethodGet, "/api/v1/assessments/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/assessments/7f1c8a4e-0000-4000-8000-000000000000", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsUnknownAngle(t *testing.T) {
	engine := newTestEngine(t)
	id := createAssessment(t, engine)

	rec := uploadPhoto(t, engine, id, "pickup", "underside")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	engine := newTestEngine(t)
	id := createAssessment(t, engine)
	big := make([]byte, 2<<20+1)

	rec := uploadPhotoBytes(t, engine, id, "pickup", "front", big)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Contains(t, rec.Body.String(), "maximum size")
}

func TestUploadRejectsOversizedChunkedBody(t *testing.T) {
	engine := newTestEngine(t)
	id := createAssessment(t, engine)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "front.jpg")
	require.NoError(t, err)
	_, err = part.Write(make([]byte, 2<<20+1))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/assessments/"+id+"/photos/pickup/front", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWorkflowOverHTTP(t *testing.T) {
	engine := newTestEngine(t)
	id := createAssessment(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/assessments/"+id+"/analyze/pickup", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	for _, angle := range domain.AllAngles() {
		rec := uploadPhoto(t, engine, id, "pickup", string(angle))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/assessments/"+id+"/completeness/pickup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var completeness domain.PhaseCompleteness
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completeness))
	require.True(t, completeness.Complete)

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/assessments/"+id+"/analyze/pickup", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"pickup_complete"`)

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/assessments/"+id+"/compare", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	for _, angle := range domain.AllAngles() {
		rec := uploadPhoto(t, engine, id, "return", string(angle))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec = doJSON(t, engine, http.MethodPost, "/api/v1/assessments/"+id+"/analyze/return", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/assessments/"+id+"/compare", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var compared transport.CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &compared))
	require.Equal(t, domain.StatusCompleted, compared.Status)
	require.NotNil(t, compared.CompletedAt)

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/assessments/"+id+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary domain.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, compared.TotalDamageCost, summary.TotalDamageCost)
	require.Equal(t, compared.NewDamageCost, summary.NewDamageCost)

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/assessments/"+id+"/photos/return/roof/url", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodDelete, "/api/v1/assessments/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, engine, http.MethodGet, "/api/v1/assessments/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPaginates(t *testing.T) {
	engine := newTestEngine(t)
	for range 3 {
		createAssessment(t, engine)
	}

	rec := doJSON(t, engine, http.MethodGet, "/api/v1/assessments?page=1&pageSize=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list transport.AssessmentListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 3, list.Total)
	require.Len(t, list.Items, 2)
	require.Equal(t, 2, list.TotalPages)

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/assessments?pageSize=500", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
