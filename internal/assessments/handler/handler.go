package handler

import (
	"errors"
	"fmt"
	"net/http"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/assessments/service"
	"vehicle_inspection_backend/internal/assessments/transport"
	"vehicle_inspection_backend/platform/httpkit"
	"vehicle_inspection_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for assessments.
type Handler struct {
	svc         *service.Service
	val         *validator.Validator
	maxFileSize int64
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid assessment id"
	msgMissingFile      = "file is required"

	// multipart framing allowance on top of the photo itself
	multipartOverhead = 1 << 20
)

// New creates a new assessments handler.
func New(svc *service.Service, val *validator.Validator, maxFileSize int64) *Handler {
	return &Handler{svc: svc, val: val, maxFileSize: maxFileSize}
}

// Create starts an assessment.
// POST /api/v1/assessments
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	a, err := h.svc.StartAssessment(c.Request.Context(), req.VehicleID, req.VehicleName)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, a)
}

// List returns a page of assessments.
// GET /api/v1/assessments
func (h *Handler) List(c *gin.Context) {
	var req transport.ListAssessmentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	page, pageSize := req.Page, req.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}

	result, err := h.svc.ListAssessments(c.Request.Context(), page, pageSize)
	if httpkit.HandleError(c, err) {
		return
	}
	totalPages := (result.Total + pageSize - 1) / pageSize
	httpkit.OK(c, transport.AssessmentListResponse{
		Items:      result.Items,
		Total:      result.Total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// Get returns an assessment with photos and damages per phase and angle.
// GET /api/v1/assessments/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	detail, err := h.svc.GetAssessment(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.AssessmentDetailResponse{
		Assessment:   detail.Assessment,
		Phases:       detail.Phases,
		Completeness: detail.Completeness,
	})
}

// Delete removes an assessment and its photos.
// DELETE /api/v1/assessments/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteAssessment(c.Request.Context(), id)) {
		return
	}
	httpkit.OK(c, transport.DeleteAssessmentResponse{Status: "deleted"})
}

// UploadPhoto stores the photo for one angle of one phase.
// PUT /api/v1/assessments/:id/photos/:phase/:angle
func (h *Handler) UploadPhoto(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	phase, angle, ok := h.parsePhotoPath(c)
	if !ok {
		return
	}

	limit := h.maxFileSize + multipartOverhead
	if c.Request.ContentLength > limit {
		h.fileTooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fileTooLarge(c)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, msgMissingFile, nil)
		return
	}
	file, err := header.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	defer file.Close()

	photo, err := h.svc.UploadPhoto(c.Request.Context(), service.UploadPhotoInput{
		AssessmentID: id,
		Angle:        angle,
		Phase:        phase,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Reader:       file,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, photo)
}

func (h *Handler) fileTooLarge(c *gin.Context) {
	httpkit.Error(c, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("file exceeds maximum size of %d bytes", h.maxFileSize), nil)
}

// PhotoURL returns a presigned download URL for a photo.
// GET /api/v1/assessments/:id/photos/:phase/:angle/url
func (h *Handler) PhotoURL(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	phase, angle, ok := h.parsePhotoPath(c)
	if !ok {
		return
	}

	url, err := h.svc.PhotoDownloadURL(c.Request.Context(), id, phase, angle)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, url)
}

// Completeness reports captured and missing angles of a phase.
// GET /api/v1/assessments/:id/completeness/:phase
func (h *Handler) Completeness(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var params transport.PhasePathParams
	if err := c.ShouldBindUri(&params); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(params); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.PhaseCompleteness(c.Request.Context(), id, domain.Phase(params.Phase))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AnalyzePickup runs detection over the pickup photos.
// POST /api/v1/assessments/:id/analyze/pickup
func (h *Handler) AnalyzePickup(c *gin.Context) {
	h.analyze(c, domain.PhasePickup)
}

// AnalyzeReturn runs detection over the return photos.
// POST /api/v1/assessments/:id/analyze/return
func (h *Handler) AnalyzeReturn(c *gin.Context) {
	h.analyze(c, domain.PhaseReturn)
}

func (h *Handler) analyze(c *gin.Context, phase domain.Phase) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if _, err := h.svc.AnalyzePhase(c.Request.Context(), id, phase); httpkit.HandleError(c, err) {
		return
	}
	h.Get(c)
}

// Compare flags new damages and completes the assessment.
// POST /api/v1/assessments/:id/compare
func (h *Handler) Compare(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	a, cmp, err := h.svc.Compare(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.CompareResponse{Assessment: a, Comparison: cmp})
}

// Summary returns the cost report.
// GET /api/v1/assessments/:id/summary
func (h *Handler) Summary(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	summary, err := h.svc.Summary(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) parsePhotoPath(c *gin.Context) (domain.Phase, domain.Angle, bool) {
	var params transport.PhotoPathParams
	if err := c.ShouldBindUri(&params); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return "", "", false
	}
	if err := h.val.Struct(params); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return "", "", false
	}
	return domain.Phase(params.Phase), domain.Angle(params.Angle), true
}
