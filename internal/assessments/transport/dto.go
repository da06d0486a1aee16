// Package transport holds the request and response shapes of the
// assessments HTTP API.
package transport

import (
	"fmt"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/platform/validator"

	playground "github.com/go-playground/validator/v10"
)

const (
	TagVehicleAngle    = "vehicle_angle"
	TagAssessmentPhase = "assessment_phase"
)

// RegisterValidations adds the vehicle_angle and assessment_phase tags.
func RegisterValidations(val *validator.Validator) error {
	if err := val.RegisterValidation(TagVehicleAngle, func(fl playground.FieldLevel) bool {
		return domain.Angle(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("register %s: %w", TagVehicleAngle, err)
	}
	if err := val.RegisterValidation(TagAssessmentPhase, func(fl playground.FieldLevel) bool {
		return domain.Phase(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("register %s: %w", TagAssessmentPhase, err)
	}
	return nil
}

// Requests

type CreateAssessmentRequest struct {
	VehicleID   string `json:"vehicleId" validate:"required,max=100"`
	VehicleName string `json:"vehicleName" validate:"required,max=200"`
}

type ListAssessmentsRequest struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type PhotoPathParams struct {
	Phase string `uri:"phase" validate:"required,assessment_phase"`
	Angle string `uri:"angle" validate:"required,vehicle_angle"`
}

type PhasePathParams struct {
	Phase string `uri:"phase" validate:"required,assessment_phase"`
}

// Responses

type AssessmentListResponse struct {
	Items      []domain.Assessment `json:"items"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
	TotalPages int                 `json:"totalPages"`
}

// AssessmentDetailResponse flattens the assessment and adds photos and
// damages keyed by phase, then angle.
type AssessmentDetailResponse struct {
	domain.Assessment
	Phases       map[domain.Phase]domain.PhaseRecords      `json:"phases"`
	Completeness map[domain.Phase]domain.PhaseCompleteness `json:"completeness"`
}

type CompareResponse struct {
	domain.Assessment
	Comparison domain.Comparison `json:"comparison"`
}

type DeleteAssessmentResponse struct {
	Status string `json:"status"`
}
