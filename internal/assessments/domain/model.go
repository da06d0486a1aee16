package domain

import (
	"time"

	"github.com/google/uuid"
)

// BoundingBox is an axis-aligned box with top-left origin, in source image pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether every component is non-negative.
func (b BoundingBox) Valid() bool {
	return b.X >= 0 && b.Y >= 0 && b.Width >= 0 && b.Height >= 0
}

// Center returns the box center as a location.
func (b BoundingBox) Center() Location {
	return Location{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Photo is the single current image for one (assessment, angle, phase).
type Photo struct {
	ID            uuid.UUID  `json:"id"`
	AssessmentID  uuid.UUID  `json:"assessmentId"`
	Angle         Angle      `json:"angle"`
	Phase         Phase      `json:"phase"`
	ObjectKey     string     `json:"objectKey"`
	ContentType   string     `json:"contentType"`
	SizeBytes     int64      `json:"sizeBytes"`
	UploadedAt    time.Time  `json:"uploadedAt"`
	CapturedAt    *time.Time `json:"capturedAt,omitempty"`
	AnalysisScore *float64   `json:"analysisScore,omitempty"`
	AnalyzedAt    *time.Time `json:"analyzedAt,omitempty"`
}

// Damage is one detected damage on one photo.
type Damage struct {
	ID            uuid.UUID    `json:"id"`
	AssessmentID  uuid.UUID    `json:"assessmentId"`
	PhotoID       uuid.UUID    `json:"photoId"`
	Angle         Angle        `json:"angle"`
	Phase         Phase        `json:"phase"`
	Description   string       `json:"description"`
	Severity      Severity     `json:"severity"`
	Location      string       `json:"location"`
	EstimatedCost float64      `json:"estimatedCost"`
	Confidence    float64      `json:"confidence"`
	BoundingBox   *BoundingBox `json:"boundingBox,omitempty"`
	IsNew         bool         `json:"isNew"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Assessment is the aggregate for one vehicle inspection across both phases.
type Assessment struct {
	ID               uuid.UUID  `json:"id"`
	VehicleID        string     `json:"vehicleId"`
	VehicleName      string     `json:"vehicleName"`
	Status           Status     `json:"status"`
	TotalDamageCost  float64    `json:"totalDamageCost"`
	NewDamageCost    float64    `json:"newDamageCost"`
	PickupAnalyzedAt *time.Time `json:"pickupAnalyzedAt,omitempty"`
	ReturnAnalyzedAt *time.Time `json:"returnAnalyzedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// NewAssessment creates an assessment in pickup_in_progress.
func NewAssessment(vehicleID, vehicleName string, now time.Time) Assessment {
	return Assessment{
		ID:          uuid.New(),
		VehicleID:   vehicleID,
		VehicleName: vehicleName,
		Status:      StatusPickupInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Advance moves the status forward to next. It is a no-op when the
// assessment is already at or past next.
func (a *Assessment) Advance(next Status) {
	if a.Status.CanAdvanceTo(next) {
		a.Status = next
	}
}

// PhaseAnalyzedAt returns the analysis timestamp for phase, or nil.
func (a *Assessment) PhaseAnalyzedAt(phase Phase) *time.Time {
	if phase == PhasePickup {
		return a.PickupAnalyzedAt
	}
	return a.ReturnAnalyzedAt
}

// IsPhaseAnalyzed reports whether phase has a successful analysis on record.
func (a *Assessment) IsPhaseAnalyzed(phase Phase) bool {
	return a.PhaseAnalyzedAt(phase) != nil
}

// MarkPhaseAnalyzed stamps phase as analyzed at the given time.
func (a *Assessment) MarkPhaseAnalyzed(phase Phase, at time.Time) {
	t := at
	if phase == PhasePickup {
		a.PickupAnalyzedAt = &t
		return
	}
	a.ReturnAnalyzedAt = &t
}

// ClearPhaseAnalysis forgets the analysis of phase, used when one of its
// photos is replaced.
func (a *Assessment) ClearPhaseAnalysis(phase Phase) {
	if phase == PhasePickup {
		a.PickupAnalyzedAt = nil
		return
	}
	a.ReturnAnalyzedAt = nil
}

// MarkCompleted stamps completedAt unless it is already set.
func (a *Assessment) MarkCompleted(at time.Time) {
	a.Advance(StatusCompleted)
	if a.CompletedAt == nil {
		t := at
		a.CompletedAt = &t
	}
}
