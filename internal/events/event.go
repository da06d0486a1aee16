// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"vehicle_inspection_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Assessment Domain Events
// =============================================================================

// AssessmentStarted is published when an inspection is created.
type AssessmentStarted struct {
	BaseEvent
	AssessmentID uuid.UUID `json:"assessmentId"`
	VehicleID    string    `json:"vehicleId"`
}

func (e AssessmentStarted) EventName() string { return "assessments.started" }

// PhotoUploaded is published after a photo is committed. PhaseComplete is
// true when this upload made all five angles of the phase present.
type PhotoUploaded struct {
	BaseEvent
	AssessmentID  uuid.UUID `json:"assessmentId"`
	PhotoID       uuid.UUID `json:"photoId"`
	Angle         string    `json:"angle"`
	Phase         string    `json:"phase"`
	Replaced      bool      `json:"replaced"`
	PhaseComplete bool      `json:"phaseComplete"`
}

func (e PhotoUploaded) EventName() string { return "assessments.photo_uploaded" }

// PhaseAnalyzed is published after a successful analyze commit.
type PhaseAnalyzed struct {
	BaseEvent
	AssessmentID    uuid.UUID `json:"assessmentId"`
	Phase           string    `json:"phase"`
	Provider        string    `json:"provider"`
	DamageCount     int       `json:"damageCount"`
	TotalDamageCost float64   `json:"totalDamageCost"`
}

func (e PhaseAnalyzed) EventName() string { return "assessments.phase_analyzed" }

// PhaseAnalysisFailed is published when detection fails for a phase.
type PhaseAnalysisFailed struct {
	BaseEvent
	AssessmentID uuid.UUID `json:"assessmentId"`
	Phase        string    `json:"phase"`
	Provider     string    `json:"provider"`
	Reason       string    `json:"reason"`
}

func (e PhaseAnalysisFailed) EventName() string { return "assessments.phase_analysis_failed" }

// AssessmentCompleted is published after every successful comparison.
type AssessmentCompleted struct {
	BaseEvent
	AssessmentID    uuid.UUID `json:"assessmentId"`
	NewDamageCount  int       `json:"newDamageCount"`
	NewDamageCost   float64   `json:"newDamageCost"`
	TotalDamageCost float64   `json:"totalDamageCost"`
}

func (e AssessmentCompleted) EventName() string { return "assessments.completed" }
