// Package domain holds the inspection model and the pure rules over it:
// phase completeness, lifecycle ordering, cross-phase damage matching and
// cost aggregation. Nothing here does I/O.
package domain

import (
	"strings"

	"vehicle_inspection_backend/platform/apperr"
)

// Angle is one of the five fixed vehicle-photo viewpoints.
type Angle string

const (
	AngleFront         Angle = "front"
	AngleRear          Angle = "rear"
	AngleDriverSide    Angle = "driver_side"
	AnglePassengerSide Angle = "passenger_side"
	AngleRoof          Angle = "roof"
)

// AllAngles returns the five angles in canonical order. The slice is a copy.
func AllAngles() []Angle {
	return []Angle{AngleFront, AngleRear, AngleDriverSide, AnglePassengerSide, AngleRoof}
}

// Valid reports whether a is one of the five angles.
func (a Angle) Valid() bool {
	switch a {
	case AngleFront, AngleRear, AngleDriverSide, AnglePassengerSide, AngleRoof:
		return true
	}
	return false
}

// ParseAngle validates a raw angle literal.
func ParseAngle(raw string) (Angle, error) {
	a := Angle(strings.TrimSpace(raw))
	if !a.Valid() {
		return "", apperr.Validation("invalid vehicle angle").WithDetails(map[string]any{
			"angle":   raw,
			"allowed": AllAngles(),
		})
	}
	return a, nil
}

// Phase is the point in the rental at which the vehicle is photographed.
type Phase string

const (
	PhasePickup Phase = "pickup"
	PhaseReturn Phase = "return"
)

// AllPhases returns both phases in lifecycle order.
func AllPhases() []Phase {
	return []Phase{PhasePickup, PhaseReturn}
}

// Valid reports whether p is pickup or return.
func (p Phase) Valid() bool {
	return p == PhasePickup || p == PhaseReturn
}

// ParsePhase validates a raw phase literal.
func ParsePhase(raw string) (Phase, error) {
	p := Phase(strings.TrimSpace(raw))
	if !p.Valid() {
		return "", apperr.Validation("invalid assessment phase").WithDetails(map[string]any{
			"phase":   raw,
			"allowed": AllPhases(),
		})
	}
	return p, nil
}

// Severity classifies a damage for cost lookup and summary counts.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// AllSeverities returns the severities from least to most serious.
func AllSeverities() []Severity {
	return []Severity{SeverityMinor, SeverityModerate, SeveritySevere}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

// ParseSeverity accepts any casing and surrounding whitespace.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", apperr.Validation("invalid damage severity").WithDetails(map[string]any{
			"severity": raw,
			"allowed":  AllSeverities(),
		})
	}
	return s, nil
}

// Status is the assessment lifecycle state. It only ever moves forward.
type Status string

const (
	StatusPickupInProgress Status = "pickup_in_progress"
	StatusPickupComplete   Status = "pickup_complete"
	StatusReturnInProgress Status = "return_in_progress"
	StatusCompleted        Status = "completed"
)

func (s Status) rank() int {
	switch s {
	case StatusPickupInProgress:
		return 0
	case StatusPickupComplete:
		return 1
	case StatusReturnInProgress:
		return 2
	case StatusCompleted:
		return 3
	}
	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// CanAdvanceTo reports whether moving from s to next keeps the order.
// Staying in place is allowed.
func (s Status) CanAdvanceTo(next Status) bool {
	return s.Valid() && next.Valid() && next.rank() >= s.rank()
}

// AtLeast reports whether s is at or past other.
func (s Status) AtLeast(other Status) bool {
	return s.rank() >= other.rank()
}
