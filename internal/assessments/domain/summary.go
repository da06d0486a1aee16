package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// RoundCents rounds a currency amount to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Totals are the two cost figures kept on an assessment.
type Totals struct {
	Total float64 `json:"totalDamageCost"`
	New   float64 `json:"newDamageCost"`
}

// ComputeTotals sums estimated costs over all damages and over the new ones.
func ComputeTotals(damages []Damage) Totals {
	var t Totals
	for _, d := range damages {
		t.Total += d.EstimatedCost
		if d.IsNew {
			t.New += d.EstimatedCost
		}
	}
	t.Total = RoundCents(t.Total)
	t.New = RoundCents(t.New)
	return t
}

// AngleSummary is the per-angle breakdown of a summary.
type AngleSummary struct {
	PickupCount int     `json:"pickupCount"`
	ReturnCount int     `json:"returnCount"`
	NewCount    int     `json:"newCount"`
	PickupCost  float64 `json:"pickupCost"`
	ReturnCost  float64 `json:"returnCost"`
	NewCost     float64 `json:"newCost"`
}

// SeveritySummary counts damages of one severity.
type SeveritySummary struct {
	Total int `json:"total"`
	New   int `json:"new"`
}

// Summary is the report for one assessment.
type Summary struct {
	AssessmentID     uuid.UUID                    `json:"assessmentId"`
	VehicleID        string                       `json:"vehicleId"`
	VehicleName      string                       `json:"vehicleName"`
	Status           Status                       `json:"status"`
	TotalDamageCost  float64                      `json:"totalDamageCost"`
	NewDamageCost    float64                      `json:"newDamageCost"`
	TotalDamages     int                          `json:"totalDamages"`
	PickupDamages    int                          `json:"pickupDamages"`
	ReturnDamages    int                          `json:"returnDamages"`
	NewDamages       int                          `json:"newDamages"`
	ByAngle          map[Angle]AngleSummary       `json:"byAngle"`
	BySeverity       map[Severity]SeveritySummary `json:"bySeverity"`
	PickupAnalyzedAt *time.Time                   `json:"pickupAnalyzedAt,omitempty"`
	ReturnAnalyzedAt *time.Time                   `json:"returnAnalyzedAt,omitempty"`
	CompletedAt      *time.Time                   `json:"completedAt,omitempty"`
}

// BuildSummary folds the damages of an assessment into a report. Every
// angle and severity is present, with zeros when nothing was found.
// The cost totals are recomputed from damages, not read from the assessment.
func BuildSummary(a Assessment, damages []Damage) Summary {
	s := Summary{
		AssessmentID:     a.ID,
		VehicleID:        a.VehicleID,
		VehicleName:      a.VehicleName,
		Status:           a.Status,
		ByAngle:          make(map[Angle]AngleSummary, 5),
		BySeverity:       make(map[Severity]SeveritySummary, 3),
		PickupAnalyzedAt: a.PickupAnalyzedAt,
		ReturnAnalyzedAt: a.ReturnAnalyzedAt,
		CompletedAt:      a.CompletedAt,
	}
	for _, angle := range AllAngles() {
		s.ByAngle[angle] = AngleSummary{}
	}
	for _, sev := range AllSeverities() {
		s.BySeverity[sev] = SeveritySummary{}
	}

	for _, d := range damages {
		as := s.ByAngle[d.Angle]
		switch d.Phase {
		case PhasePickup:
			as.PickupCount++
			as.PickupCost += d.EstimatedCost
			s.PickupDamages++
		case PhaseReturn:
			as.ReturnCount++
			as.ReturnCost += d.EstimatedCost
			s.ReturnDamages++
		}
		if d.IsNew {
			as.NewCount++
			as.NewCost += d.EstimatedCost
			s.NewDamages++
		}
		s.ByAngle[d.Angle] = as

		sv := s.BySeverity[d.Severity]
		sv.Total++
		if d.IsNew {
			sv.New++
		}
		s.BySeverity[d.Severity] = sv
	}

	for angle, as := range s.ByAngle {
		as.PickupCost = RoundCents(as.PickupCost)
		as.ReturnCost = RoundCents(as.ReturnCost)
		as.NewCost = RoundCents(as.NewCost)
		s.ByAngle[angle] = as
	}

	totals := ComputeTotals(damages)
	s.TotalDamageCost = totals.Total
	s.NewDamageCost = totals.New
	s.TotalDamages = len(damages)
	return s
}
