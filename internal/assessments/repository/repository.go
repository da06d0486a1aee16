// Package repository persists assessments, photos and damages. Every
// multi-row change is a single atomic commit.
package repository

import (
	"context"
	"time"

	"vehicle_inspection_backend/internal/assessments/domain"

	"github.com/google/uuid"
)

const (
	assessmentNotFoundMsg = "assessment not found"
	photoNotFoundMsg      = "photo not found"
)

// ListParams pages through assessments, newest first.
type ListParams struct {
	Limit  int
	Offset int
}

// ListResult is one page of assessments.
type ListResult struct {
	Items []domain.Assessment
	Total int
}

// PhotoScore records the analysis outcome for one photo.
type PhotoScore struct {
	PhotoID    uuid.UUID
	Score      float64
	AnalyzedAt time.Time
}

// PhaseAnalysis is everything an analyze operation writes.
type PhaseAnalysis struct {
	Assessment domain.Assessment
	Phase      domain.Phase
	// Damages replace every existing damage of Phase.
	Damages []domain.Damage
	Scores  []PhotoScore
}

// PhotoReplacement is everything an upload writes.
type PhotoReplacement struct {
	Assessment domain.Assessment
	Photo      domain.Photo
}

// Repository is the storage port of the assessments module.
type Repository interface {
	CreateAssessment(ctx context.Context, a domain.Assessment) error
	GetAssessment(ctx context.Context, id uuid.UUID) (domain.Assessment, error)
	ListAssessments(ctx context.Context, params ListParams) (ListResult, error)
	// DeleteAssessment removes the assessment with its photos and damages and
	// returns the object keys of the removed photos.
	DeleteAssessment(ctx context.Context, id uuid.UUID) ([]string, error)

	// SavePhoto stores the photo for its (angle, phase), retiring any previous
	// photo of that key together with its damages, and writes the assessment
	// row. It returns the retired photo, if any.
	SavePhoto(ctx context.Context, rep PhotoReplacement) (*domain.Photo, error)
	GetPhoto(ctx context.Context, assessmentID uuid.UUID, angle domain.Angle, phase domain.Phase) (domain.Photo, error)
	ListPhotos(ctx context.Context, assessmentID uuid.UUID) ([]domain.Photo, error)
	ListDamages(ctx context.Context, assessmentID uuid.UUID) ([]domain.Damage, error)

	// CommitPhaseAnalysis replaces the damages of one phase, records photo
	// scores and writes the assessment row.
	CommitPhaseAnalysis(ctx context.Context, analysis PhaseAnalysis) error
	// CommitComparison clears isNew on every damage of the assessment, sets it
	// on newDamageIDs and writes the assessment row.
	CommitComparison(ctx context.Context, a domain.Assessment, newDamageIDs []uuid.UUID) error
}
