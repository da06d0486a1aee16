// Package service runs the inspection workflow: assessment lifecycle,
// photo intake, per-phase damage detection and cross-phase comparison.
package service

import (
	"context"
	"io"
	"time"

	"vehicle_inspection_backend/internal/adapters/storage"
	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/assessments/repository"
	"vehicle_inspection_backend/internal/detection"
	"vehicle_inspection_backend/internal/events"
	"vehicle_inspection_backend/platform/apperr"
	"vehicle_inspection_backend/platform/lock"
	"vehicle_inspection_backend/platform/logger"
	"vehicle_inspection_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	defaultMaxConcurrency = 5
	defaultMaxFileSize    = 20 << 20
	maxPageSize           = 100
)

// Analyzer runs damage detection on one photo. *detection.Registry
// satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req detection.Request) (*detection.Result, error)
	Active() string
}

// PhotoStore keeps photo objects. storage.ObjectStore satisfies it.
type PhotoStore interface {
	Put(ctx context.Context, key, contentType string, reader io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string) (*storage.PresignedURL, error)
}

// Options tunes the service.
type Options struct {
	// MaxConcurrency bounds the per-angle detection calls of one analyze.
	MaxConcurrency int
	// MaxFileSize is the largest accepted photo in bytes.
	MaxFileSize int64
}

// Service implements the assessment workflow.
type Service struct {
	repo           repository.Repository
	analyzer       Analyzer
	store          PhotoStore
	locker         lock.Locker
	bus            events.Publisher
	log            *logger.Logger
	maxConcurrency int
	maxFileSize    int64
	now            func() time.Time
}

// New creates the service.
func New(
	repo repository.Repository,
	analyzer Analyzer,
	store PhotoStore,
	locker lock.Locker,
	bus events.Publisher,
	log *logger.Logger,
	opts Options,
) *Service {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	return &Service{
		repo:           repo,
		analyzer:       analyzer,
		store:          store,
		locker:         locker,
		bus:            bus,
		log:            log,
		maxConcurrency: opts.MaxConcurrency,
		maxFileSize:    opts.MaxFileSize,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// AssessmentDetail is an assessment with its photos and damages grouped per
// phase and angle.
type AssessmentDetail struct {
	Assessment   domain.Assessment
	Phases       map[domain.Phase]domain.PhaseRecords
	Completeness map[domain.Phase]domain.PhaseCompleteness
}

// StartAssessment creates a new assessment in pickup_in_progress.
func (s *Service) StartAssessment(ctx context.Context, vehicleID, vehicleName string) (domain.Assessment, error) {
	vehicleID = sanitize.Text(vehicleID)
	vehicleName = sanitize.Text(vehicleName)
	if vehicleID == "" || vehicleName == "" {
		return domain.Assessment{}, apperr.Validation("vehicle id and vehicle name are required")
	}

	a := domain.NewAssessment(vehicleID, vehicleName, s.now())
	if err := s.repo.CreateAssessment(ctx, a); err != nil {
		return domain.Assessment{}, err
	}

	s.log.WithContext(ctx).Info("assessment started", "assessmentId", a.ID, "vehicleId", vehicleID)
	s.bus.Publish(ctx, events.AssessmentStarted{
		BaseEvent:    events.NewBaseEvent(),
		AssessmentID: a.ID,
		VehicleID:    vehicleID,
	})
	return a, nil
}

// GetAssessment returns the assessment with grouped photos and damages.
func (s *Service) GetAssessment(ctx context.Context, id uuid.UUID) (AssessmentDetail, error) {
	a, err := s.repo.GetAssessment(ctx, id)
	if err != nil {
		return AssessmentDetail{}, err
	}
	photos, err := s.repo.ListPhotos(ctx, id)
	if err != nil {
		return AssessmentDetail{}, err
	}
	damages, err := s.repo.ListDamages(ctx, id)
	if err != nil {
		return AssessmentDetail{}, err
	}

	completeness := make(map[domain.Phase]domain.PhaseCompleteness, 2)
	for _, phase := range domain.AllPhases() {
		completeness[phase] = domain.Completeness(photos, phase)
	}
	return AssessmentDetail{
		Assessment:   a,
		Phases:       domain.GroupByPhaseAngle(photos, damages),
		Completeness: completeness,
	}, nil
}

// ListAssessments returns one page of assessments, newest first.
func (s *Service) ListAssessments(ctx context.Context, page, pageSize int) (repository.ListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	pageSize = min(pageSize, maxPageSize)
	return s.repo.ListAssessments(ctx, repository.ListParams{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
}

// DeleteAssessment removes an assessment, its records and its stored photos.
// Object removal is best effort once the records are gone.
func (s *Service) DeleteAssessment(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	keys, err := s.repo.DeleteAssessment(ctx, id)
	if err != nil {
		return err
	}
	for _, key := range keys {
		s.removeObject(ctx, key)
	}
	s.log.WithContext(ctx).Info("assessment deleted", "assessmentId", id, "photos", len(keys))
	return nil
}

func (s *Service) lock(ctx context.Context, id uuid.UUID) (lock.Unlock, error) {
	unlock, err := s.locker.Lock(ctx, "assessment:"+id.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConflict, "assessment is busy", err).WithOp("lock assessment " + id.String())
	}
	return unlock, nil
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.WithContext(ctx).Warn("failed to delete photo object", "objectKey", key, "error", err)
	}
}
