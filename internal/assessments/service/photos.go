package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"vehicle_inspection_backend/internal/adapters/storage"
	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/assessments/repository"
	"vehicle_inspection_backend/internal/events"
	"vehicle_inspection_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
)

// UploadPhotoInput is one photo upload.
type UploadPhotoInput struct {
	AssessmentID uuid.UUID
	Angle        domain.Angle
	Phase        domain.Phase
	ContentType  string
	Size         int64
	Reader       io.Reader
}

// UploadPhoto stores the photo for (angle, phase), replacing any earlier
// one. The object is written under a fresh key first; the replaced object
// is removed only after the records commit.
func (s *Service) UploadPhoto(ctx context.Context, in UploadPhotoInput) (domain.Photo, error) {
	if !in.Angle.Valid() || !in.Phase.Valid() {
		return domain.Photo{}, apperr.Validation("invalid angle or phase")
	}
	contentType := storage.NormalizeContentType(in.ContentType)
	if err := storage.ValidateContentType(contentType); err != nil {
		return domain.Photo{}, apperr.Wrap(apperr.KindValidation, "unsupported photo format", err)
	}
	if err := storage.ValidateFileSize(in.Size, s.maxFileSize); err != nil {
		return domain.Photo{}, apperr.Wrap(apperr.KindValidation, "invalid photo size", err)
	}

	data, err := io.ReadAll(io.LimitReader(in.Reader, s.maxFileSize+1))
	if err != nil {
		return domain.Photo{}, apperr.Wrap(apperr.KindBadRequest, "failed to read photo", err)
	}
	if err := storage.ValidateFileSize(int64(len(data)), s.maxFileSize); err != nil {
		return domain.Photo{}, apperr.Wrap(apperr.KindValidation, "invalid photo size", err)
	}

	a, err := s.repo.GetAssessment(ctx, in.AssessmentID)
	if err != nil {
		return domain.Photo{}, err
	}
	if err := checkUploadAllowed(a, in.Phase); err != nil {
		return domain.Photo{}, err
	}

	folder := fmt.Sprintf("assessments/%s/%s", in.AssessmentID, in.Phase)
	key := storage.ObjectKey(folder, string(in.Angle), contentType)
	if err := s.store.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return domain.Photo{}, fmt.Errorf("store photo: %w", err)
	}

	photo, replaced, phaseComplete, err := s.commitUpload(ctx, in, key, contentType, data)
	if err != nil {
		s.removeObject(ctx, key)
		return domain.Photo{}, err
	}
	if replaced != nil {
		s.removeObject(ctx, replaced.ObjectKey)
	}

	s.log.WithContext(ctx).Info("photo uploaded",
		"assessmentId", in.AssessmentID,
		"phase", in.Phase,
		"angle", in.Angle,
		"replaced", replaced != nil,
		"phaseComplete", phaseComplete,
	)
	s.bus.Publish(ctx, events.PhotoUploaded{
		BaseEvent:     events.NewBaseEvent(),
		AssessmentID:  in.AssessmentID,
		PhotoID:       photo.ID,
		Angle:         string(in.Angle),
		Phase:         string(in.Phase),
		Replaced:      replaced != nil,
		PhaseComplete: phaseComplete,
	})
	return photo, nil
}

func (s *Service) commitUpload(ctx context.Context, in UploadPhotoInput, key, contentType string, data []byte) (domain.Photo, *domain.Photo, bool, error) {
	unlock, err := s.lock(ctx, in.AssessmentID)
	if err != nil {
		return domain.Photo{}, nil, false, err
	}
	defer unlock()

	// state may have moved while the object was being written
	a, err := s.repo.GetAssessment(ctx, in.AssessmentID)
	if err != nil {
		return domain.Photo{}, nil, false, err
	}
	if err := checkUploadAllowed(a, in.Phase); err != nil {
		return domain.Photo{}, nil, false, err
	}

	photos, err := s.repo.ListPhotos(ctx, in.AssessmentID)
	if err != nil {
		return domain.Photo{}, nil, false, err
	}
	var previous *domain.Photo
	for i := range photos {
		if photos[i].Angle == in.Angle && photos[i].Phase == in.Phase {
			previous = &photos[i]
			break
		}
	}

	now := s.now()
	if previous != nil {
		damages, err := s.repo.ListDamages(ctx, in.AssessmentID)
		if err != nil {
			return domain.Photo{}, nil, false, err
		}
		remaining := make([]domain.Damage, 0, len(damages))
		for _, d := range damages {
			if d.PhotoID != previous.ID {
				remaining = append(remaining, d)
			}
		}
		totals := domain.ComputeTotals(remaining)
		a.TotalDamageCost = totals.Total
		a.NewDamageCost = totals.New
		a.ClearPhaseAnalysis(in.Phase)
	}
	if in.Phase == domain.PhaseReturn {
		a.Advance(domain.StatusReturnInProgress)
	}
	a.UpdatedAt = now

	photo := domain.Photo{
		ID:           uuid.New(),
		AssessmentID: in.AssessmentID,
		Angle:        in.Angle,
		Phase:        in.Phase,
		ObjectKey:    key,
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
		UploadedAt:   now,
		CapturedAt:   captureTime(data),
	}

	replaced, err := s.repo.SavePhoto(ctx, repository.PhotoReplacement{Assessment: a, Photo: photo})
	if err != nil {
		return domain.Photo{}, nil, false, err
	}

	// completeness only changes on the first photo of an angle
	phaseComplete := false
	if previous == nil {
		photos = append(photos, photo)
		phaseComplete = domain.Completeness(photos, in.Phase).Complete
	}
	return photo, replaced, phaseComplete, nil
}

func checkUploadAllowed(a domain.Assessment, phase domain.Phase) error {
	if a.Status == domain.StatusCompleted {
		return apperr.Precondition("assessment is completed")
	}
	if phase == domain.PhasePickup && a.Status.AtLeast(domain.StatusReturnInProgress) {
		return apperr.Precondition("pickup photos are closed once the return phase has started")
	}
	if phase == domain.PhaseReturn && !a.IsPhaseAnalyzed(domain.PhasePickup) {
		return apperr.Precondition("return photos require an analyzed pickup phase")
	}
	return nil
}

// captureTime reads the EXIF DateTime of the photo. Formats without EXIF,
// or EXIF without a timestamp, give nil.
func captureTime(data []byte) *time.Time {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

// PhotoDownloadURL returns a presigned URL for the current photo of
// (angle, phase).
func (s *Service) PhotoDownloadURL(ctx context.Context, id uuid.UUID, phase domain.Phase, angle domain.Angle) (*storage.PresignedURL, error) {
	if _, err := s.repo.GetAssessment(ctx, id); err != nil {
		return nil, err
	}
	photo, err := s.repo.GetPhoto(ctx, id, angle, phase)
	if err != nil {
		return nil, err
	}
	url, err := s.store.PresignGet(ctx, photo.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("presign photo: %w", err)
	}
	return url, nil
}

// PhaseCompleteness reports which angles of phase have photos.
func (s *Service) PhaseCompleteness(ctx context.Context, id uuid.UUID, phase domain.Phase) (domain.PhaseCompleteness, error) {
	if !phase.Valid() {
		return domain.PhaseCompleteness{}, apperr.Validation("invalid phase")
	}
	if _, err := s.repo.GetAssessment(ctx, id); err != nil {
		return domain.PhaseCompleteness{}, err
	}
	photos, err := s.repo.ListPhotos(ctx, id)
	if err != nil {
		return domain.PhaseCompleteness{}, err
	}
	return domain.Completeness(photos, phase), nil
}

// MissingAngles lists the angles of phase still lacking a photo, in
// canonical order.
func (s *Service) MissingAngles(ctx context.Context, id uuid.UUID, phase domain.Phase) ([]domain.Angle, error) {
	c, err := s.PhaseCompleteness(ctx, id, phase)
	if err != nil {
		return nil, err
	}
	return c.Missing, nil
}
