package repository

import (
	"context"
	"sort"
	"sync"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/platform/apperr"

	"github.com/google/uuid"
)

type photoKey struct {
	assessmentID uuid.UUID
	angle        domain.Angle
	phase        domain.Phase
}

// MemoryRepository keeps everything in process memory behind one lock.
// It serves local runs without Postgres and the service tests.
type MemoryRepository struct {
	mu          sync.RWMutex
	assessments map[uuid.UUID]domain.Assessment
	photos      map[photoKey]domain.Photo
	damages     map[uuid.UUID][]domain.Damage
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		assessments: make(map[uuid.UUID]domain.Assessment),
		photos:      make(map[photoKey]domain.Photo),
		damages:     make(map[uuid.UUID][]domain.Damage),
	}
}

func (r *MemoryRepository) CreateAssessment(_ context.Context, a domain.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.assessments[a.ID]; exists {
		return apperr.Conflict("assessment already exists")
	}
	r.assessments[a.ID] = a
	return nil
}

func (r *MemoryRepository) GetAssessment(_ context.Context, id uuid.UUID) (domain.Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assessments[id]
	if !ok {
		return domain.Assessment{}, apperr.NotFound(assessmentNotFoundMsg)
	}
	return a, nil
}

func (r *MemoryRepository) ListAssessments(_ context.Context, params ListParams) (ListResult, error) {
	r.mu.RLock()
	items := make([]domain.Assessment, 0, len(r.assessments))
	for _, a := range r.assessments {
		items = append(items, a)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := len(items)
	start := min(max(params.Offset, 0), total)
	end := total
	if params.Limit > 0 {
		end = min(start+params.Limit, total)
	}
	return ListResult{Items: items[start:end], Total: total}, nil
}

func (r *MemoryRepository) DeleteAssessment(_ context.Context, id uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assessments[id]; !ok {
		return nil, apperr.NotFound(assessmentNotFoundMsg)
	}
	keys := make([]string, 0, 10)
	for k, p := range r.photos {
		if k.assessmentID == id {
			keys = append(keys, p.ObjectKey)
			delete(r.photos, k)
		}
	}
	delete(r.damages, id)
	delete(r.assessments, id)
	sort.Strings(keys)
	return keys, nil
}

func (r *MemoryRepository) SavePhoto(_ context.Context, rep PhotoReplacement) (*domain.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assessments[rep.Assessment.ID]; !ok {
		return nil, apperr.NotFound(assessmentNotFoundMsg)
	}

	key := photoKey{rep.Photo.AssessmentID, rep.Photo.Angle, rep.Photo.Phase}
	var retired *domain.Photo
	if old, ok := r.photos[key]; ok {
		retired = &old
		kept := r.damages[rep.Assessment.ID][:0:0]
		for _, d := range r.damages[rep.Assessment.ID] {
			if d.PhotoID != old.ID {
				kept = append(kept, d)
			}
		}
		r.damages[rep.Assessment.ID] = kept
	}
	r.photos[key] = rep.Photo
	r.assessments[rep.Assessment.ID] = rep.Assessment
	return retired, nil
}

func (r *MemoryRepository) GetPhoto(_ context.Context, assessmentID uuid.UUID, angle domain.Angle, phase domain.Phase) (domain.Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.photos[photoKey{assessmentID, angle, phase}]
	if !ok {
		return domain.Photo{}, apperr.NotFound(photoNotFoundMsg)
	}
	return p, nil
}

func (r *MemoryRepository) ListPhotos(_ context.Context, assessmentID uuid.UUID) ([]domain.Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Photo, 0, 10)
	for k, p := range r.photos {
		if k.assessmentID == assessmentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (r *MemoryRepository) ListDamages(_ context.Context, assessmentID uuid.UUID) ([]domain.Damage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.damages[assessmentID]
	out := make([]domain.Damage, len(src))
	copy(out, src)
	return out, nil
}

func (r *MemoryRepository) CommitPhaseAnalysis(_ context.Context, analysis PhaseAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := analysis.Assessment.ID
	if _, ok := r.assessments[id]; !ok {
		return apperr.NotFound(assessmentNotFoundMsg)
	}

	kept := make([]domain.Damage, 0, len(r.damages[id])+len(analysis.Damages))
	for _, d := range r.damages[id] {
		if d.Phase != analysis.Phase {
			kept = append(kept, d)
		}
	}
	kept = append(kept, analysis.Damages...)
	r.damages[id] = kept

	scores := make(map[uuid.UUID]PhotoScore, len(analysis.Scores))
	for _, s := range analysis.Scores {
		scores[s.PhotoID] = s
	}
	for k, p := range r.photos {
		if s, ok := scores[p.ID]; ok && k.assessmentID == id {
			score, at := s.Score, s.AnalyzedAt
			p.AnalysisScore = &score
			p.AnalyzedAt = &at
			r.photos[k] = p
		}
	}

	r.assessments[id] = analysis.Assessment
	return nil
}

func (r *MemoryRepository) CommitComparison(_ context.Context, a domain.Assessment, newDamageIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assessments[a.ID]; !ok {
		return apperr.NotFound(assessmentNotFoundMsg)
	}
	r.damages[a.ID] = domain.ApplyComparison(r.damages[a.ID], newDamageIDs)
	r.assessments[a.ID] = a
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
