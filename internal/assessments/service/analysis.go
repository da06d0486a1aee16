package service

import (
	"context"
	"time"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/assessments/repository"
	"vehicle_inspection_backend/internal/detection"
	"vehicle_inspection_backend/internal/events"
	"vehicle_inspection_backend/platform/apperr"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AnalyzePickup runs detection over the five pickup photos.
func (s *Service) AnalyzePickup(ctx context.Context, id uuid.UUID) (domain.Assessment, error) {
	return s.AnalyzePhase(ctx, id, domain.PhasePickup)
}

// AnalyzeReturn runs detection over the five return photos.
func (s *Service) AnalyzeReturn(ctx context.Context, id uuid.UUID) (domain.Assessment, error) {
	return s.AnalyzePhase(ctx, id, domain.PhaseReturn)
}

// AnalyzePhase analyzes every angle of phase and commits the damages, photo
// scores and recomputed totals in one write. Nothing is written unless every
// angle succeeds.
func (s *Service) AnalyzePhase(ctx context.Context, id uuid.UUID, phase domain.Phase) (domain.Assessment, error) {
	if !phase.Valid() {
		return domain.Assessment{}, apperr.Validation("invalid phase")
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return domain.Assessment{}, err
	}
	defer unlock()

	a, err := s.repo.GetAssessment(ctx, id)
	if err != nil {
		return domain.Assessment{}, err
	}
	if err := checkAnalyzeAllowed(a, phase); err != nil {
		return domain.Assessment{}, err
	}

	photos, err := s.repo.ListPhotos(ctx, id)
	if err != nil {
		return domain.Assessment{}, err
	}
	completeness := domain.Completeness(photos, phase)
	if !completeness.Complete {
		return domain.Assessment{}, apperr.Precondition("phase incomplete").
			WithDetails(map[string]any{"phase": phase, "missing": completeness.Missing})
	}

	provider := s.analyzer.Active()
	log := s.log.WithContext(ctx)
	start := time.Now()

	targets := phasePhotos(photos, phase)
	results, err := s.detectAll(ctx, targets)
	if err != nil {
		log.Warn("phase analysis failed", "assessmentId", id, "phase", phase, "provider", provider, "error", err)
		s.bus.Publish(ctx, events.PhaseAnalysisFailed{
			BaseEvent:    events.NewBaseEvent(),
			AssessmentID: id,
			Phase:        string(phase),
			Provider:     provider,
			Reason:       err.Error(),
		})
		return domain.Assessment{}, err
	}

	existing, err := s.repo.ListDamages(ctx, id)
	if err != nil {
		return domain.Assessment{}, err
	}

	now := s.now()
	damages := make([]domain.Damage, 0)
	scores := make([]repository.PhotoScore, 0, len(targets))
	for i, photo := range targets {
		res := results[i]
		for _, det := range res.Detections {
			damages = append(damages, domain.Damage{
				ID:            uuid.New(),
				AssessmentID:  id,
				PhotoID:       photo.ID,
				Angle:         photo.Angle,
				Phase:         phase,
				Description:   det.Description,
				Severity:      det.Severity,
				Location:      det.Location,
				EstimatedCost: det.EstimatedCost,
				Confidence:    det.Confidence,
				BoundingBox:   det.BoundingBox,
				CreatedAt:     now,
			})
		}
		scores = append(scores, repository.PhotoScore{PhotoID: photo.ID, Score: res.AnalysisScore, AnalyzedAt: now})
	}

	// the other phase keeps its damages; this phase's are replaced
	all := make([]domain.Damage, 0, len(existing)+len(damages))
	for _, d := range existing {
		if d.Phase != phase {
			all = append(all, d)
		}
	}
	all = append(all, damages...)
	totals := domain.ComputeTotals(all)

	a.TotalDamageCost = totals.Total
	a.NewDamageCost = totals.New
	if phase == domain.PhasePickup {
		a.Advance(domain.StatusPickupComplete)
	} else {
		a.Advance(domain.StatusReturnInProgress)
	}
	a.MarkPhaseAnalyzed(phase, now)
	a.UpdatedAt = now

	if err := s.repo.CommitPhaseAnalysis(ctx, repository.PhaseAnalysis{
		Assessment: a,
		Phase:      phase,
		Damages:    damages,
		Scores:     scores,
	}); err != nil {
		return domain.Assessment{}, err
	}

	log.Info("phase analyzed",
		"assessmentId", id,
		"phase", phase,
		"provider", provider,
		"damages", len(damages),
		"totalDamageCost", a.TotalDamageCost,
		"durationMs", time.Since(start).Milliseconds(),
	)
	s.bus.Publish(ctx, events.PhaseAnalyzed{
		BaseEvent:       events.NewBaseEvent(),
		AssessmentID:    id,
		Phase:           string(phase),
		Provider:        provider,
		DamageCount:     len(damages),
		TotalDamageCost: a.TotalDamageCost,
	})
	return a, nil
}

func checkAnalyzeAllowed(a domain.Assessment, phase domain.Phase) error {
	if phase == domain.PhasePickup {
		if a.Status.AtLeast(domain.StatusReturnInProgress) {
			return apperr.Precondition("pickup analysis is closed once the return phase has started")
		}
		return nil
	}
	if a.Status == domain.StatusCompleted {
		return apperr.Precondition("assessment is completed")
	}
	if !a.IsPhaseAnalyzed(domain.PhasePickup) {
		return apperr.Precondition("pickup phase has not been analyzed")
	}
	return nil
}

// phasePhotos returns the photos of phase in canonical angle order.
func phasePhotos(photos []domain.Photo, phase domain.Phase) []domain.Photo {
	byAngle := make(map[domain.Angle]domain.Photo, 5)
	for _, p := range photos {
		if p.Phase == phase {
			byAngle[p.Angle] = p
		}
	}
	out := make([]domain.Photo, 0, len(byAngle))
	for _, angle := range domain.AllAngles() {
		if p, ok := byAngle[angle]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) detectAll(ctx context.Context, photos []domain.Photo) ([]*detection.Result, error) {
	results := make([]*detection.Result, len(photos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i, photo := range photos {
		g.Go(func() error {
			res, err := s.analyzer.Analyze(gctx, detection.Request{
				Photo: detection.PhotoRef{Locator: photo.ObjectKey, ContentType: photo.ContentType},
				Angle: photo.Angle,
				Phase: photo.Phase,
			})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Compare flags return damages with no pickup damage nearby as new, then
// completes the assessment. Flags are recomputed from scratch on every run.
func (s *Service) Compare(ctx context.Context, id uuid.UUID) (domain.Assessment, domain.Comparison, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return domain.Assessment{}, domain.Comparison{}, err
	}
	defer unlock()

	a, err := s.repo.GetAssessment(ctx, id)
	if err != nil {
		return domain.Assessment{}, domain.Comparison{}, err
	}
	if !a.IsPhaseAnalyzed(domain.PhasePickup) || !a.IsPhaseAnalyzed(domain.PhaseReturn) {
		return domain.Assessment{}, domain.Comparison{}, apperr.Precondition("both phases must be analyzed before comparison").
			WithDetails(map[string]any{
				"pickupAnalyzed": a.IsPhaseAnalyzed(domain.PhasePickup),
				"returnAnalyzed": a.IsPhaseAnalyzed(domain.PhaseReturn),
			})
	}

	damages, err := s.repo.ListDamages(ctx, id)
	if err != nil {
		return domain.Assessment{}, domain.Comparison{}, err
	}

	log := s.log.WithContext(ctx)
	cmp := domain.CompareAngles(damages)
	for _, m := range cmp.Angles {
		if m.Malformed > 0 {
			log.Warn("malformed damage locations", "assessmentId", id, "angle", m.Angle, "count", m.Malformed)
		}
	}

	flagged := domain.ApplyComparison(damages, cmp.NewDamageIDs)
	totals := domain.ComputeTotals(flagged)
	now := s.now()
	a.TotalDamageCost = totals.Total
	a.NewDamageCost = totals.New
	a.MarkCompleted(now)
	a.UpdatedAt = now

	if err := s.repo.CommitComparison(ctx, a, cmp.NewDamageIDs); err != nil {
		return domain.Assessment{}, domain.Comparison{}, err
	}

	log.Info("assessment compared",
		"assessmentId", id,
		"newDamages", len(cmp.NewDamageIDs),
		"matched", cmp.Matched,
		"malformed", cmp.Malformed,
		"newDamageCost", a.NewDamageCost,
	)
	s.bus.Publish(ctx, events.AssessmentCompleted{
		BaseEvent:       events.NewBaseEvent(),
		AssessmentID:    id,
		NewDamageCount:  len(cmp.NewDamageIDs),
		NewDamageCost:   a.NewDamageCost,
		TotalDamageCost: a.TotalDamageCost,
	})
	return a, cmp, nil
}

// Summary builds the cost report for an assessment.
func (s *Service) Summary(ctx context.Context, id uuid.UUID) (domain.Summary, error) {
	a, err := s.repo.GetAssessment(ctx, id)
	if err != nil {
		return domain.Summary{}, err
	}
	damages, err := s.repo.ListDamages(ctx, id)
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.BuildSummary(a, damages), nil
}
