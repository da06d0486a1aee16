package repository

import (
	"context"
	"errors"
	"fmt"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores assessments in Postgres through pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a repository on an open pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const assessmentColumns = `
	id, vehicle_id, vehicle_name, status, total_damage_cost, new_damage_cost,
	pickup_analyzed_at, return_analyzed_at, completed_at, created_at, updated_at`

const photoColumns = `
	id, assessment_id, angle, phase, object_key, content_type, size_bytes,
	uploaded_at, captured_at, analysis_score, analyzed_at`

const damageColumns = `
	id, assessment_id, photo_id, angle, phase, description, severity, location,
	estimated_cost, confidence, bbox_x, bbox_y, bbox_width, bbox_height, is_new, created_at`

func scanAssessment(row pgx.Row) (domain.Assessment, error) {
	var a domain.Assessment
	err := row.Scan(
		&a.ID, &a.VehicleID, &a.VehicleName, &a.Status, &a.TotalDamageCost, &a.NewDamageCost,
		&a.PickupAnalyzedAt, &a.ReturnAnalyzedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func scanPhoto(row pgx.Row) (domain.Photo, error) {
	var p domain.Photo
	err := row.Scan(
		&p.ID, &p.AssessmentID, &p.Angle, &p.Phase, &p.ObjectKey, &p.ContentType, &p.SizeBytes,
		&p.UploadedAt, &p.CapturedAt, &p.AnalysisScore, &p.AnalyzedAt,
	)
	return p, err
}

func scanDamage(row pgx.Row) (domain.Damage, error) {
	var (
		d      domain.Damage
		bx, by *int32
		bw, bh *int32
	)
	err := row.Scan(
		&d.ID, &d.AssessmentID, &d.PhotoID, &d.Angle, &d.Phase, &d.Description, &d.Severity, &d.Location,
		&d.EstimatedCost, &d.Confidence, &bx, &by, &bw, &bh, &d.IsNew, &d.CreatedAt,
	)
	if err != nil {
		return d, err
	}
	if bx != nil && by != nil && bw != nil && bh != nil {
		d.BoundingBox = &domain.BoundingBox{X: int(*bx), Y: int(*by), Width: int(*bw), Height: int(*bh)}
	}
	return d, nil
}

func (r *PostgresRepository) CreateAssessment(ctx context.Context, a domain.Assessment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assessments (`+assessmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.VehicleID, a.VehicleName, a.Status, a.TotalDamageCost, a.NewDamageCost,
		a.PickupAnalyzedAt, a.ReturnAnalyzedAt, a.CompletedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAssessment(ctx context.Context, id uuid.UUID) (domain.Assessment, error) {
	a, err := scanAssessment(r.pool.QueryRow(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assessment{}, apperr.NotFound(assessmentNotFoundMsg)
	}
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("get assessment: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) ListAssessments(ctx context.Context, params ListParams) (ListResult, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assessments`).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count assessments: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = total
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+assessmentColumns+`
		FROM assessments
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`, limit, max(params.Offset, 0))
	if err != nil {
		return ListResult{}, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return ListResult{}, fmt.Errorf("scan assessment: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list assessments: %w", err)
	}
	return ListResult{Items: items, Total: total}, nil
}

func (r *PostgresRepository) DeleteAssessment(ctx context.Context, id uuid.UUID) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT object_key FROM assessment_photos WHERE assessment_id = $1 ORDER BY object_key`, id)
	if err != nil {
		return nil, fmt.Errorf("list photo keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list photo keys: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.NotFound(assessmentNotFoundMsg)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return keys, nil
}

func (r *PostgresRepository) SavePhoto(ctx context.Context, rep PhotoReplacement) (*domain.Photo, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p := rep.Photo
	var retired *domain.Photo
	old, err := scanPhoto(tx.QueryRow(ctx, `
		SELECT `+photoColumns+`
		FROM assessment_photos
		WHERE assessment_id = $1 AND angle = $2 AND phase = $3
		FOR UPDATE`, p.AssessmentID, p.Angle, p.Phase))
	switch {
	case err == nil:
		retired = &old
		// Cascades to the damages detected on the old photo.
		if _, err := tx.Exec(ctx, `DELETE FROM assessment_photos WHERE id = $1`, old.ID); err != nil {
			return nil, fmt.Errorf("retire photo: %w", err)
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("load current photo: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO assessment_photos (`+photoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.AssessmentID, p.Angle, p.Phase, p.ObjectKey, p.ContentType, p.SizeBytes,
		p.UploadedAt, p.CapturedAt, p.AnalysisScore, p.AnalyzedAt,
	); err != nil {
		return nil, fmt.Errorf("insert photo: %w", err)
	}

	if err := updateAssessment(ctx, tx, rep.Assessment); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit photo: %w", err)
	}
	return retired, nil
}

func (r *PostgresRepository) GetPhoto(ctx context.Context, assessmentID uuid.UUID, angle domain.Angle, phase domain.Phase) (domain.Photo, error) {
	p, err := scanPhoto(r.pool.QueryRow(ctx, `
		SELECT `+photoColumns+`
		FROM assessment_photos
		WHERE assessment_id = $1 AND angle = $2 AND phase = $3`, assessmentID, angle, phase))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Photo{}, apperr.NotFound(photoNotFoundMsg)
	}
	if err != nil {
		return domain.Photo{}, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListPhotos(ctx context.Context, assessmentID uuid.UUID) ([]domain.Photo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+photoColumns+`
		FROM assessment_photos
		WHERE assessment_id = $1
		ORDER BY uploaded_at`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := make([]domain.Photo, 0, 10)
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (r *PostgresRepository) ListDamages(ctx context.Context, assessmentID uuid.UUID) ([]domain.Damage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+damageColumns+`
		FROM assessment_damages
		WHERE assessment_id = $1
		ORDER BY phase, angle, created_at, id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list damages: %w", err)
	}
	defer rows.Close()

	damages := make([]domain.Damage, 0)
	for rows.Next() {
		d, err := scanDamage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan damage: %w", err)
		}
		damages = append(damages, d)
	}
	return damages, rows.Err()
}

func (r *PostgresRepository) CommitPhaseAnalysis(ctx context.Context, analysis PhaseAnalysis) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a := analysis.Assessment
	if _, err := tx.Exec(ctx, `DELETE FROM assessment_damages WHERE assessment_id = $1 AND phase = $2`, a.ID, analysis.Phase); err != nil {
		return fmt.Errorf("delete phase damages: %w", err)
	}

	if len(analysis.Damages) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"assessment_damages"},
			[]string{
				"id", "assessment_id", "photo_id", "angle", "phase", "description", "severity", "location",
				"estimated_cost", "confidence", "bbox_x", "bbox_y", "bbox_width", "bbox_height", "is_new", "created_at",
			},
			pgx.CopyFromSlice(len(analysis.Damages), func(i int) ([]any, error) {
				d := analysis.Damages[i]
				var bx, by, bw, bh *int32
				if b := d.BoundingBox; b != nil {
					x, y, w, h := int32(b.X), int32(b.Y), int32(b.Width), int32(b.Height)
					bx, by, bw, bh = &x, &y, &w, &h
				}
				return []any{
					d.ID, d.AssessmentID, d.PhotoID, string(d.Angle), string(d.Phase), d.Description, string(d.Severity), d.Location,
					d.EstimatedCost, d.Confidence, bx, by, bw, bh, d.IsNew, d.CreatedAt,
				}, nil
			}),
		); err != nil {
			return fmt.Errorf("insert damages: %w", err)
		}
	}

	if len(analysis.Scores) > 0 {
		batch := &pgx.Batch{}
		for _, s := range analysis.Scores {
			batch.Queue(`
				UPDATE assessment_photos SET analysis_score = $3, analyzed_at = $4
				WHERE id = $1 AND assessment_id = $2`, s.PhotoID, a.ID, s.Score, s.AnalyzedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("update photo scores: %w", err)
		}
	}

	if err := updateAssessment(ctx, tx, a); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit analysis: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CommitComparison(ctx context.Context, a domain.Assessment, newDamageIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if newDamageIDs == nil {
		newDamageIDs = []uuid.UUID{}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE assessment_damages
		SET is_new = (phase = 'return' AND id = ANY($2))
		WHERE assessment_id = $1`, a.ID, newDamageIDs); err != nil {
		return fmt.Errorf("flag new damages: %w", err)
	}

	if err := updateAssessment(ctx, tx, a); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit comparison: %w", err)
	}
	return nil
}

func updateAssessment(ctx context.Context, tx pgx.Tx, a domain.Assessment) error {
	tag, err := tx.Exec(ctx, `
		UPDATE assessments SET
			status = $2, total_damage_cost = $3, new_damage_cost = $4,
			pickup_analyzed_at = $5, return_analyzed_at = $6, completed_at = $7, updated_at = $8
		WHERE id = $1`,
		a.ID, a.Status, a.TotalDamageCost, a.NewDamageCost,
		a.PickupAnalyzedAt, a.ReturnAnalyzedAt, a.CompletedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(assessmentNotFoundMsg)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
