package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/classtrack/assignment_engine/internal/model"
)

// OccurrenceRepository леджер вхождений.
// Уникальность (template_id, publish_at) обеспечивает дедупликацию на стороне базы.
type OccurrenceRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewOccurrenceRepository создаёт новый репозиторий
func NewOccurrenceRepository(pool *pgxpool.Pool, logger *zap.Logger) *OccurrenceRepository {
	return &OccurrenceRepository{
		pool:   pool,
		logger: logger,
	}
}

// Upsert записывает вхождение, если его ещё нет.
// При конфликте по (template_id, publish_at) строка не меняется:
// статус существующего вхождения (в том числе posted) никогда не перезаписывается.
// Возвращает true, если строка была вставлена.
func (r *OccurrenceRepository) Upsert(ctx context.Context, templateID int64, publishAt time.Time, status model.OccurrenceStatus) (bool, error) {
	query := `
		INSERT INTO occurrences (template_id, publish_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (template_id, publish_at) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, templateID, publishAt, status)
	if err != nil {
		return false, fmt.Errorf("upsert occurrence: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListDue получает вхождения со статусом scheduled, чей момент публикации
// уже наступил, вместе с контекстом шаблона для публикации
func (r *OccurrenceRepository) ListDue(ctx context.Context, now time.Time) ([]*model.DueOccurrence, error) {
	query := `
		SELECT o.id, o.template_id, t.teacher_id, t.course_id, t.title, t.description, o.publish_at
		FROM occurrences o
		JOIN assignment_templates t ON t.id = o.template_id
		WHERE o.status = 'scheduled' AND o.publish_at <= $1
		ORDER BY o.publish_at
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due occurrences: %w", err)
	}
	defer rows.Close()

	var due []*model.DueOccurrence
	for rows.Next() {
		occ := &model.DueOccurrence{}
		err := rows.Scan(
			&occ.ID,
			&occ.TemplateID,
			&occ.TeacherID,
			&occ.CourseID,
			&occ.Title,
			&occ.Description,
			&occ.PublishAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan due occurrence: %w", err)
		}
		due = append(due, occ)
	}

	return due, nil
}

// MarkPosted переводит вхождение scheduled -> posted в рамках транзакции публикации.
// Вызывается только вместе с созданием задания в той же транзакции.
func (r *OccurrenceRepository) MarkPosted(ctx context.Context, tx pgx.Tx, id int64) error {
	query := `UPDATE occurrences SET status = 'posted', updated_at = now() WHERE id = $1 AND status = 'scheduled'`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark occurrence posted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("occurrence is not scheduled")
	}

	return nil
}

// ListVisibleByCourse получает вхождения курса в представлении для студентов:
// только scheduled и posted, без внутренних skipped_holiday
func (r *OccurrenceRepository) ListVisibleByCourse(ctx context.Context, courseID int64) ([]*model.VisibleOccurrence, error) {
	query := `
		SELECT o.id, o.template_id, t.title, t.description, o.publish_at, o.status
		FROM occurrences o
		JOIN assignment_templates t ON t.id = o.template_id
		WHERE t.course_id = $1 AND o.status IN ('scheduled', 'posted')
		ORDER BY o.publish_at
	`

	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("list visible occurrences: %w", err)
	}
	defer rows.Close()

	var occs []*model.VisibleOccurrence
	for rows.Next() {
		occ := &model.VisibleOccurrence{}
		err := rows.Scan(
			&occ.ID,
			&occ.TemplateID,
			&occ.Title,
			&occ.Description,
			&occ.PublishAt,
			&occ.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan visible occurrence: %w", err)
		}
		occs = append(occs, occ)
	}

	return occs, nil
}

// ListByTemplate получает все вхождения шаблона
func (r *OccurrenceRepository) ListByTemplate(ctx context.Context, templateID int64) ([]*model.Occurrence, error) {
	query := `
		SELECT id, template_id, publish_at, status, created_at, updated_at
		FROM occurrences
		WHERE template_id = $1
		ORDER BY publish_at
	`

	rows, err := r.pool.Query(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("list occurrences by template: %w", err)
	}
	defer rows.Close()

	var occs []*model.Occurrence
	for rows.Next() {
		occ := &model.Occurrence{}
		err := rows.Scan(
			&occ.ID,
			&occ.TemplateID,
			&occ.PublishAt,
			&occ.Status,
			&occ.CreatedAt,
			&occ.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occs = append(occs, occ)
	}

	return occs, nil
}
