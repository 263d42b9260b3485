package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/classtrack/assignment_engine/internal/model"
)

// TemplateRepository управляет шаблонами заданий в базе данных
type TemplateRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewTemplateRepository создаёт новый репозиторий
func NewTemplateRepository(pool *pgxpool.Pool, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{
		pool:   pool,
		logger: logger,
	}
}

// Create создаёт новый шаблон задания
func (r *TemplateRepository) Create(ctx context.Context, tmpl *model.AssignmentTemplate) error {
	attachments, err := json.Marshal(tmpl.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	query := `
		INSERT INTO assignment_templates (teacher_id, course_id, title, description, attachments, is_active, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err = r.pool.QueryRow(
		ctx, query,
		tmpl.TeacherID,
		tmpl.CourseID,
		tmpl.Title,
		tmpl.Description,
		attachments,
		tmpl.IsActive,
		tmpl.StartDate,
		tmpl.EndDate,
	).Scan(&tmpl.ID, &tmpl.CreatedAt, &tmpl.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}

	return nil
}

// Update обновляет шаблон задания
func (r *TemplateRepository) Update(ctx context.Context, tmpl *model.AssignmentTemplate) error {
	attachments, err := json.Marshal(tmpl.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	query := `
		UPDATE assignment_templates
		SET title = $2, description = $3, attachments = $4, is_active = $5, start_date = $6, end_date = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.pool.QueryRow(
		ctx, query,
		tmpl.ID,
		tmpl.Title,
		tmpl.Description,
		attachments,
		tmpl.IsActive,
		tmpl.StartDate,
		tmpl.EndDate,
	).Scan(&tmpl.UpdatedAt)

	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}

	return nil
}

// GetByID получает шаблон по ID
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*model.AssignmentTemplate, error) {
	query := `
		SELECT id, teacher_id, course_id, title, description, attachments, is_active, start_date, end_date, created_at, updated_at
		FROM assignment_templates
		WHERE id = $1
	`

	tmpl, err := scanTemplate(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template by id: %w", err)
	}

	return tmpl, nil
}

// GetByTeacherCourse получает все шаблоны пары учитель+курс
func (r *TemplateRepository) GetByTeacherCourse(ctx context.Context, teacherID, courseID int64) ([]*model.AssignmentTemplate, error) {
	query := `
		SELECT id, teacher_id, course_id, title, description, attachments, is_active, start_date, end_date, created_at, updated_at
		FROM assignment_templates
		WHERE teacher_id = $1 AND course_id = $2
		ORDER BY id
	`

	return r.queryTemplates(ctx, query, teacherID, courseID)
}

// GetActiveByTeacherCourse получает активные шаблоны пары учитель+курс
func (r *TemplateRepository) GetActiveByTeacherCourse(ctx context.Context, teacherID, courseID int64) ([]*model.AssignmentTemplate, error) {
	query := `
		SELECT id, teacher_id, course_id, title, description, attachments, is_active, start_date, end_date, created_at, updated_at
		FROM assignment_templates
		WHERE teacher_id = $1 AND course_id = $2 AND is_active = true
		ORDER BY id
	`

	return r.queryTemplates(ctx, query, teacherID, courseID)
}

// SetActive включает или выключает шаблон
func (r *TemplateRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE assignment_templates SET is_active = $2, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template not found")
	}

	return nil
}

func (r *TemplateRepository) queryTemplates(ctx context.Context, query string, args ...interface{}) ([]*model.AssignmentTemplate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []*model.AssignmentTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, tmpl)
	}

	return templates, nil
}

// scanTemplate читает шаблон из строки результата
func scanTemplate(row pgx.Row) (*model.AssignmentTemplate, error) {
	tmpl := &model.AssignmentTemplate{}
	var attachments []byte

	err := row.Scan(
		&tmpl.ID,
		&tmpl.TeacherID,
		&tmpl.CourseID,
		&tmpl.Title,
		&tmpl.Description,
		&attachments,
		&tmpl.IsActive,
		&tmpl.StartDate,
		&tmpl.EndDate,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &tmpl.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}

	return tmpl, nil
}
