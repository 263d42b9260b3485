package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/classtrack/assignment_engine/internal/model"
)

// AssignmentRepository управляет живыми заданиями в базе данных
type AssignmentRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewAssignmentRepository создаёт новый репозиторий
func NewAssignmentRepository(pool *pgxpool.Pool, logger *zap.Logger) *AssignmentRepository {
	return &AssignmentRepository{
		pool:   pool,
		logger: logger,
	}
}

// CreateTx создаёт задание в рамках транзакции публикации.
// Уникальность occurrence_id не даёт опубликовать одно вхождение дважды.
func (r *AssignmentRepository) CreateTx(ctx context.Context, tx pgx.Tx, a *model.Assignment) error {
	query := `
		INSERT INTO assignments (occurrence_id, template_id, teacher_id, course_id, title, description, publish_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := tx.QueryRow(
		ctx, query,
		a.OccurrenceID,
		a.TemplateID,
		a.TeacherID,
		a.CourseID,
		a.Title,
		a.Description,
		a.PublishAt,
	).Scan(&a.ID, &a.CreatedAt)

	if err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}

	return nil
}

// ListByCourse получает все задания курса
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID int64) ([]*model.Assignment, error) {
	query := `
		SELECT id, occurrence_id, template_id, teacher_id, course_id, title, description, publish_at, created_at
		FROM assignments
		WHERE course_id = $1
		ORDER BY publish_at
	`

	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("list assignments by course: %w", err)
	}
	defer rows.Close()

	var assignments []*model.Assignment
	for rows.Next() {
		a := &model.Assignment{}
		err := rows.Scan(
			&a.ID,
			&a.OccurrenceID,
			&a.TemplateID,
			&a.TeacherID,
			&a.CourseID,
			&a.Title,
			&a.Description,
			&a.PublishAt,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	return assignments, nil
}
