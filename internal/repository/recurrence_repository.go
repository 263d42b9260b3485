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

// RecurrenceRepository управляет правилами повторения в базе данных
type RecurrenceRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRecurrenceRepository создаёт новый репозиторий
func NewRecurrenceRepository(pool *pgxpool.Pool, logger *zap.Logger) *RecurrenceRepository {
	return &RecurrenceRepository{
		pool:   pool,
		logger: logger,
	}
}

// Upsert сохраняет правило повторения пары учитель+курс.
// Пара уникальна, повторное сохранение обновляет существующую запись.
func (r *RecurrenceRepository) Upsert(ctx context.Context, rec *model.Recurrence) error {
	holidays, err := json.Marshal(rec.HolidayRanges)
	if err != nil {
		return fmt.Errorf("marshal holiday ranges: %w", err)
	}

	query := `
		INSERT INTO recurrences (teacher_id, course_id, weekdays, publish_hour, publish_minute, is_paused, holiday_ranges)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (teacher_id, course_id) DO UPDATE SET
			weekdays = EXCLUDED.weekdays,
			publish_hour = EXCLUDED.publish_hour,
			publish_minute = EXCLUDED.publish_minute,
			is_paused = EXCLUDED.is_paused,
			holiday_ranges = EXCLUDED.holiday_ranges,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`

	err = r.pool.QueryRow(
		ctx, query,
		rec.TeacherID,
		rec.CourseID,
		weekdaysToDB(rec.Weekdays),
		rec.PublishHour,
		rec.PublishMinute,
		rec.IsPaused,
		holidays,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert recurrence: %w", err)
	}

	return nil
}

// GetByTeacherCourse получает правило повторения пары учитель+курс
func (r *RecurrenceRepository) GetByTeacherCourse(ctx context.Context, teacherID, courseID int64) (*model.Recurrence, error) {
	query := `
		SELECT id, teacher_id, course_id, weekdays, publish_hour, publish_minute, is_paused, holiday_ranges, created_at, updated_at
		FROM recurrences
		WHERE teacher_id = $1 AND course_id = $2
	`

	rec, err := scanRecurrence(r.pool.QueryRow(ctx, query, teacherID, courseID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recurrence by teacher and course: %w", err)
	}

	return rec, nil
}

// GetAllActive получает все правила повторения без паузы
func (r *RecurrenceRepository) GetAllActive(ctx context.Context) ([]*model.Recurrence, error) {
	query := `
		SELECT id, teacher_id, course_id, weekdays, publish_hour, publish_minute, is_paused, holiday_ranges, created_at, updated_at
		FROM recurrences
		WHERE is_paused = false
		ORDER BY teacher_id, course_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all active recurrences: %w", err)
	}
	defer rows.Close()

	var recs []*model.Recurrence
	for rows.Next() {
		rec, err := scanRecurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurrence: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

// scanRecurrence читает правило повторения из строки результата
func scanRecurrence(row pgx.Row) (*model.Recurrence, error) {
	rec := &model.Recurrence{}
	var weekdays []int32
	var holidays []byte

	err := row.Scan(
		&rec.ID,
		&rec.TeacherID,
		&rec.CourseID,
		&weekdays,
		&rec.PublishHour,
		&rec.PublishMinute,
		&rec.IsPaused,
		&holidays,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Weekdays = weekdaysFromDB(weekdays)
	if len(holidays) > 0 {
		if err := json.Unmarshal(holidays, &rec.HolidayRanges); err != nil {
			return nil, fmt.Errorf("unmarshal holiday ranges: %w", err)
		}
	}

	return rec, nil
}

// weekdaysToDB конвертирует набор дней недели в формат int4[]
func weekdaysToDB(w model.Weekdays) []int32 {
	out := make([]int32, len(w))
	for i, d := range w {
		out[i] = int32(d)
	}
	return out
}

// weekdaysFromDB конвертирует int4[] обратно в набор дней недели
func weekdaysFromDB(raw []int32) model.Weekdays {
	out := make(model.Weekdays, len(raw))
	for i, d := range raw {
		out[i] = int(d)
	}
	return out
}
