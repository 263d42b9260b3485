package model

import "time"

// OccurrenceStatus статус вхождения в леджере
type OccurrenceStatus string

const (
	// OccurrenceStatusScheduled вхождение ждёт публикации
	OccurrenceStatusScheduled OccurrenceStatus = "scheduled"
	// OccurrenceStatusSkippedHoliday дата попала на каникулы, публикации не будет (терминальный статус)
	OccurrenceStatusSkippedHoliday OccurrenceStatus = "skipped_holiday"
	// OccurrenceStatusPosted задание опубликовано (терминальный статус)
	OccurrenceStatusPosted OccurrenceStatus = "posted"
)

// Occurrence конкретное вхождение шаблона: один момент публикации.
// Пара (template_id, publish_at) уникальна и служит ключом идемпотентности.
type Occurrence struct {
	ID         int64            `json:"id"`
	TemplateID int64            `json:"template_id"`
	PublishAt  time.Time        `json:"publish_at"`
	Status     OccurrenceStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// DueOccurrence вхождение, готовое к публикации, вместе с контекстом шаблона
type DueOccurrence struct {
	ID          int64     `json:"id"`
	TemplateID  int64     `json:"template_id"`
	TeacherID   int64     `json:"teacher_id"`
	CourseID    int64     `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PublishAt   time.Time `json:"publish_at"`
}

// VisibleOccurrence вхождение в представлении для студентов
// (только scheduled и posted, без внутренних skipped_holiday)
type VisibleOccurrence struct {
	ID          int64            `json:"id"`
	TemplateID  int64            `json:"template_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	PublishAt   time.Time        `json:"publish_at"`
	Status      OccurrenceStatus `json:"status"`
}
