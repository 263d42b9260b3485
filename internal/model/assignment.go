package model

import "time"

// Assignment живое задание, видимое студентам.
// Создаётся пайплайном публикации из вхождения, occurrence_id уникален.
type Assignment struct {
	ID           int64     `json:"id"`
	OccurrenceID int64     `json:"occurrence_id"`
	TemplateID   int64     `json:"template_id"`
	TeacherID    int64     `json:"teacher_id"`
	CourseID     int64     `json:"course_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PublishAt    time.Time `json:"publish_at"` // опорная дата для дедлайна
	CreatedAt    time.Time `json:"created_at"`
}
