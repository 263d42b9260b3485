package model

import "time"

// Attachment вложение шаблона, хранится как непрозрачная ссылка на файл
type Attachment struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// AssignmentTemplate шаблон повторяющегося задания.
// У пары учитель+курс может быть несколько шаблонов.
type AssignmentTemplate struct {
	ID          int64        `json:"id"`
	TeacherID   int64        `json:"teacher_id"`
	CourseID    int64        `json:"course_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Attachments []Attachment `json:"attachments"`
	IsActive    bool         `json:"is_active"`
	StartDate   *time.Time   `json:"start_date"` // начало окна действия, nil = без ограничения
	EndDate     *time.Time   `json:"end_date"`   // конец окна действия (включительно), nil = без ограничения
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
