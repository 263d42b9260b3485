package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/classtrack/assignment_engine/internal/model"
	"github.com/classtrack/assignment_engine/internal/preview"
	"github.com/classtrack/assignment_engine/internal/schedule"
)

// RecurrenceStore хранилище правил повторения
type RecurrenceStore interface {
	Upsert(ctx context.Context, rec *model.Recurrence) error
	GetByTeacherCourse(ctx context.Context, teacherID, courseID int64) (*model.Recurrence, error)
	GetAllActive(ctx context.Context) ([]*model.Recurrence, error)
}

// TemplateStore хранилище шаблонов заданий
type TemplateStore interface {
	Create(ctx context.Context, tmpl *model.AssignmentTemplate) error
	Update(ctx context.Context, tmpl *model.AssignmentTemplate) error
	GetByID(ctx context.Context, id int64) (*model.AssignmentTemplate, error)
	GetByTeacherCourse(ctx context.Context, teacherID, courseID int64) ([]*model.AssignmentTemplate, error)
	GetActiveByTeacherCourse(ctx context.Context, teacherID, courseID int64) ([]*model.AssignmentTemplate, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// OccurrenceStore леджер вхождений для материализации
type OccurrenceStore interface {
	Upsert(ctx context.Context, templateID int64, publishAt time.Time, status model.OccurrenceStatus) (bool, error)
	ListVisibleByCourse(ctx context.Context, courseID int64) ([]*model.VisibleOccurrence, error)
}

// PreviewItem элемент предпросмотра расписания публикаций
type PreviewItem struct {
	TemplateID int64                  `json:"template_id"`
	Title      string                 `json:"title"`
	PublishAt  time.Time              `json:"publish_at"`
	Status     model.OccurrenceStatus `json:"status"`
}

// ScheduleService отвечает за правила повторения и материализацию вхождений
type ScheduleService struct {
	recurrenceRepo RecurrenceStore
	templateRepo   TemplateStore
	occurrenceRepo OccurrenceStore
	location       *time.Location
	lookahead      int
	logger         *zap.Logger
}

// NewScheduleService создаёт новый сервис расписаний.
// location — единая таймзона учреждения, задаётся один раз при старте процесса.
func NewScheduleService(
	recurrenceRepo RecurrenceStore,
	templateRepo TemplateStore,
	occurrenceRepo OccurrenceStore,
	location *time.Location,
	lookahead int,
	logger *zap.Logger,
) *ScheduleService {
	if lookahead <= 0 {
		lookahead = schedule.DefaultLookahead
	}
	return &ScheduleService{
		recurrenceRepo: recurrenceRepo,
		templateRepo:   templateRepo,
		occurrenceRepo: occurrenceRepo,
		location:       location,
		lookahead:      lookahead,
		logger:         logger,
	}
}

// SaveRecurrence сохраняет правило повторения пары учитель+курс и сразу
// запускает материализацию для этой пары. Ошибки конфигурации отклоняются
// синхронно и до материализатора не доходят.
func (s *ScheduleService) SaveRecurrence(
	ctx context.Context,
	teacherID, courseID int64,
	weekdays model.Weekdays,
	publishHour, publishMinute int,
	isPaused bool,
	holidayRanges []model.DateRange,
) (*model.Recurrence, error) {
	if !isPaused && len(weekdays) == 0 {
		return nil, fmt.Errorf("weekdays must not be empty")
	}
	if !weekdays.Valid() {
		return nil, fmt.Errorf("weekdays must be in range 0-6")
	}
	if publishHour < 0 || publishHour > 23 {
		return nil, fmt.Errorf("publish hour must be in range 0-23")
	}
	if publishMinute < 0 || publishMinute > 59 {
		return nil, fmt.Errorf("publish minute must be in range 0-59")
	}
	for _, hr := range holidayRanges {
		if !hr.Valid() {
			return nil, fmt.Errorf("holiday range start must not be after end")
		}
	}

	rec := &model.Recurrence{
		TeacherID:     teacherID,
		CourseID:      courseID,
		Weekdays:      weekdays,
		PublishHour:   publishHour,
		PublishMinute: publishMinute,
		IsPaused:      isPaused,
		HolidayRanges: holidayRanges,
	}

	if err := s.recurrenceRepo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("upsert recurrence: %w", err)
	}

	s.logger.Info("Recurrence saved",
		zap.Int64("teacher_id", teacherID),
		zap.Int64("course_id", courseID),
		zap.Ints("weekdays", weekdays),
		zap.Bool("is_paused", isPaused),
	)

	// Сразу материализуем вхождения для пары; сохранённое правило уже валидно,
	// поэтому ошибка прохода не отменяет сохранение
	if _, err := s.MaterializePair(ctx, teacherID, courseID); err != nil {
		s.logger.Error("Failed to materialize after recurrence save",
			zap.Int64("teacher_id", teacherID),
			zap.Int64("course_id", courseID),
			zap.Error(err),
		)
	}

	return rec, nil
}

// MaterializePair запускает материализацию для одной пары учитель+курс.
// Возвращает количество новых вхождений в леджере.
func (s *ScheduleService) MaterializePair(ctx context.Context, teacherID, courseID int64) (int, error) {
	rec, err := s.recurrenceRepo.GetByTeacherCourse(ctx, teacherID, courseID)
	if err != nil {
		return 0, fmt.Errorf("get recurrence: %w", err)
	}
	if rec == nil || rec.IsPaused {
		return 0, nil
	}

	templates, err := s.templateRepo.GetActiveByTeacherCourse(ctx, teacherID, courseID)
	if err != nil {
		return 0, fmt.Errorf("get active templates: %w", err)
	}

	return s.materialize(ctx, rec, templates, time.Now()), nil
}

// MaterializeAll запускает материализацию для всех пар без паузы.
// Ошибка одной пары изолируется и не прерывает проход по остальным.
func (s *ScheduleService) MaterializeAll(ctx context.Context) error {
	recs, err := s.recurrenceRepo.GetAllActive(ctx)
	if err != nil {
		return fmt.Errorf("get all active recurrences: %w", err)
	}

	now := time.Now()
	totalInserted := 0
	for _, rec := range recs {
		templates, err := s.templateRepo.GetActiveByTeacherCourse(ctx, rec.TeacherID, rec.CourseID)
		if err != nil {
			s.logger.Error("Failed to load templates for pair",
				zap.Int64("teacher_id", rec.TeacherID),
				zap.Int64("course_id", rec.CourseID),
				zap.Error(err),
			)
			continue
		}

		totalInserted += s.materialize(ctx, rec, templates, now)
	}

	s.logger.Info("Materialization pass finished",
		zap.Int("recurrences", len(recs)),
		zap.Int("occurrences_inserted", totalInserted),
	)

	return nil
}

// materialize вычисляет вхождения правила по всем шаблонам и записывает их в
// леджер. Запись идемпотентна: повторный проход не создаёт дубликатов и не
// трогает статусы существующих вхождений.
func (s *ScheduleService) materialize(ctx context.Context, rec *model.Recurrence, templates []*model.AssignmentTemplate, now time.Time) int {
	inserted := 0
	for _, tmpl := range templates {
		for _, cand := range schedule.Materialize(rec, tmpl, now, s.location, s.lookahead) {
			ok, err := s.occurrenceRepo.Upsert(ctx, cand.TemplateID, cand.PublishAt, cand.Status)
			if err != nil {
				s.logger.Warn("Failed to upsert occurrence",
					zap.Int64("template_id", cand.TemplateID),
					zap.Time("publish_at", cand.PublishAt),
					zap.Error(err),
				)
				continue
			}
			if ok {
				inserted++
			}
		}
	}
	return inserted
}

// PreviewOccurrences вычисляет предстоящие вхождения пары без записи в леджер,
// отсортированные по моменту публикации
func (s *ScheduleService) PreviewOccurrences(ctx context.Context, teacherID, courseID int64) ([]PreviewItem, error) {
	rec, err := s.recurrenceRepo.GetByTeacherCourse(ctx, teacherID, courseID)
	if err != nil {
		return nil, fmt.Errorf("get recurrence: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	templates, err := s.templateRepo.GetActiveByTeacherCourse(ctx, teacherID, courseID)
	if err != nil {
		return nil, fmt.Errorf("get active templates: %w", err)
	}

	now := time.Now()
	var items []PreviewItem
	for _, tmpl := range templates {
		for _, cand := range schedule.Materialize(rec, tmpl, now, s.location, s.lookahead) {
			items = append(items, PreviewItem{
				TemplateID: cand.TemplateID,
				Title:      tmpl.Title,
				PublishAt:  cand.PublishAt,
				Status:     cand.Status,
			})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishAt.Before(items[j].PublishAt)
	})

	return items, nil
}

// RenderPreviewImage рисует календарь предстоящих вхождений пары в PNG
func (s *ScheduleService) RenderPreviewImage(ctx context.Context, teacherID, courseID int64) ([]byte, error) {
	items, err := s.PreviewOccurrences(ctx, teacherID, courseID)
	if err != nil {
		return nil, fmt.Errorf("preview occurrences: %w", err)
	}

	previewItems := make([]preview.Item, len(items))
	for i, item := range items {
		previewItems[i] = preview.Item{
			Title:     item.Title,
			PublishAt: item.PublishAt,
			Status:    item.Status,
		}
	}

	return preview.GenerateCalendarImage(time.Now(), s.location, previewItems)
}

// ListStudentVisibleOccurrences получает вхождения курса для студентов:
// только scheduled и posted
func (s *ScheduleService) ListStudentVisibleOccurrences(ctx context.Context, courseID int64) ([]*model.VisibleOccurrence, error) {
	return s.occurrenceRepo.ListVisibleByCourse(ctx, courseID)
}
