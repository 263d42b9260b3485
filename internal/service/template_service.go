package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/classtrack/assignment_engine/internal/model"
)

// PairMaterializer запускает материализацию одной пары учитель+курс
type PairMaterializer interface {
	MaterializePair(ctx context.Context, teacherID, courseID int64) (int, error)
}

// TemplateService отвечает за CRUD шаблонов заданий
type TemplateService struct {
	templateRepo TemplateStore
	materializer PairMaterializer
	logger       *zap.Logger
}

// NewTemplateService создаёт новый сервис шаблонов
func NewTemplateService(templateRepo TemplateStore, materializer PairMaterializer, logger *zap.Logger) *TemplateService {
	return &TemplateService{
		templateRepo: templateRepo,
		materializer: materializer,
		logger:       logger,
	}
}

// CreateTemplate создаёт шаблон задания и сразу материализует вхождения пары
func (s *TemplateService) CreateTemplate(ctx context.Context, tmpl *model.AssignmentTemplate) (*model.AssignmentTemplate, error) {
	if err := validateTemplate(tmpl); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Create(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.logger.Info("Template created",
		zap.Int64("template_id", tmpl.ID),
		zap.Int64("teacher_id", tmpl.TeacherID),
		zap.Int64("course_id", tmpl.CourseID),
		zap.String("title", tmpl.Title),
	)

	s.rematerialize(ctx, tmpl.TeacherID, tmpl.CourseID)

	return tmpl, nil
}

// UpdateTemplate обновляет шаблон задания после проверки владельца
func (s *TemplateService) UpdateTemplate(ctx context.Context, teacherID int64, tmpl *model.AssignmentTemplate) error {
	existing, err := s.templateRepo.GetByID(ctx, tmpl.ID)
	if err != nil {
		return fmt.Errorf("get template: %w", err)
	}

	if existing == nil {
		return fmt.Errorf("template not found")
	}

	if existing.TeacherID != teacherID {
		return fmt.Errorf("template does not belong to teacher")
	}

	if err := validateTemplate(tmpl); err != nil {
		return err
	}

	if err := s.templateRepo.Update(ctx, tmpl); err != nil {
		return fmt.Errorf("update template: %w", err)
	}

	s.logger.Info("Template updated",
		zap.Int64("template_id", tmpl.ID),
	)

	s.rematerialize(ctx, existing.TeacherID, existing.CourseID)

	return nil
}

// SetTemplateActive включает или выключает шаблон.
// Выключенный шаблон перестаёт давать новые вхождения, история остаётся.
func (s *TemplateService) SetTemplateActive(ctx context.Context, teacherID, templateID int64, active bool) error {
	tmpl, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		return fmt.Errorf("get template: %w", err)
	}

	if tmpl == nil {
		return fmt.Errorf("template not found")
	}

	if tmpl.TeacherID != teacherID {
		return fmt.Errorf("template does not belong to teacher")
	}

	if err := s.templateRepo.SetActive(ctx, templateID, active); err != nil {
		return fmt.Errorf("set template active: %w", err)
	}

	s.logger.Info("Template active toggled",
		zap.Int64("template_id", templateID),
		zap.Bool("is_active", active),
	)

	if active {
		s.rematerialize(ctx, tmpl.TeacherID, tmpl.CourseID)
	}

	return nil
}

// GetTemplate получает шаблон по ID
func (s *TemplateService) GetTemplate(ctx context.Context, id int64) (*model.AssignmentTemplate, error) {
	return s.templateRepo.GetByID(ctx, id)
}

// ListTemplates получает все шаблоны пары учитель+курс
func (s *TemplateService) ListTemplates(ctx context.Context, teacherID, courseID int64) ([]*model.AssignmentTemplate, error) {
	return s.templateRepo.GetByTeacherCourse(ctx, teacherID, courseID)
}

// rematerialize запускает материализацию пары после изменения шаблона.
// Шаблон уже сохранён, поэтому ошибка прохода только логируется.
func (s *TemplateService) rematerialize(ctx context.Context, teacherID, courseID int64) {
	if _, err := s.materializer.MaterializePair(ctx, teacherID, courseID); err != nil {
		s.logger.Error("Failed to materialize after template change",
			zap.Int64("teacher_id", teacherID),
			zap.Int64("course_id", courseID),
			zap.Error(err),
		)
	}
}

// validateTemplate проверяет поля шаблона на границе сохранения
func validateTemplate(tmpl *model.AssignmentTemplate) error {
	if tmpl.Title == "" {
		return fmt.Errorf("template title must not be empty")
	}
	if tmpl.StartDate != nil && tmpl.EndDate != nil && tmpl.EndDate.Before(*tmpl.StartDate) {
		return fmt.Errorf("template end date must not be before start date")
	}
	return nil
}
