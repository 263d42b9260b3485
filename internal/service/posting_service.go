package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/classtrack/assignment_engine/internal/model"
)

// TxBeginner открывает транзакции, реализуется pgxpool.Pool
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OccurrenceLedger операции леджера, нужные пайплайну публикации
type OccurrenceLedger interface {
	ListDue(ctx context.Context, now time.Time) ([]*model.DueOccurrence, error)
	MarkPosted(ctx context.Context, tx pgx.Tx, id int64) error
}

// AssignmentStore хранилище живых заданий
type AssignmentStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, a *model.Assignment) error
}

// PostingService публикует созревшие вхождения: создаёт живое задание и
// переводит вхождение в posted в одной транзакции
type PostingService struct {
	pool           TxBeginner
	occurrenceRepo OccurrenceLedger
	assignmentRepo AssignmentStore
	logger         *zap.Logger
}

// NewPostingService создаёт новый сервис публикации
func NewPostingService(
	pool TxBeginner,
	occurrenceRepo OccurrenceLedger,
	assignmentRepo AssignmentStore,
	logger *zap.Logger,
) *PostingService {
	return &PostingService{
		pool:           pool,
		occurrenceRepo: occurrenceRepo,
		assignmentRepo: assignmentRepo,
		logger:         logger,
	}
}

// PostDue публикует все вхождения, чей момент наступил к now.
// Каждое вхождение обрабатывается в собственной транзакции: сбой одного
// откатывается и логируется, остальные публикуются дальше.
// Возвращает количество опубликованных заданий.
func (s *PostingService) PostDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.occurrenceRepo.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due occurrences: %w", err)
	}

	posted := 0
	for _, occ := range due {
		if err := s.postOne(ctx, occ); err != nil {
			s.logger.Error("Failed to post occurrence",
				zap.Int64("occurrence_id", occ.ID),
				zap.Int64("template_id", occ.TemplateID),
				zap.Time("publish_at", occ.PublishAt),
				zap.Error(err),
			)
			continue
		}
		posted++
	}

	if len(due) > 0 {
		s.logger.Info("Posting pass finished",
			zap.Int("due", len(due)),
			zap.Int("posted", posted),
		)
	}

	return posted, nil
}

// postOne публикует одно вхождение атомарно: задание и смена статуса либо
// фиксируются вместе, либо вместе откатываются
func (s *PostingService) postOne(ctx context.Context, occ *model.DueOccurrence) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	assignment := &model.Assignment{
		OccurrenceID: occ.ID,
		TemplateID:   occ.TemplateID,
		TeacherID:    occ.TeacherID,
		CourseID:     occ.CourseID,
		Title:        occ.Title,
		Description:  occ.Description,
		PublishAt:    occ.PublishAt,
	}

	if err := s.assignmentRepo.CreateTx(ctx, tx, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}

	if err := s.occurrenceRepo.MarkPosted(ctx, tx, occ.ID); err != nil {
		return fmt.Errorf("mark occurrence posted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info("Occurrence posted",
		zap.Int64("occurrence_id", occ.ID),
		zap.Int64("assignment_id", assignment.ID),
		zap.Int64("course_id", occ.CourseID),
		zap.Time("publish_at", occ.PublishAt),
	)

	return nil
}
