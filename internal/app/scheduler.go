package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Materializer полный проход материализации по всем правилам повторения
type Materializer interface {
	MaterializeAll(ctx context.Context) error
}

// Poster один проход публикации созревших вхождений
type Poster interface {
	PostDue(ctx context.Context, now time.Time) (int, error)
}

// Scheduler управляет фоновыми задачами движка: грубый таймер материализации
// и частый таймер публикации. Каждый таймер обслуживается одной горутиной,
// поэтому проход никогда не накладывается сам на себя: тик, пришедший во
// время работы, пропускается.
type Scheduler struct {
	materializer        Materializer
	poster              Poster
	materializeInterval time.Duration
	postInterval        time.Duration
	logger              *zap.Logger

	mu       sync.Mutex
	started  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(
	materializer Materializer,
	poster Poster,
	materializeInterval time.Duration,
	postInterval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		materializer:        materializer,
		poster:              poster,
		materializeInterval: materializeInterval,
		postInterval:        postInterval,
		logger:              logger,
		stopChan:            make(chan struct{}),
	}
}

// Start запускает фоновые задачи. Повторный вызов ничего не делает.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.logger.Warn("Scheduler already started")
		return
	}
	s.started = true

	s.logger.Info("Starting background scheduler",
		zap.Duration("materialize_interval", s.materializeInterval),
		zap.Duration("post_interval", s.postInterval),
	)

	s.wg.Add(2)
	go s.runMaterializationTask(ctx)
	go s.runPostingTask(ctx)
}

// Stop останавливает фоновые задачи и дожидается завершения текущего прохода
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopChan)
	s.mu.Unlock()

	s.logger.Info("Stopping background scheduler")
	s.wg.Wait()
	s.logger.Info("Background scheduler stopped")
}

// runMaterializationTask периодически материализует вхождения для всех
// правил повторения, обновляя скользящее окно lookahead
func (s *Scheduler) runMaterializationTask(ctx context.Context) {
	defer s.wg.Done()

	// Первый запуск сразу при старте
	s.materialize(ctx)

	ticker := time.NewTicker(s.materializeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.materialize(ctx)
		case <-s.stopChan:
			s.logger.Info("Materialization task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Materialization task cancelled")
			return
		}
	}
}

// runPostingTask периодически публикует созревшие вхождения
func (s *Scheduler) runPostingTask(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.postInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.post(ctx)
		case <-s.stopChan:
			s.logger.Info("Posting task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Posting task cancelled")
			return
		}
	}
}

// materialize выполняет один проход материализации
func (s *Scheduler) materialize(ctx context.Context) {
	runID := uuid.New()
	s.logger.Debug("Starting materialization run", zap.String("run_id", runID.String()))

	if err := s.materializer.MaterializeAll(ctx); err != nil {
		s.logger.Error("Materialization run failed",
			zap.String("run_id", runID.String()),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("Materialization run completed", zap.String("run_id", runID.String()))
}

// post выполняет один проход публикации
func (s *Scheduler) post(ctx context.Context) {
	runID := uuid.New()

	posted, err := s.poster.PostDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("Posting run failed",
			zap.String("run_id", runID.String()),
			zap.Error(err),
		)
		return
	}

	if posted > 0 {
		s.logger.Info("Posting run completed",
			zap.String("run_id", runID.String()),
			zap.Int("posted", posted),
		)
	}
}
