package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/classtrack/assignment_engine/internal/app"
	"github.com/classtrack/assignment_engine/internal/config"
	"github.com/classtrack/assignment_engine/internal/repository"
	"github.com/classtrack/assignment_engine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting assignment engine",
		zap.String("environment", cfg.Environment),
		zap.String("timezone", cfg.Timezone),
		zap.Duration("materialize_interval", cfg.MaterializeInterval),
		zap.Duration("post_interval", cfg.PostInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подключаемся к базе
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Применяем миграции
	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	// Репозитории
	recurrenceRepo := repository.NewRecurrenceRepository(pool, logger)
	templateRepo := repository.NewTemplateRepository(pool, logger)
	occurrenceRepo := repository.NewOccurrenceRepository(pool, logger)
	assignmentRepo := repository.NewAssignmentRepository(pool, logger)

	// Сервисы
	scheduleService := service.NewScheduleService(
		recurrenceRepo,
		templateRepo,
		occurrenceRepo,
		cfg.Location,
		cfg.LookaheadCount,
		logger,
	)
	postingService := service.NewPostingService(pool, occurrenceRepo, assignmentRepo, logger)

	// Планировщик фоновых задач
	scheduler := app.NewScheduler(
		scheduleService,
		postingService,
		cfg.MaterializeInterval,
		cfg.PostInterval,
		logger,
	)
	scheduler.Start(ctx)

	// Ждём сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Даём текущим проходам завершиться, затем закрываем пул
	scheduler.Stop()
	logger.Info("Assignment engine stopped")
}
