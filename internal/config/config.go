package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config конфигурация движка расписаний
type Config struct {
	DBDSN               string
	Environment         string
	Timezone            string
	Location            *time.Location
	MaterializeInterval time.Duration
	PostInterval        time.Duration
	LookaheadCount      int
	MigrationsPath      string
}

// Load загружает конфигурацию из .env файла и переменных окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:          os.Getenv("DB_DSN"),
		Environment:    os.Getenv("ENV"),
		Timezone:       os.Getenv("TIMEZONE"),
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Timezone == "" {
		// Единая таймзона учреждения для всех wall-clock вычислений
		cfg.Timezone = "Africa/Cairo"
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "migrations"
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	cfg.MaterializeInterval, err = durationFromEnv("MATERIALIZE_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	cfg.PostInterval, err = durationFromEnv("POST_INTERVAL", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.LookaheadCount, err = intFromEnv("LOOKAHEAD_COUNT", 28)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// durationFromEnv читает duration из переменной окружения с дефолтным значением
func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}

	return d, nil
}

// intFromEnv читает целое число из переменной окружения с дефолтным значением
func intFromEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}

	return n, nil
}
