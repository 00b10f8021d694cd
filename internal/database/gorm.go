// Package database opens the shared gorm connection used by the message
// store and the webhook repository.
package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds connection settings.
type Config struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
	LogQueries      bool
}

func newLogger(l *slog.Logger, cfg Config) logger.Interface {
	level := logger.Warn
	if cfg.LogQueries {
		level = logger.Info
	}
	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = time.Second
	}
	return logger.New(
		slog.NewLogLogger(l.Handler(), slog.LevelInfo),
		logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
}

func configureConnectionPool(db *gorm.DB, cfg Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	idle, open, life := cfg.MaxIdleConns, cfg.MaxOpenConns, cfg.ConnMaxLifetime
	if idle <= 0 {
		idle = 5
	}
	if open <= 0 {
		open = 20
	}
	if life <= 0 {
		life = time.Hour
	}
	sqlDB.SetMaxIdleConns(idle)
	sqlDB.SetMaxOpenConns(open)
	sqlDB.SetConnMaxLifetime(life)
	return nil
}

// Open connects to PostgreSQL. A nil logger uses slog.Default.
func Open(cfg Config, l *slog.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}
	if l == nil {
		l = slog.Default()
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: newLogger(l, cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := configureConnectionPool(db, cfg); err != nil {
		return nil, fmt.Errorf("configure connection pool: %w", err)
	}
	return db, nil
}
