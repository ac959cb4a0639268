package store

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mealweek/api/internal/config"
)

// InitDB opens the configured database. TranslateError is required: the meal
// dedup race fallback relies on unique violations surfacing as
// gorm.ErrDuplicatedKey on both postgres and sqlite.
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dia gorm.Dialector

	if cfg.Type == "pgsql" {
		dsn := fmt.Sprintf("host=%s user=%s password=%s port=%d",
			cfg.Hostname, cfg.User, cfg.Password, cfg.Port)
		if cfg.Name != "" {
			dsn = fmt.Sprintf("%s dbname=%s", dsn, cfg.Name)
		}
		dia = postgres.Open(dsn)
	} else {
		dia = sqlite.Open(cfg.Name)
	}

	gormLogger := logger.Default.LogMode(logger.Warn)

	db, err := gorm.Open(dia, &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to configure connections: %w", err)
	}
	if cfg.Type == "pgsql" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// in-memory sqlite loses the schema on a second connection
		sqlDB.SetMaxOpenConns(1)
	}

	zap.S().Named("gorm").Infof("database connected (%s)", cfg.Type)
	return db, nil
}
