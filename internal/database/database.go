package database

import (
	"fmt"
	"log/slog"

	"live-class-backend/internal/config"
	"live-class-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Two active sessions must never share a join code; ended ones may.
const activeCodeIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_class_sessions_active_code
	ON class_sessions (code) WHERE active`

func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	slog.Info("database connected", "host", cfg.DBHost, "name", cfg.DBName)
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.ClassSession{},
		&models.ClassQuestion{},
		&models.ClassSubmission{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if err := db.Exec(activeCodeIndex).Error; err != nil {
		return fmt.Errorf("create active code index: %w", err)
	}

	slog.Info("database migrated")
	return nil
}
