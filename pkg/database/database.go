package database

import (
	"fmt"
	"time"

	accountdomain "replytrack-backend/internal/account/domain"
	rulesdomain "replytrack-backend/internal/rules/domain"
	trackingdomain "replytrack-backend/internal/tracking/domain"
	"replytrack-backend/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresConnection opens the GORM connection pool
func NewPostgresConnection(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		// Surface unique violations as gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Migrate creates or updates every table this service reads or owns
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&accountdomain.EmailAccount{},
		&accountdomain.DeviceToken{},
		&rulesdomain.ExecutedRule{},
		&rulesdomain.ActionItem{},
		&trackingdomain.ThreadTracker{},
		&trackingdomain.DraftSendLog{},
	)
}
