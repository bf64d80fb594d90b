package repository

import (
	"context"
	"time"

	accountdomain "replytrack-backend/internal/account/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository defines the interface for push token operations
type DeviceTokenRepository interface {
	SaveToken(ctx context.Context, accountID, token, deviceInfo string) error
	GetTokensByAccountID(ctx context.Context, accountID string) ([]accountdomain.DeviceToken, error)
	DeleteToken(ctx context.Context, token string) error
}

// deviceTokenRepository implements DeviceTokenRepository interface
type deviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository creates a new instance of deviceTokenRepository
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{
		db: db,
	}
}

// SaveToken saves or updates a device token for an account (atomic upsert)
func (r *deviceTokenRepository) SaveToken(ctx context.Context, accountID, token, deviceInfo string) error {
	deviceToken := &accountdomain.DeviceToken{
		ID:             uuid.New().String(),
		EmailAccountID: accountID,
		Token:          token,
		DeviceInfo:     deviceInfo,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	// INSERT ... ON CONFLICT (token) DO UPDATE
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"email_account_id", "device_info", "updated_at"}),
	}).Create(deviceToken).Error
}

// GetTokensByAccountID returns all device tokens for an account
func (r *deviceTokenRepository) GetTokensByAccountID(ctx context.Context, accountID string) ([]accountdomain.DeviceToken, error) {
	var tokens []accountdomain.DeviceToken
	err := r.db.WithContext(ctx).Where("email_account_id = ?", accountID).Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteToken removes a specific device token
func (r *deviceTokenRepository) DeleteToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&accountdomain.DeviceToken{}).Error
}
