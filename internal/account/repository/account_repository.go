package repository

import (
	"context"
	"errors"
	"time"

	accountdomain "replytrack-backend/internal/account/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountRepository defines the interface for email account data access
type AccountRepository interface {
	// Create creates a new account
	Create(ctx context.Context, account *accountdomain.EmailAccount) error

	// FindByID finds an account by its ID, returning nil when absent
	FindByID(ctx context.Context, id string) (*accountdomain.EmailAccount, error)

	// FindByEmail finds an account by its mailbox address, returning nil when absent
	FindByEmail(ctx context.Context, email string) (*accountdomain.EmailAccount, error)

	// FindWithFollowUpsEnabled returns accounts with at least one follow-up threshold set
	FindWithFollowUpsEnabled(ctx context.Context) ([]*accountdomain.EmailAccount, error)

	// UpdateTokens persists refreshed OAuth tokens
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error

	// AdvanceHistoryID moves the stored push history id forward.
	// Returns false when historyID is not newer than the stored one.
	AdvanceHistoryID(ctx context.Context, id string, historyID uint64) (bool, error)
}

// accountRepository implements AccountRepository using GORM
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) Create(ctx context.Context, account *accountdomain.EmailAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepository) FindByID(ctx context.Context, id string) (*accountdomain.EmailAccount, error) {
	var account accountdomain.EmailAccount
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*accountdomain.EmailAccount, error) {
	var account accountdomain.EmailAccount
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindWithFollowUpsEnabled(ctx context.Context) ([]*accountdomain.EmailAccount, error) {
	var accounts []*accountdomain.EmailAccount
	err := r.db.WithContext(ctx).
		Where("follow_up_awaiting_reply_days IS NOT NULL OR follow_up_needs_reply_days IS NOT NULL").
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error {
	return r.db.WithContext(ctx).Model(&accountdomain.EmailAccount{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"updated_at":    time.Now(),
		}).Error
}

func (r *accountRepository) AdvanceHistoryID(ctx context.Context, id string, historyID uint64) (bool, error) {
	// Conditional update so concurrent deliveries of the same push cannot both win
	result := r.db.WithContext(ctx).Model(&accountdomain.EmailAccount{}).
		Where("id = ? AND last_history_id < ?", id, historyID).
		Updates(map[string]interface{}{
			"last_history_id": historyID,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
