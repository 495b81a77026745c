package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/sellerlink/gateway/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCredentialStore implements marketplace.CredentialStore using GORM
type GormCredentialStore struct {
	db     *gorm.DB
	cipher TokenCipher
}

// NewGormCredentialStore creates a new GormCredentialStore. A nil cipher stores tokens in plain text.
func NewGormCredentialStore(db *gorm.DB, cipher TokenCipher) *GormCredentialStore {
	if cipher == nil {
		cipher = PlainCipher{}
	}
	return &GormCredentialStore{db: db, cipher: cipher}
}

var _ marketplace.CredentialStore = (*GormCredentialStore)(nil)

// Get finds an account by ID
func (r *GormCredentialStore) Get(ctx context.Context, id uuid.UUID) (*marketplace.ConnectedAccount, error) {
	var model models.ConnectedAccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrAccountNotFound
		}
		return nil, err
	}
	return r.toDomain(&model)
}

// Create inserts a new account
func (r *GormCredentialStore) Create(ctx context.Context, account *marketplace.ConnectedAccount) error {
	model, err := r.fromDomain(account)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists.WithCause(err)
		}
		return err
	}
	return nil
}

// Upsert writes every mutable column of account in one statement
func (r *GormCredentialStore) Upsert(ctx context.Context, account *marketplace.ConnectedAccount) error {
	model, err := r.fromDomain(account)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"updated_at", "marketplace_user_id", "marketplace_username", "friendly_name",
				"access_token", "refresh_token", "access_token_expires_at", "refresh_token_expires_at",
				"token_type", "granted_scopes", "user_selected_scopes", "status", "status_reason",
				"last_used_at",
			}),
		}).
		Create(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.ErrAlreadyExists.
			WithMessage("marketplace user is already connected for this owner and environment").
			WithCause(err)
	}
	return err
}

// FindByOwnerAndMarketplaceID returns the live account for the tuple, or nil when none exists
func (r *GormCredentialStore) FindByOwnerAndMarketplaceID(ctx context.Context, ownerUserID, marketplaceUserID string, env marketplace.Environment) (*marketplace.ConnectedAccount, error) {
	if marketplaceUserID == "" {
		return nil, nil
	}
	var model models.ConnectedAccountModel
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND marketplace_user_id = ? AND environment = ?", ownerUserID, marketplaceUserID, env).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&model)
}

// ListByOwner returns the owner's accounts, newest first
func (r *GormCredentialStore) ListByOwner(ctx context.Context, ownerUserID string) ([]marketplace.ConnectedAccount, error) {
	var rows []models.ConnectedAccountModel
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	accounts := make([]marketplace.ConnectedAccount, 0, len(rows))
	for i := range rows {
		a, err := r.toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, nil
}

// TouchLastUsed records when an access token was last handed out
func (r *GormCredentialStore) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ConnectedAccountModel{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
}

func (r *GormCredentialStore) fromDomain(a *marketplace.ConnectedAccount) (*models.ConnectedAccountModel, error) {
	model := &models.ConnectedAccountModel{}
	model.FromDomain(a)
	var err error
	if model.AccessToken, err = r.cipher.Seal(a.AccessToken); err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}
	if model.RefreshToken, err = r.cipher.Seal(a.RefreshToken); err != nil {
		return nil, fmt.Errorf("seal refresh token: %w", err)
	}
	return model, nil
}

func (r *GormCredentialStore) toDomain(m *models.ConnectedAccountModel) (*marketplace.ConnectedAccount, error) {
	a := m.ToDomain()
	var err error
	if a.AccessToken, err = r.cipher.Open(m.AccessToken); err != nil {
		return nil, fmt.Errorf("account %s: %w", m.ID, err)
	}
	if a.RefreshToken, err = r.cipher.Open(m.RefreshToken); err != nil {
		return nil, fmt.Errorf("account %s: %w", m.ID, err)
	}
	return a, nil
}
