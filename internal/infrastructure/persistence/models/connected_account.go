package models

import (
	"strings"
	"time"

	"github.com/sellerlink/gateway/internal/domain/marketplace"
)

// ConnectedAccountModel is the persistence model for the ConnectedAccount domain entity.
// Token columns hold whatever the repository's cipher produced.
type ConnectedAccountModel struct {
	BaseModel
	OwnerUserID           string                    `gorm:"type:varchar(64);not null;index:idx_connected_accounts_owner;uniqueIndex:uq_connected_accounts_owner_mp_env,priority:1,where:marketplace_user_id <> ''"`
	MarketplaceUserID     string                    `gorm:"type:varchar(128);not null;default:'';uniqueIndex:uq_connected_accounts_owner_mp_env,priority:2"`
	MarketplaceUsername   string                    `gorm:"type:varchar(128);not null;default:''"`
	FriendlyName          string                    `gorm:"type:varchar(100);not null;default:''"`
	AccessToken           string                    `gorm:"type:text;not null;default:''"`
	RefreshToken          string                    `gorm:"type:text;not null;default:''"`
	AccessTokenExpiresAt  *time.Time                `gorm:"type:timestamptz"`
	RefreshTokenExpiresAt *time.Time                `gorm:"type:timestamptz"`
	TokenType             string                    `gorm:"type:varchar(32);not null;default:''"`
	GrantedScopes         string                    `gorm:"type:text;not null;default:''"`
	UserSelectedScopes    string                    `gorm:"type:text;not null;default:''"`
	Status                marketplace.AccountStatus `gorm:"type:varchar(16);not null;default:'pending';index"`
	StatusReason          string                    `gorm:"type:varchar(255);not null;default:''"`
	Environment           marketplace.Environment   `gorm:"type:varchar(16);not null;uniqueIndex:uq_connected_accounts_owner_mp_env,priority:3"`
	LastUsedAt            *time.Time                `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (ConnectedAccountModel) TableName() string {
	return "connected_accounts"
}

// ToDomain converts the persistence model to a domain ConnectedAccount
func (m *ConnectedAccountModel) ToDomain() *marketplace.ConnectedAccount {
	return &marketplace.ConnectedAccount{
		BaseEntity:            m.BaseModel.ToDomain(),
		OwnerUserID:           m.OwnerUserID,
		MarketplaceUserID:     m.MarketplaceUserID,
		MarketplaceUsername:   m.MarketplaceUsername,
		FriendlyName:          m.FriendlyName,
		AccessToken:           m.AccessToken,
		RefreshToken:          m.RefreshToken,
		AccessTokenExpiresAt:  derefTime(m.AccessTokenExpiresAt),
		RefreshTokenExpiresAt: derefTime(m.RefreshTokenExpiresAt),
		TokenType:             m.TokenType,
		GrantedScopes:         splitScopes(m.GrantedScopes),
		UserSelectedScopes:    splitScopes(m.UserSelectedScopes),
		Status:                m.Status,
		StatusReason:          m.StatusReason,
		Environment:           m.Environment,
		LastUsedAt:            m.LastUsedAt,
	}
}

// FromDomain populates the persistence model from a domain ConnectedAccount
func (m *ConnectedAccountModel) FromDomain(a *marketplace.ConnectedAccount) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.OwnerUserID = a.OwnerUserID
	m.MarketplaceUserID = a.MarketplaceUserID
	m.MarketplaceUsername = a.MarketplaceUsername
	m.FriendlyName = a.FriendlyName
	m.AccessToken = a.AccessToken
	m.RefreshToken = a.RefreshToken
	m.AccessTokenExpiresAt = timePtr(a.AccessTokenExpiresAt)
	m.RefreshTokenExpiresAt = timePtr(a.RefreshTokenExpiresAt)
	m.TokenType = a.TokenType
	m.GrantedScopes = strings.Join(a.GrantedScopes, " ")
	m.UserSelectedScopes = strings.Join(a.UserSelectedScopes, " ")
	m.Status = a.Status
	m.StatusReason = a.StatusReason
	m.Environment = a.Environment
	m.LastUsedAt = a.LastUsedAt
}

func splitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
