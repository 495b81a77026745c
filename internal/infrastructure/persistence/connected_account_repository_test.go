package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/sellerlink/gateway/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSQLiteStore(t *testing.T, cipher TokenCipher) (*GormCredentialStore, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ConnectedAccountModel{}))
	return NewGormCredentialStore(db, cipher), db
}

func activeAccount(t *testing.T, owner, mpUser string) *marketplace.ConnectedAccount {
	t.Helper()
	a, err := marketplace.NewPendingAccount(owner, marketplace.EnvironmentSandbox, "main store", []string{"scope.a"})
	require.NoError(t, err)
	require.NoError(t, a.Activate(marketplace.TokenGrant{
		AccessToken:           "access-" + mpUser,
		RefreshToken:          "refresh-" + mpUser,
		TokenType:             "User Access Token",
		ExpiresAt:             time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second),
		RefreshTokenExpiresAt: time.Now().Add(18 * 30 * 24 * time.Hour).UTC().Truncate(time.Second),
		Scopes:                []string{"scope.a", "scope.b"},
	}, &marketplace.Identity{UserID: mpUser, Username: "user-" + mpUser}))
	return a
}

func TestGormCredentialStore_CreateAndGet(t *testing.T) {
	store, _ := newSQLiteStore(t, nil)
	ctx := context.Background()

	pending, err := marketplace.NewPendingAccount("owner-1", marketplace.EnvironmentSandbox, "shop", nil)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, pending))

	got, err := store.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.AccountStatusPending, got.Status)
	assert.Equal(t, "owner-1", got.OwnerUserID)
	assert.True(t, got.AccessTokenExpiresAt.IsZero())
	assert.Nil(t, got.LastUsedAt)

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, marketplace.ErrAccountNotFound)
}

func TestGormCredentialStore_UpsertPersistsEveryField(t *testing.T) {
	cipher, err := NewXChaChaCipher(testKey())
	require.NoError(t, err)
	store, db := newSQLiteStore(t, cipher)
	ctx := context.Background()

	a := activeAccount(t, "owner-1", "mp-1")
	require.NoError(t, store.Upsert(ctx, a))

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-mp-1", got.AccessToken)
	assert.Equal(t, "refresh-mp-1", got.RefreshToken)
	assert.Equal(t, []string{"scope.a", "scope.b"}, got.GrantedScopes)
	assert.Equal(t, []string{"scope.a"}, got.UserSelectedScopes)
	assert.Equal(t, "mp-1", got.MarketplaceUserID)
	assert.WithinDuration(t, a.AccessTokenExpiresAt, got.AccessTokenExpiresAt, time.Second)

	var raw models.ConnectedAccountModel
	require.NoError(t, db.First(&raw, "id = ?", a.ID).Error)
	assert.NotContains(t, raw.AccessToken, "access-mp-1")
	assert.NotContains(t, raw.RefreshToken, "refresh-mp-1")

	got.Expire("refresh token expired")
	require.NoError(t, store.Upsert(ctx, got))

	expired, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.AccountStatusExpired, expired.Status)
	assert.Empty(t, expired.AccessToken)
	assert.Equal(t, "refresh token expired", expired.StatusReason)
}

func TestGormCredentialStore_UniquePerOwnerMarketplaceUserEnvironment(t *testing.T) {
	store, _ := newSQLiteStore(t, nil)
	ctx := context.Background()

	first := activeAccount(t, "owner-1", "mp-1")
	require.NoError(t, store.Upsert(ctx, first))

	dup := activeAccount(t, "owner-1", "mp-1")
	err := store.Upsert(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	otherOwner := activeAccount(t, "owner-2", "mp-1")
	assert.NoError(t, store.Upsert(ctx, otherOwner))

	// Pending rows carry no marketplace user and never collide.
	for i := 0; i < 2; i++ {
		p, err := marketplace.NewPendingAccount("owner-1", marketplace.EnvironmentSandbox, "", nil)
		require.NoError(t, err)
		assert.NoError(t, store.Create(ctx, p))
	}
}

func TestGormCredentialStore_FindByOwnerAndMarketplaceID(t *testing.T) {
	store, _ := newSQLiteStore(t, nil)
	ctx := context.Background()

	a := activeAccount(t, "owner-1", "mp-1")
	require.NoError(t, store.Upsert(ctx, a))

	found, err := store.FindByOwnerAndMarketplaceID(ctx, "owner-1", "mp-1", marketplace.EnvironmentSandbox)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, a.ID, found.ID)

	missing, err := store.FindByOwnerAndMarketplaceID(ctx, "owner-1", "mp-1", marketplace.EnvironmentProduction)
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := store.FindByOwnerAndMarketplaceID(ctx, "owner-1", "", marketplace.EnvironmentSandbox)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestGormCredentialStore_ListByOwnerAndTouch(t *testing.T) {
	store, _ := newSQLiteStore(t, nil)
	ctx := context.Background()

	older := activeAccount(t, "owner-1", "mp-1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Upsert(ctx, older))
	newer := activeAccount(t, "owner-1", "mp-2")
	require.NoError(t, store.Upsert(ctx, newer))
	require.NoError(t, store.Upsert(ctx, activeAccount(t, "owner-2", "mp-3")))

	list, err := store.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.TouchLastUsed(ctx, older.ID, at))

	got, err := store.Get(ctx, older.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
	assert.WithinDuration(t, at, *got.LastUsedAt, time.Second)
	assert.Equal(t, "access-mp-1", got.AccessToken)
}
