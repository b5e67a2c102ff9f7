package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/client"
	"github.com/gatehouse-dev/gatehouse/domain"
)

func newCode(code, clientID string, ttl time.Duration) *domain.AuthCode {
	now := time.Now().UTC()
	return &domain.AuthCode{
		Code:        code,
		ClientID:    clientID,
		UserID:      "u1",
		RedirectURI: "https://cb",
		Scope:       "read",
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
}

func TestAuthCodeStore_ConsumeOnce(t *testing.T) {
	store := NewAuthCodeStore()
	ctx := context.Background()

	require.NoError(t, store.SaveAuthCode(ctx, newCode("abc", "c1", time.Minute)))

	got, err := store.ConsumeAuthCode(ctx, "c1", "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Code)

	_, err = store.ConsumeAuthCode(ctx, "c1", "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthCodeStore_ConsumeChecksClient(t *testing.T) {
	store := NewAuthCodeStore()
	ctx := context.Background()

	require.NoError(t, store.SaveAuthCode(ctx, newCode("abc", "c1", time.Minute)))

	_, err := store.ConsumeAuthCode(ctx, "c2", "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A mismatched consume attempt must not burn the code.
	_, err = store.ConsumeAuthCode(ctx, "c1", "abc")
	assert.NoError(t, err)
}

func TestAuthCodeStore_DuplicateSave(t *testing.T) {
	store := NewAuthCodeStore()
	ctx := context.Background()

	require.NoError(t, store.SaveAuthCode(ctx, newCode("abc", "c1", time.Minute)))
	assert.ErrorIs(t, store.SaveAuthCode(ctx, newCode("abc", "c1", time.Minute)), domain.ErrDuplicate)
}

func TestAuthCodeStore_ConcurrentConsume(t *testing.T) {
	store := NewAuthCodeStore()
	ctx := context.Background()

	require.NoError(t, store.SaveAuthCode(ctx, newCode("abc", "c1", time.Minute)))

	const attempts = 64
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeAuthCode(ctx, "c1", "abc"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestAuthCodeStore_DeleteExpired(t *testing.T) {
	store := NewAuthCodeStore()
	ctx := context.Background()

	require.NoError(t, store.SaveAuthCode(ctx, newCode("live", "c1", time.Minute)))
	require.NoError(t, store.SaveAuthCode(ctx, newCode("dead", "c1", -time.Minute)))

	require.NoError(t, store.DeleteExpiredAuthCodes(ctx))

	_, err := store.ConsumeAuthCode(ctx, "c1", "dead")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.ConsumeAuthCode(ctx, "c1", "live")
	assert.NoError(t, err)
}

func newToken(access, refresh string) *domain.Token {
	now := time.Now().UTC()
	return &domain.Token{
		ID:               access + "-id",
		AccessToken:      access,
		RefreshToken:     refresh,
		ClientID:         "c1",
		UserID:           "u1",
		Scope:            "read",
		IssuedAt:         now,
		ExpiresAt:        now.Add(5 * time.Minute),
		RefreshExpiresAt: now.Add(15 * time.Minute),
	}
}

func TestTokenStore_RevokeVisibleFromBothViews(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, store.StoreToken(ctx, newToken("at", "rt")))

	require.NoError(t, store.RevokeByRefreshToken(ctx, "rt"))

	byAccess, err := store.GetByAccessToken(ctx, "at")
	require.NoError(t, err)
	assert.True(t, byAccess.Revoked)

	byRefresh, err := store.GetByRefreshToken(ctx, "rt")
	require.NoError(t, err)
	assert.True(t, byRefresh.Revoked)
}

func TestTokenStore_GetReturnsCopy(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, store.StoreToken(ctx, newToken("at", "rt")))

	got, err := store.GetByAccessToken(ctx, "at")
	require.NoError(t, err)
	got.Revoked = true

	again, err := store.GetByAccessToken(ctx, "at")
	require.NoError(t, err)
	assert.False(t, again.Revoked)
}

func TestTokenStore_RevokeUnknown(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.RevokeByRefreshToken(ctx, "nope"), domain.ErrNotFound)
	assert.ErrorIs(t, store.RevokeByAccessToken(ctx, "nope"), domain.ErrNotFound)
}

func TestTokenStore_RevokeConsumesLiveRow(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, store.StoreToken(ctx, newToken("at", "rt")))
	require.NoError(t, store.RevokeByRefreshToken(ctx, "rt"))

	// The second flip finds no live row: the revoke doubles as the
	// consume step for refresh rotation.
	assert.ErrorIs(t, store.RevokeByRefreshToken(ctx, "rt"), domain.ErrNotFound)
	assert.ErrorIs(t, store.RevokeByAccessToken(ctx, "at"), domain.ErrNotFound)
}

func TestTokenStore_ConcurrentRevokeSingleWinner(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, store.StoreToken(ctx, newToken("at", "rt")))

	const attempts = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			if err := store.RevokeByRefreshToken(ctx, "rt"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestTokenStore_DeleteExpiredRevoked(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	old := newToken("old-at", "old-rt")
	old.RefreshExpiresAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.StoreToken(ctx, old))
	require.NoError(t, store.RevokeByAccessToken(ctx, "old-at"))

	live := newToken("live-at", "live-rt")
	require.NoError(t, store.StoreToken(ctx, live))
	require.NoError(t, store.RevokeByAccessToken(ctx, "live-at"))

	require.NoError(t, store.DeleteExpiredRevoked(ctx, time.Now().UTC()))

	_, err := store.GetByAccessToken(ctx, "old-at")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetByRefreshToken(ctx, "old-rt")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Revoked but not yet refresh-expired rows stay for introspection.
	_, err = store.GetByAccessToken(ctx, "live-at")
	assert.NoError(t, err)
}

func TestClientStore_DuplicateRegistration(t *testing.T) {
	store := NewClientStore()
	ctx := context.Background()

	require.NoError(t, store.CreateClient(ctx, &client.Client{ID: "web", Secret: "a"}))
	assert.ErrorIs(t, store.CreateClient(ctx, &client.Client{ID: "web", Secret: "b"}), domain.ErrDuplicate)

	// The original registration survives the rejected insert.
	got, err := store.GetClient(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Secret)
}

func TestUserStore(t *testing.T) {
	store := NewUserStore()
	ctx := context.Background()

	user := &domain.User{ID: "u1", Username: "demo", PasswordHash: "x"}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.ErrorIs(t, store.CreateUser(ctx, &domain.User{ID: "u2", Username: "demo"}), domain.ErrDuplicate)

	byID, err := store.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "demo", byID.Username)

	byName, err := store.GetUserByUsername(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "u1", byName.ID)

	_, err = store.GetUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
