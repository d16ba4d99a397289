package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/storefront/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T, store RevocationStore) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{Secret: testSecret, TTL: time.Hour}, store)
	require.NoError(t, err)
	return m
}

func TestNewTokenManager_RejectsShortSecret(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{Secret: "short"}, nil)
	assert.ErrorIs(t, err, ErrSecretLength)
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	m := newTestManager(t, NewMemoryRevocationStore())

	token, claims, err := m.Issue("ops@example.com", RoleAdmin, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	admin, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", admin.Subject)
	assert.Equal(t, RoleAdmin, admin.Role)
	assert.Equal(t, claims.ID, admin.TokenID)
}

func TestTokenManager_VerifyRejects(t *testing.T) {
	m := newTestManager(t, nil)
	valid, _, err := m.Issue("ops@example.com", RoleAdmin, 0)
	require.NoError(t, err)

	other, err := NewTokenManager(TokenConfig{Secret: strings.Repeat("x", 32)}, nil)
	require.NoError(t, err)
	foreign, _, err := other.Issue("ops@example.com", RoleAdmin, 0)
	require.NoError(t, err)

	expiredManager := newTestManager(t, nil)
	expiredManager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredManager.Issue("ops@example.com", RoleAdmin, time.Minute)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "id",
			Issuer:    "storefront",
			Subject:   "attacker",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.jwt"},
		{"tampered", valid[:len(valid)-2] + "xx"},
		{"signed with another secret", foreign},
		{"expired", expired},
		{"alg none", unsigned},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(context.Background(), tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
		})
	}
}

func TestTokenManager_Revoke(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRevocationStore()
	m := newTestManager(t, store)

	token, claims, err := m.Issue("ops@example.com", RoleAdmin, 0)
	require.NoError(t, err)

	revoked, err := m.Revoke(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, revoked.ID)

	_, err = m.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// Other tokens are unaffected.
	fresh, _, err := m.Issue("ops@example.com", RoleAdmin, 0)
	require.NoError(t, err)
	_, err = m.Verify(ctx, fresh)
	assert.NoError(t, err)
}

func TestTokenManager_RevokeID(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryRevocationStore())

	token, claims, err := m.Issue("ops@example.com", RoleAdmin, 0)
	require.NoError(t, err)

	require.NoError(t, m.RevokeID(ctx, claims.ID, time.Time{}))
	_, err = m.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	err = m.RevokeID(ctx, "not-a-uuid", time.Time{})
	assert.True(t, domain.IsValidationError(err))
}

func TestTokenManager_RevokeWithoutStore(t *testing.T) {
	m := newTestManager(t, nil)
	token, _, err := m.Issue("ops@example.com", RoleAdmin, 0)
	require.NoError(t, err)

	_, err = m.Revoke(context.Background(), token)
	assert.Error(t, err)
}

func TestMemoryRevocationStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRevocationStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Revoke(ctx, "a", now.Add(time.Minute)))

	revoked, err := store.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	revoked, err = store.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = store.IsRevoked(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}
