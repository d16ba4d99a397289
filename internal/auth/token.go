// Package auth issues and verifies the bearer tokens that guard the admin
// API. Tokens are HS256 JWTs; revocation is tracked by token id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dukerupert/storefront/internal/domain"
)

// RoleAdmin is the only role the API currently grants.
const RoleAdmin = "admin"

// MinSecretLength is the minimum HMAC secret length in bytes.
const MinSecretLength = 32

var (
	ErrInvalidToken = domain.Errorf(domain.EUNAUTHORIZED, "", "Invalid or expired token")
	ErrTokenRevoked = domain.Errorf(domain.EUNAUTHORIZED, "", "Token has been revoked")
	ErrForbidden    = domain.Errorf(domain.EFORBIDDEN, "", "Admin access required")
	ErrSecretLength = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
)

// Claims are the JWT claims carried by an admin token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenConfig configures token issuing.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// TokenManager issues, verifies and revokes admin tokens.
type TokenManager struct {
	secret      []byte
	issuer      string
	ttl         time.Duration
	revocations RevocationStore
	now         func() time.Time
}

// NewTokenManager creates a TokenManager. Revocation checks are skipped when
// revocations is nil.
func NewTokenManager(cfg TokenConfig, revocations RevocationStore) (*TokenManager, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrSecretLength
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "storefront"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &TokenManager{
		secret:      []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		ttl:         cfg.TTL,
		revocations: revocations,
		now:         time.Now,
	}, nil
}

// Issue signs a new token for subject. A zero ttl uses the configured default.
func (m *TokenManager) Issue(subject, role string, ttl time.Duration) (string, *Claims, error) {
	if strings.TrimSpace(subject) == "" {
		return "", nil, errors.New("token subject is required")
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	now := m.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse validates the signature, issuer and expiry of a token without
// consulting the revocation store.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, domain.WrapError(ErrInvalidToken, domain.EUNAUTHORIZED, "auth.parse", "Invalid or expired token")
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify parses the token, rejects revoked tokens and returns the admin
// principal.
func (m *TokenManager) Verify(ctx context.Context, tokenString string) (*domain.Admin, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "auth.verify", "failed to check token revocation")
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return &domain.Admin{
		TokenID:   claims.ID,
		Subject:   claims.Subject,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke blocks the token until it would have expired anyway.
func (m *TokenManager) Revoke(ctx context.Context, tokenString string) (*Claims, error) {
	if m.revocations == nil {
		return nil, errors.New("token revocation is not configured")
	}
	claims, err := m.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if err := m.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "auth.revoke", "failed to revoke token")
	}
	return claims, nil
}

// RevokeID blocks a token by id, for tokens the caller no longer holds.
func (m *TokenManager) RevokeID(ctx context.Context, tokenID string, until time.Time) error {
	if m.revocations == nil {
		return errors.New("token revocation is not configured")
	}
	if _, err := uuid.Parse(tokenID); err != nil {
		return domain.NewValidationError("auth.revoke", "tokenId", "Token ID must be a UUID")
	}
	if until.IsZero() {
		until = m.now().Add(m.ttl)
	}
	if err := m.revocations.Revoke(ctx, tokenID, until); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "auth.revoke", "failed to revoke token")
	}
	return nil
}
