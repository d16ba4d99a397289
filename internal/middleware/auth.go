package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukerupert/storefront/internal/auth"
	"github.com/dukerupert/storefront/internal/domain"
)

type contextKey string

// TokenVerifier turns a bearer token into an admin principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.Admin, error)
}

// RequireAdmin rejects requests that do not carry a valid, unrevoked admin
// bearer token. On success the admin is attached to the request context.
func RequireAdmin(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				respondUnauthorized(w, r)
				return
			}

			admin, err := tokens.Verify(r.Context(), token)
			if err != nil {
				respondWithError(w, r, err)
				return
			}

			if admin.Role != auth.RoleAdmin {
				respondWithError(w, r, auth.ErrForbidden)
				return
			}

			ctx := domain.NewContextWithAdmin(r.Context(), admin)
			logger := GetLogger(ctx).With("admin", admin.Subject)
			ctx = context.WithValue(ctx, LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
