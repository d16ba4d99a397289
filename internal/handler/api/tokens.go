package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/storefront/internal/auth"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/handler"
	"github.com/dukerupert/storefront/internal/middleware"
)

// TokenRevoker revokes admin tokens.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string) (*auth.Claims, error)
}

// TokenHandler serves admin token management.
type TokenHandler struct {
	tokens TokenRevoker
}

// NewTokenHandler creates a token handler.
func NewTokenHandler(tokens TokenRevoker) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// Revoke handles POST /admin/tokens/revoke (admin)
//
// Revokes the bearer token the request was made with. Every instance
// sharing the revocation store rejects it from then on.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		handler.UnauthorizedResponse(w, r)
		return
	}

	claims, err := h.tokens.Revoke(r.Context(), token)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("admin token revoked",
		"token_id", claims.ID,
		"subject", claims.Subject,
		"revoked_by", domain.AdminSubject(r.Context()),
	)

	handler.JSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Token revoked",
		"tokenId":      claims.ID,
		"revokedUntil": claims.ExpiresAt.Time.Format(time.RFC3339),
	})
}
