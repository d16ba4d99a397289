// Package domain provides the order, product and error types shared by the
// storefront services, plus context helpers for request-scoped identity.
package domain

import (
	"context"
	"time"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// adminContextKey stores the authenticated admin principal.
	adminContextKey contextKey = iota
)

// Admin is the principal decoded from a verified admin bearer token.
type Admin struct {
	TokenID   string
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// NewContextWithAdmin returns a new context with the admin attached.
func NewContextWithAdmin(ctx context.Context, admin *Admin) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}

// AdminFromContext retrieves the admin from context.
// Returns nil if the request was not authenticated as an admin.
func AdminFromContext(ctx context.Context) *Admin {
	admin, _ := ctx.Value(adminContextKey).(*Admin)
	return admin
}

// AdminSubject returns the admin subject for audit notes, or "system".
func AdminSubject(ctx context.Context) string {
	if admin := AdminFromContext(ctx); admin != nil && admin.Subject != "" {
		return admin.Subject
	}
	return "system"
}
