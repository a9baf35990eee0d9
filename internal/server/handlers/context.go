package handlers

import (
	"context"

	"github.com/internhub/internhub/internal/models"
)

type contextKey string

// PrincipalKey stores the authenticated principal in the request context.
const PrincipalKey contextKey = "principal"

// GetPrincipal extracts the principal set by the auth middleware.
func GetPrincipal(ctx context.Context) (models.Principal, bool) {
	principal, ok := ctx.Value(PrincipalKey).(models.Principal)
	return principal, ok
}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, principal models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}
