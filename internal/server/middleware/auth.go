package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/internhub/internhub/internal/server/auth"
	"github.com/internhub/internhub/internal/server/handlers"
)

// AuthMiddleware validates the bearer token and binds the principal to the
// request context. Unauthenticated requests are refused before reaching any
// handler.
func AuthMiddleware(logger *slog.Logger, cfg auth.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("missing Authorization header", "path", r.URL.Path)
				http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("invalid Authorization header format")
				http.Error(w, "Unauthorized: invalid token format", http.StatusUnauthorized)
				return
			}

			principal, err := auth.ValidateToken(cfg, parts[1])
			if err != nil {
				logger.Warn("invalid access token", "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			ctx := handlers.WithPrincipal(r.Context(), principal)

			logger.Debug("principal authenticated",
				"user_id", principal.UserID,
				"role", principal.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
