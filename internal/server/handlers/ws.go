package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/internhub/internhub/internal/server/auth"
	"github.com/internhub/internhub/internal/server/gateway"
)

// WSHandler upgrades /ws requests into gateway connections. The token is
// checked before the upgrade: an unauthenticated request never reaches the
// hub and never consumes a connection slot.
type WSHandler struct {
	gateway *gateway.Gateway
	authCfg auth.Config
	logger  *slog.Logger

	upgrader websocket.Upgrader
}

// NewWSHandler creates a websocket handler.
func NewWSHandler(gw *gateway.Gateway, authCfg auth.Config, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		gateway: gw,
		authCfg: authCfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin policy is enforced by the fronting proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws. Browsers cannot set headers on websocket dials, so
// the token is accepted from the Authorization header or a token query
// parameter.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		h.logger.Warn("websocket connect without token", "remote_addr", r.RemoteAddr)
		http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
		return
	}

	principal, err := auth.ValidateToken(h.authCfg, token)
	if err != nil {
		h.logger.Warn("websocket connect with invalid token", "error", err, "remote_addr", r.RemoteAddr)
		http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	h.gateway.HandleConn(r.Context(), ws, principal)
}

func bearerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}

	return r.URL.Query().Get("token")
}
