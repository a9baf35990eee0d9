package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/internal/wire"
	"github.com/internhub/internhub/pkg/api"
)

// SnapshotService produces permission-scoped snapshots for the REST sync
// endpoints. Implemented by the sync service; the websocket gateway consumes
// the same contract.
type SnapshotService interface {
	InitialSnapshot(ctx context.Context, principal models.Principal) (map[models.EntityType][]*models.Entity, error)
	IncrementalSnapshot(ctx context.Context, principal models.Principal, entityType models.EntityType, since time.Time) ([]*models.Entity, bool, error)
}

// SyncHandler serves the REST snapshot endpoints clients use for reconnect
// catch-up when no live connection exists yet.
type SyncHandler struct {
	snapshots SnapshotService
	logger    *slog.Logger
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(snapshots SnapshotService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		snapshots: snapshots,
		logger:    logger,
	}
}

// Initial handles GET /api/v1/sync/initial.
func (h *SyncHandler) Initial(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	collections, err := h.snapshots.InitialSnapshot(r.Context(), principal)
	if err != nil {
		h.logger.Error("initial snapshot failed", "error", err, "user_id", principal.UserID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.InitialSnapshot{
		Collections: wire.Collections(collections),
		ServerTime:  time.Now().UTC(),
	})
}

// Incremental handles GET /api/v1/sync/incremental?entity_type=...&since=...
// since is RFC 3339; omitted or zero means everything. A since behind the
// tombstone compaction horizon yields resync=true and no entities.
func (h *SyncHandler) Incremental(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entityType := models.EntityType(r.URL.Query().Get("entity_type"))
	if entityType == "" {
		http.Error(w, "Bad Request: entity_type is required", http.StatusBadRequest)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "Bad Request: invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	entities, resync, err := h.snapshots.IncrementalSnapshot(r.Context(), principal, entityType, since)
	if err != nil {
		h.logger.Error("incremental snapshot failed",
			"error", err,
			"entity_type", entityType,
			"user_id", principal.UserID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.IncrementalSnapshot{
		Entities:   wire.Entities(entities),
		ServerTime: time.Now().UTC(),
		Resync:     resync,
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
