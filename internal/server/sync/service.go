// Package sync produces permission-scoped snapshots. The gateway uses it
// for the initial snapshot sent before any live envelope, and clients use
// it over REST for reconnect catch-up when the gap since disconnect may
// exceed anything buffered in memory.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/internal/server/scope"
	"github.com/internhub/internhub/internal/server/storage"
)

// TombstoneRetention is the compaction horizon. Tombstones older than this
// are purged, so an incremental request with an older cursor can no longer
// be answered completely and forces a full resync.
const TombstoneRetention = 30 * 24 * time.Hour

// Service computes visible snapshots of the entity collections.
type Service struct {
	store  storage.EntityStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a snapshot service.
func NewService(store storage.EntityStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// InitialSnapshot returns every entity of every known type visible to the
// principal. Side-effect free and idempotent.
func (s *Service) InitialSnapshot(ctx context.Context, principal models.Principal) (map[models.EntityType][]*models.Entity, error) {
	collections := make(map[models.EntityType][]*models.Entity)

	for _, entityType := range models.KnownEntityTypes() {
		entities, err := s.store.ListEntities(ctx, entityType)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s entities: %w", entityType, err)
		}

		visible := filterVisible(principal, entityType, entities)
		collections[entityType] = visible
	}

	s.logger.Debug("initial snapshot computed",
		"user_id", principal.UserID,
		"role", principal.Role)

	return collections, nil
}

// IncrementalSnapshot returns entities of entityType visible to the
// principal with updated_at strictly after since, tombstones included.
// The second return value is true when since is behind the compaction
// horizon and the client must fall back to a full snapshot. An unknown
// entity type returns an empty result, not an error.
func (s *Service) IncrementalSnapshot(ctx context.Context, principal models.Principal, entityType models.EntityType, since time.Time) ([]*models.Entity, bool, error) {
	if !knownEntityType(entityType) {
		s.logger.Debug("incremental snapshot for unknown entity type",
			"entity_type", entityType,
			"user_id", principal.UserID)
		return nil, false, nil
	}

	horizon := s.now().Add(-TombstoneRetention)
	if !since.IsZero() && since.Before(horizon) {
		// Tombstones from before the horizon may already be purged;
		// deletions in the gap would be silently missed.
		return nil, true, nil
	}

	entities, err := s.store.ListEntitiesSince(ctx, entityType, since)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list %s entities since %s: %w", entityType, since, err)
	}

	return filterVisible(principal, entityType, entities), false, nil
}

// PurgeExpiredTombstones enforces the compaction horizon. The server runs
// it periodically.
func (s *Service) PurgeExpiredTombstones(ctx context.Context) error {
	cutoff := s.now().Add(-TombstoneRetention)

	purged, err := s.store.PurgeTombstones(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge tombstones: %w", err)
	}

	if purged > 0 {
		s.logger.Info("purged expired tombstones", "count", purged, "cutoff", cutoff)
	}

	return nil
}

func filterVisible(principal models.Principal, entityType models.EntityType, entities []*models.Entity) []*models.Entity {
	pred := scope.VisibleScope(principal, entityType)

	visible := make([]*models.Entity, 0, len(entities))
	for _, e := range entities {
		if pred(e) {
			visible = append(visible, e)
		}
	}
	return visible
}

func knownEntityType(entityType models.EntityType) bool {
	for _, known := range models.KnownEntityTypes() {
		if known == entityType {
			return true
		}
	}
	return false
}
