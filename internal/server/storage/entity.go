// Package storage defines the canonical entity store consumed by the sync
// service and the mutation handler. The synchronization core never
// originates entity changes on its own; everything flows through
// SaveEntity/DeleteEntity invoked by the mutation layer.
package storage

import (
	"context"
	"time"

	"github.com/internhub/internhub/internal/models"
)

//go:generate moq -out entity_mock.go . EntityStore

// EntityStore is the persistence interface for versioned entities.
//
// Deletions are tombstones: the row survives with Deleted=true and its
// ownership fields intact, so incremental sync can report the deletion and
// group addressing can still be computed from the pre-deletion snapshot.
// Tombstones are purged after the compaction horizon.
type EntityStore interface {
	// SaveEntity inserts or replaces an entity.
	SaveEntity(ctx context.Context, entity *models.Entity) error

	// GetEntity returns a single live entity. Tombstones and missing rows
	// both yield ErrEntityNotFound.
	GetEntity(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error)

	// ListEntities returns all live entities of a type.
	ListEntities(ctx context.Context, entityType models.EntityType) ([]*models.Entity, error)

	// ListEntitiesSince returns entities of a type with updated_at strictly
	// after since, tombstones included, ordered by updated_at ascending.
	ListEntitiesSince(ctx context.Context, entityType models.EntityType, since time.Time) ([]*models.Entity, error)

	// DeleteEntity turns an entity into a tombstone stamped at.
	// Returns ErrEntityNotFound if there is no live entity to delete.
	DeleteEntity(ctx context.Context, entityType models.EntityType, id string, at time.Time) error

	// PurgeTombstones removes tombstones with updated_at before cutoff and
	// reports how many were removed.
	PurgeTombstones(ctx context.Context, cutoff time.Time) (int, error)

	// MaxUpdatedAt returns the largest updated_at across all rows, or the
	// zero time for an empty store. Used to restore the server clock.
	MaxUpdatedAt(ctx context.Context) (time.Time, error)
}
