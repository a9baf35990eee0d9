// Package wire converts between internal entities and their pkg/api wire
// representation. Both directions deep-copy the field map so neither side
// ends up sharing mutable state with the other.
package wire

import (
	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/pkg/api"
)

// Entity converts an internal entity to its wire form.
func Entity(e *models.Entity) api.Entity {
	clone := e.Clone()
	return api.Entity{
		ID:        clone.ID,
		Type:      string(clone.Type),
		Fields:    clone.Fields,
		UpdatedAt: clone.UpdatedAt,
		Deleted:   clone.Deleted,
	}
}

// Entities converts a slice of internal entities.
func Entities(entities []*models.Entity) []api.Entity {
	out := make([]api.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, Entity(e))
	}
	return out
}

// Collections converts a snapshot keyed by entity type.
func Collections(collections map[models.EntityType][]*models.Entity) map[string][]api.Entity {
	out := make(map[string][]api.Entity, len(collections))
	for entityType, entities := range collections {
		out[string(entityType)] = Entities(entities)
	}
	return out
}

// Model converts a wire entity to its internal form.
func Model(e api.Entity) *models.Entity {
	internal := &models.Entity{
		ID:        e.ID,
		Type:      models.EntityType(e.Type),
		Fields:    e.Fields,
		UpdatedAt: e.UpdatedAt,
		Deleted:   e.Deleted,
	}
	return internal.Clone()
}
