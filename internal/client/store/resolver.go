package store

import (
	"github.com/internhub/internhub/internal/models"
)

// mergeableFields are the only fields a locally newer copy may carry over a
// server update. Everything outside the whitelist always takes the server
// value.
var mergeableFields = []string{"status", "notes", "priority"}

// Resolver reconciles an incoming server entity with the locally cached
// copy. The server copy is canonical: the only concession to local state is
// the whitelist merge when the local copy is strictly newer, which happens
// while an optimistic mutation is still in flight.
type Resolver struct{}

// NewResolver creates a resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the entity the cache should hold. local may be nil.
//
// Rules, in order:
//   - no local copy, or server copy at least as new: server wins outright;
//   - server tombstone: server wins regardless of timestamps;
//   - local strictly newer: server copy is taken as the base and whitelist
//     fields are carried over from local, keeping the local timestamp so the
//     in-flight confirmation still supersedes the result.
//
// Unknown payload shapes fail closed to the server value: a whitelist field
// is only carried if it is a scalar in both copies.
func (r *Resolver) Resolve(local, incoming *models.Entity) *models.Entity {
	if incoming == nil {
		return local.Clone()
	}
	if local == nil || incoming.Deleted || !incoming.UpdatedAt.Before(local.UpdatedAt) {
		return incoming.Clone()
	}

	merged := incoming.Clone()
	if merged.Fields == nil {
		merged.Fields = make(map[string]any)
	}

	for _, field := range mergeableFields {
		localValue, ok := local.Fields[field]
		if !ok || !isScalar(localValue) {
			continue
		}
		if serverValue, ok := incoming.Fields[field]; ok && !isScalar(serverValue) {
			continue
		}
		merged.Fields[field] = localValue
	}

	merged.UpdatedAt = local.UpdatedAt
	return merged
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, int, int64, nil:
		return true
	default:
		return false
	}
}
