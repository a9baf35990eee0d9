package api

import "time"

// Entity is the wire representation of a versioned record. UpdatedAt is a
// server timestamp; the server guarantees it is strictly increasing across
// writes, so it doubles as the incremental sync cursor and the conflict
// detection version.
type Entity struct {
	UpdatedAt time.Time      `json:"updated_at"`
	Fields    map[string]any `json:"fields"`
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Deleted   bool           `json:"deleted,omitempty"`
}

// InitialSnapshot is the response of GET /api/v1/sync/initial. Collections
// holds every entity of every type visible to the principal.
type InitialSnapshot struct {
	Collections map[string][]Entity `json:"collections"`
	ServerTime  time.Time           `json:"server_time"`
}

// IncrementalSnapshot is the response of GET /api/v1/sync/incremental.
// Entities includes tombstones (Deleted=true) so clients can drop removed
// records. Resync is set when the requested since falls behind the server's
// tombstone compaction horizon; the client must discard its cursor and
// perform a full initial snapshot instead.
type IncrementalSnapshot struct {
	ServerTime time.Time `json:"server_time"`
	Entities   []Entity  `json:"entities"`
	Resync     bool      `json:"resync,omitempty"`
}
