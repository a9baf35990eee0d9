package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internhub/internhub/internal/models"
)

func entityAt(t time.Time, fields map[string]any) *models.Entity {
	return &models.Entity{
		ID:        "app-1",
		Type:      models.EntityApplication,
		Fields:    fields,
		UpdatedAt: t,
	}
}

func TestResolver_ServerWinsWhenNewer(t *testing.T) {
	r := NewResolver()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	local := entityAt(base, map[string]any{"status": "draft", "title": "local"})
	incoming := entityAt(base.Add(time.Second), map[string]any{"status": "submitted", "title": "server"})

	resolved := r.Resolve(local, incoming)

	assert.Equal(t, "submitted", resolved.Fields["status"])
	assert.Equal(t, "server", resolved.Fields["title"])
	assert.Equal(t, incoming.UpdatedAt, resolved.UpdatedAt)
}

func TestResolver_EqualTimestampsServerWins(t *testing.T) {
	r := NewResolver()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	local := entityAt(base, map[string]any{"status": "draft"})
	incoming := entityAt(base, map[string]any{"status": "submitted"})

	resolved := r.Resolve(local, incoming)

	assert.Equal(t, "submitted", resolved.Fields["status"])
}

func TestResolver_LocalNewerMergesWhitelistOnly(t *testing.T) {
	r := NewResolver()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	local := entityAt(base.Add(time.Second), map[string]any{
		"status": "accepted",
		"notes":  "call back monday",
		"title":  "local title",
	})
	incoming := entityAt(base, map[string]any{
		"status": "submitted",
		"notes":  "old notes",
		"title":  "server title",
	})

	resolved := r.Resolve(local, incoming)

	assert.Equal(t, "accepted", resolved.Fields["status"], "whitelist field carried from local")
	assert.Equal(t, "call back monday", resolved.Fields["notes"])
	assert.Equal(t, "server title", resolved.Fields["title"], "non-whitelist field takes the server value")
	assert.Equal(t, local.UpdatedAt, resolved.UpdatedAt, "merged copy keeps the local timestamp")
}

func TestResolver_TombstoneWinsRegardlessOfTimestamps(t *testing.T) {
	r := NewResolver()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	local := entityAt(base.Add(time.Hour), map[string]any{"status": "accepted"})
	incoming := entityAt(base, map[string]any{"status": "submitted"})
	incoming.Deleted = true

	resolved := r.Resolve(local, incoming)

	assert.True(t, resolved.Deleted)
}

func TestResolver_NoLocalCopy(t *testing.T) {
	r := NewResolver()

	incoming := entityAt(time.Now(), map[string]any{"status": "submitted"})
	resolved := r.Resolve(nil, incoming)

	require.NotNil(t, resolved)
	assert.Equal(t, "submitted", resolved.Fields["status"])
}

func TestResolver_NonScalarWhitelistFieldFailsClosed(t *testing.T) {
	r := NewResolver()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	local := entityAt(base.Add(time.Second), map[string]any{
		"status": map[string]any{"weird": "shape"},
		"notes":  "ok",
	})
	incoming := entityAt(base, map[string]any{
		"status": "submitted",
		"notes":  "server notes",
	})

	resolved := r.Resolve(local, incoming)

	assert.Equal(t, "submitted", resolved.Fields["status"], "non-scalar local value falls back to server")
	assert.Equal(t, "ok", resolved.Fields["notes"])
}

func TestResolver_ReturnsClones(t *testing.T) {
	r := NewResolver()
	incoming := entityAt(time.Now(), map[string]any{"status": "submitted"})

	resolved := r.Resolve(nil, incoming)
	resolved.Fields["status"] = "mutated"

	assert.Equal(t, "submitted", incoming.Fields["status"], "resolver output never aliases its inputs")
}
