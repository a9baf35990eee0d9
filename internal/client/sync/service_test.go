package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/pkg/api"
)

func newTestService(t *testing.T, serverURL string) *Service {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	s, err := New(Config{
		ServerURL: serverURL,
		WSURL:     "ws://unused.invalid/ws",
		Token:     "token-1",
		QueuePath: filepath.Join(t.TempDir(), "queue.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func seedStore(t *testing.T, s *Service) time.Time {
	t.Helper()

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Store().ApplySnapshot(map[models.EntityType][]*models.Entity{
		models.EntityApplication: {
			{ID: "app-1", Type: models.EntityApplication, Fields: map[string]any{"status": "draft"}, UpdatedAt: base},
		},
	}, base))
	return base
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestService_OfflineUpdateQueuedAndReplayed(t *testing.T) {
	var received api.MutationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode(api.MutationResponse{
			Entity: &api.Entity{
				ID:        received.EntityID,
				Type:      received.EntityType,
				Fields:    received.Fields,
				UpdatedAt: time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC),
			},
			CorrelationID: received.CorrelationID,
		})
	}))
	defer server.Close()

	s := newTestService(t, server.URL)
	seedStore(t, s)

	localID, err := s.Update(models.EntityApplication, "app-1", map[string]any{"status": "submitted"})
	require.NoError(t, err)

	got, _ := s.Store().Get(models.EntityApplication, "app-1")
	assert.Equal(t, "submitted", got.Fields["status"], "offline mutation applies locally at once")

	pending, err := s.queue.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, localID, pending[0].LocalID)

	// Connectivity returns; the queue replays.
	s.queue.SetOnline(true)

	waitFor(t, func() bool {
		n, _ := s.queue.Len()
		return n == 0
	})

	assert.Equal(t, localID, received.CorrelationID)

	waitFor(t, func() bool {
		e, _ := s.Store().Get(models.EntityApplication, "app-1")
		return e != nil && e.UpdatedAt.Equal(time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC))
	})
	assert.Equal(t, 0, s.Store().PendingCount(), "overlay resolved by confirmation")
}

func TestService_OfflineCreateSwapsPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.MutationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		_ = json.NewEncoder(w).Encode(api.MutationResponse{
			Entity: &api.Entity{
				ID:        "app-server-1",
				Type:      req.EntityType,
				Fields:    req.Fields,
				UpdatedAt: time.Now().UTC(),
			},
			CorrelationID: req.CorrelationID,
		})
	}))
	defer server.Close()

	s := newTestService(t, server.URL)

	localID, err := s.Create(models.EntityApplication, map[string]any{"status": "draft"})
	require.NoError(t, err)

	_, ok := s.Store().Get(models.EntityApplication, localID)
	require.True(t, ok, "placeholder visible while queued")

	s.queue.SetOnline(true)

	waitFor(t, func() bool {
		_, ok := s.Store().Get(models.EntityApplication, "app-server-1")
		return ok
	})

	_, ok = s.Store().Get(models.EntityApplication, localID)
	assert.False(t, ok, "placeholder replaced by the canonical entity")
}

func TestService_RejectedQueuedMutationRollsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(api.MutationError{
			Code:    api.ErrorUnauthorized,
			Message: "not allowed",
		})
	}))
	defer server.Close()

	s := newTestService(t, server.URL)
	seedStore(t, s)

	_, err := s.Update(models.EntityApplication, "app-1", map[string]any{"status": "submitted"})
	require.NoError(t, err)

	s.queue.SetOnline(true)

	waitFor(t, func() bool {
		n, _ := s.queue.Len()
		return n == 0
	})

	waitFor(t, func() bool {
		e, _ := s.Store().Get(models.EntityApplication, "app-1")
		return e != nil && e.Fields["status"] == "draft"
	})
	assert.Equal(t, 0, s.Store().PendingCount(), "rejected overlay rolled back")
}

func TestService_RefreshAppliesIncremental(t *testing.T) {
	changed := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sync/incremental", r.URL.Path)
		require.Equal(t, "application", r.URL.Query().Get("entity_type"))

		_ = json.NewEncoder(w).Encode(api.IncrementalSnapshot{
			Entities: []api.Entity{
				{ID: "app-1", Type: "application", Fields: map[string]any{"status": "accepted"}, UpdatedAt: changed},
				{ID: "app-2", Type: "application", UpdatedAt: changed, Deleted: true},
			},
			ServerTime: changed,
		})
	}))
	defer server.Close()

	s := newTestService(t, server.URL)
	seedStore(t, s)

	require.NoError(t, s.Refresh(context.Background(), models.EntityApplication))

	got, _ := s.Store().Get(models.EntityApplication, "app-1")
	require.NotNil(t, got)
	assert.Equal(t, "accepted", got.Fields["status"])
	assert.True(t, s.Store().LastSync(models.EntityApplication).Equal(changed), "cursor advances with the refresh")
}

func TestService_RefreshResyncFallsBackToFullSnapshot(t *testing.T) {
	serverTime := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/sync/incremental":
			_ = json.NewEncoder(w).Encode(api.IncrementalSnapshot{Resync: true, ServerTime: serverTime})
		case "/api/v1/sync/initial":
			_ = json.NewEncoder(w).Encode(api.InitialSnapshot{
				Collections: map[string][]api.Entity{
					"application": {
						{ID: "app-9", Type: "application", Fields: map[string]any{"status": "draft"}, UpdatedAt: serverTime},
					},
				},
				ServerTime: serverTime,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := newTestService(t, server.URL)
	seedStore(t, s)

	require.NoError(t, s.Refresh(context.Background(), models.EntityApplication))

	_, ok := s.Store().Get(models.EntityApplication, "app-9")
	assert.True(t, ok, "resync replaces the cache with the fresh snapshot")
	_, ok = s.Store().Get(models.EntityApplication, "app-1")
	assert.False(t, ok, "entities absent from the fresh snapshot are gone")
}

func TestService_OfflineUpdateEntityWithNilFields(t *testing.T) {
	s := newTestService(t, "http://unused.invalid")

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Store().ApplySnapshot(map[models.EntityType][]*models.Entity{
		models.EntityApplication: {
			{ID: "app-1", Type: models.EntityApplication, UpdatedAt: base},
		},
	}, base))

	_, err := s.Update(models.EntityApplication, "app-1", map[string]any{"status": "submitted"})
	require.NoError(t, err)

	got, _ := s.Store().Get(models.EntityApplication, "app-1")
	require.NotNil(t, got)
	assert.Equal(t, "submitted", got.Fields["status"], "overlay works on an entity without fields")
}

func TestService_UpdateUnknownEntity(t *testing.T) {
	s := newTestService(t, "http://unused.invalid")

	_, err := s.Update(models.EntityApplication, "missing", map[string]any{"status": "x"})
	assert.Error(t, err)
}
