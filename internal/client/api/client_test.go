package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internhub/internhub/pkg/api"
)

func TestClient_InitialSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/sync/initial", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(api.InitialSnapshot{
			Collections: map[string][]api.Entity{
				"course": {{ID: "course-1", Type: "course"}},
			},
			ServerTime: time.Now().UTC(),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1")

	snapshot, err := client.InitialSync(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Collections["course"], 1)
	assert.Equal(t, "course-1", snapshot.Collections["course"][0].ID)
}

func TestClient_IncrementalSyncQuery(t *testing.T) {
	since := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sync/incremental", r.URL.Path)
		assert.Equal(t, "application", r.URL.Query().Get("entity_type"))

		parsed, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("since"))
		require.NoError(t, err)
		assert.True(t, parsed.Equal(since))

		_ = json.NewEncoder(w).Encode(api.IncrementalSnapshot{
			ServerTime: time.Now().UTC(),
			Resync:     true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1")

	snapshot, err := client.IncrementalSync(context.Background(), "application", since)
	require.NoError(t, err)
	assert.True(t, snapshot.Resync)
}

func TestClient_MutateReturnsTypedRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(api.MutationError{
			Code:    api.ErrorUnauthorized,
			Message: "update application app-1 not allowed",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1")

	_, err := client.Mutate(context.Background(), api.MutationRequest{
		Operation:  api.OperationUpdate,
		EntityType: "application",
		EntityID:   "app-1",
		Fields:     map[string]any{"status": "accepted"},
	})
	require.Error(t, err)

	var mutErr *api.MutationError
	require.True(t, errors.As(err, &mutErr), "rejections surface as MutationError")
	assert.Equal(t, api.ErrorUnauthorized, mutErr.Code)
	assert.False(t, mutErr.Retryable())
}

func TestClient_MutateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.MutationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "corr-1", req.CorrelationID)

		_ = json.NewEncoder(w).Encode(api.MutationResponse{
			Entity: &api.Entity{
				ID:        "app-1",
				Type:      "application",
				Fields:    req.Fields,
				UpdatedAt: time.Now().UTC(),
			},
			CorrelationID: req.CorrelationID,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1")

	resp, err := client.Mutate(context.Background(), api.MutationRequest{
		Operation:     api.OperationUpdate,
		EntityType:    "application",
		EntityID:      "app-1",
		Fields:        map[string]any{"status": "submitted"},
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Entity)
	assert.Equal(t, "corr-1", resp.CorrelationID)
	assert.False(t, resp.Entity.UpdatedAt.IsZero())
}

func TestClient_ServerUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "token-1")

	_, err := client.InitialSync(context.Background())
	require.Error(t, err)

	var mutErr *api.MutationError
	assert.False(t, errors.As(err, &mutErr), "transport failures are not rejections")
}
