package optimistic

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internhub/internhub/internal/client/store"
	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/pkg/api"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	calls    int
	requests []api.MutationRequest
	respond  func(req api.MutationRequest) (*api.MutationResponse, error)
	delay    time.Duration
}

func (f *fakeSubmitter) Mutate(ctx context.Context, req api.MutationRequest) (*api.MutationResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		return respond(req)
	}

	return &api.MutationResponse{
		Entity: &api.Entity{
			ID:        req.EntityID,
			Type:      req.EntityType,
			Fields:    req.Fields,
			UpdatedAt: time.Now().UTC(),
		},
		CorrelationID: req.CorrelationID,
	}, nil
}

type result struct {
	correlationID string
	err           error
}

type resultRecorder struct {
	mu      sync.Mutex
	results []result
}

func (r *resultRecorder) record(correlationID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result{correlationID: correlationID, err: err})
}

func (r *resultRecorder) get() []result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]result(nil), r.results...)
}

func newTestManager(t *testing.T, submitter Submitter) (*Manager, *store.Store, *resultRecorder) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	s := store.New(store.NewResolver(), logger)
	t.Cleanup(s.Close)

	recorder := &resultRecorder{}
	return New(s, submitter, recorder.record, logger), s, recorder
}

func seedApplication(t *testing.T, s *store.Store) {
	t.Helper()

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.ApplySnapshot(map[models.EntityType][]*models.Entity{
		models.EntityApplication: {
			{ID: "app-1", Type: models.EntityApplication, Fields: map[string]any{"status": "draft"}, UpdatedAt: base},
		},
	}, base))
}

func TestManager_UpdateConfirmed(t *testing.T) {
	submitter := &fakeSubmitter{}
	m, s, recorder := newTestManager(t, submitter)
	seedApplication(t, s)

	corrID, err := m.Update(models.EntityApplication, "app-1", map[string]any{"status": "submitted"})
	require.NoError(t, err)
	require.NotEmpty(t, corrID)
	assert.NotEqual(t, "app-1", corrID, "correlation id is not the entity id")

	got, _ := s.Get(models.EntityApplication, "app-1")
	assert.Equal(t, "submitted", got.Fields["status"], "speculative state visible before confirmation")

	m.Wait()

	results := recorder.get()
	require.Len(t, results, 1)
	assert.Equal(t, corrID, results[0].correlationID)
	require.NoError(t, results[0].err)

	got, _ = s.Get(models.EntityApplication, "app-1")
	assert.False(t, got.UpdatedAt.IsZero())
	assert.Equal(t, 0, s.PendingCount())
}

func TestManager_RejectionRollsBack(t *testing.T) {
	rejection := &api.MutationError{Code: api.ErrorUnauthorized, Message: "not allowed"}
	submitter := &fakeSubmitter{
		respond: func(api.MutationRequest) (*api.MutationResponse, error) {
			return nil, rejection
		},
	}
	m, s, recorder := newTestManager(t, submitter)
	seedApplication(t, s)

	_, err := m.Update(models.EntityApplication, "app-1", map[string]any{"status": "submitted"})
	require.NoError(t, err)

	m.Wait()

	got, _ := s.Get(models.EntityApplication, "app-1")
	assert.Equal(t, "draft", got.Fields["status"], "rejection restores the pre-mutation state")

	results := recorder.get()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].err, rejection)
}

func TestManager_CreateSwapsPlaceholderForServerID(t *testing.T) {
	submitter := &fakeSubmitter{
		respond: func(req api.MutationRequest) (*api.MutationResponse, error) {
			return &api.MutationResponse{
				Entity: &api.Entity{
					ID:        "app-server-1",
					Type:      req.EntityType,
					Fields:    req.Fields,
					UpdatedAt: time.Now().UTC(),
				},
				CorrelationID: req.CorrelationID,
			}, nil
		},
	}
	m, s, _ := newTestManager(t, submitter)

	corrID, err := m.Create(models.EntityApplication, map[string]any{"status": "draft"})
	require.NoError(t, err)

	_, ok := s.Get(models.EntityApplication, corrID)
	assert.True(t, ok, "placeholder visible while in flight")

	m.Wait()

	_, ok = s.Get(models.EntityApplication, corrID)
	assert.False(t, ok, "placeholder removed on confirmation")

	confirmed, ok := s.Get(models.EntityApplication, "app-server-1")
	require.True(t, ok)
	assert.Equal(t, "draft", confirmed.Fields["status"])
}

func TestManager_DeleteConfirmed(t *testing.T) {
	submitter := &fakeSubmitter{
		respond: func(req api.MutationRequest) (*api.MutationResponse, error) {
			return &api.MutationResponse{CorrelationID: req.CorrelationID}, nil
		},
	}
	m, s, _ := newTestManager(t, submitter)
	seedApplication(t, s)

	_, err := m.Delete(models.EntityApplication, "app-1")
	require.NoError(t, err)

	_, ok := s.Get(models.EntityApplication, "app-1")
	assert.False(t, ok, "optimistic delete hides the entity immediately")

	m.Wait()

	_, ok = s.Get(models.EntityApplication, "app-1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.PendingCount())
}

func TestManager_SameEntitySerialized(t *testing.T) {
	submitter := &fakeSubmitter{delay: 20 * time.Millisecond}
	m, s, _ := newTestManager(t, submitter)
	seedApplication(t, s)

	_, err := m.Update(models.EntityApplication, "app-1", map[string]any{"status": "submitted"})
	require.NoError(t, err)
	_, err = m.Update(models.EntityApplication, "app-1", map[string]any{"notes": "updated"})
	require.NoError(t, err)

	m.Wait()

	require.Len(t, submitter.requests, 2)
	assert.Equal(t, map[string]any{"status": "submitted"}, submitter.requests[0].Fields, "first in, first out")
	assert.Equal(t, map[string]any{"notes": "updated"}, submitter.requests[1].Fields)
}

func TestManager_CancelBeforeFlight(t *testing.T) {
	submitter := &fakeSubmitter{delay: 50 * time.Millisecond}
	m, s, recorder := newTestManager(t, submitter)
	seedApplication(t, s)

	// The first update occupies the lane; the second is still queued and
	// can be cancelled.
	_, err := m.Update(models.EntityApplication, "app-1", map[string]any{"status": "submitted"})
	require.NoError(t, err)
	second, err := m.Update(models.EntityApplication, "app-1", map[string]any{"status": "accepted"})
	require.NoError(t, err)

	assert.True(t, m.Cancel(second))
	assert.False(t, m.Cancel(second), "double cancel is a no-op")

	m.Wait()

	require.Len(t, submitter.requests, 1, "cancelled mutation never reaches the server")

	var cancelledResult *result
	for _, r := range recorder.get() {
		if r.correlationID == second {
			cancelledResult = &r
			break
		}
	}
	require.NotNil(t, cancelledResult)
	assert.ErrorIs(t, cancelledResult.err, ErrCancelled)
}

func TestManager_StalenessRollback(t *testing.T) {
	submitter := &fakeSubmitter{delay: time.Hour}
	m, s, recorder := newTestManager(t, submitter)
	m.staleness = 30 * time.Millisecond
	seedApplication(t, s)

	_, err := m.Update(models.EntityApplication, "app-1", map[string]any{"status": "submitted"})
	require.NoError(t, err)

	m.Wait()

	got, _ := s.Get(models.EntityApplication, "app-1")
	assert.Equal(t, "draft", got.Fields["status"], "stale mutation rolled back")

	results := recorder.get()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].err, context.DeadlineExceeded)
}

func TestManager_StalenessCountsQueueTime(t *testing.T) {
	submitter := &fakeSubmitter{delay: 60 * time.Millisecond}
	m, s, recorder := newTestManager(t, submitter)
	m.staleness = 40 * time.Millisecond
	seedApplication(t, s)

	// The first mutation holds the lane past the second one's staleness
	// bound; the second must expire from its submission time, without ever
	// reaching the server.
	first, err := m.Update(models.EntityApplication, "app-1", map[string]any{"status": "submitted"})
	require.NoError(t, err)
	second, err := m.Update(models.EntityApplication, "app-1", map[string]any{"notes": "late"})
	require.NoError(t, err)

	m.Wait()

	var firstErr, secondErr error
	for _, r := range recorder.get() {
		switch r.correlationID {
		case first:
			firstErr = r.err
		case second:
			secondErr = r.err
		}
	}
	assert.ErrorIs(t, firstErr, context.DeadlineExceeded)
	assert.ErrorIs(t, secondErr, context.DeadlineExceeded)

	submitter.mu.Lock()
	assert.Equal(t, 1, submitter.calls, "an already-stale mutation is not submitted")
	submitter.mu.Unlock()

	assert.Equal(t, 0, s.PendingCount())
}

func TestManager_UpdateEntityWithNilFields(t *testing.T) {
	submitter := &fakeSubmitter{}
	m, s, _ := newTestManager(t, submitter)

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.ApplySnapshot(map[models.EntityType][]*models.Entity{
		models.EntityApplication: {
			{ID: "app-1", Type: models.EntityApplication, UpdatedAt: base},
		},
	}, base))

	_, err := m.Update(models.EntityApplication, "app-1", map[string]any{"status": "submitted"})
	require.NoError(t, err)

	got, _ := s.Get(models.EntityApplication, "app-1")
	assert.Equal(t, "submitted", got.Fields["status"], "overlay works on an entity without fields")

	m.Wait()
	assert.Equal(t, 0, s.PendingCount())
}

func TestManager_UnknownEntityRejected(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeSubmitter{})

	_, err := m.Update(models.EntityApplication, "missing", map[string]any{"status": "x"})
	assert.Error(t, err)

	_, err = m.Delete(models.EntityApplication, "missing")
	assert.Error(t, err)
}
