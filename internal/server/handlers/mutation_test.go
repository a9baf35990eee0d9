package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internhub/internhub/internal/clock"
	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/internal/server/storage"
	"github.com/internhub/internhub/pkg/api"
)

type dispatchCall struct {
	before *models.Entity
	after  *models.Entity
	op     models.Operation
}

type dispatchRecorder struct {
	calls []dispatchCall
}

func (d *dispatchRecorder) Dispatch(op models.Operation, before, after *models.Entity) {
	d.calls = append(d.calls, dispatchCall{op: op, before: before, after: after})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func systemAdmin() models.Principal {
	return models.Principal{UserID: "admin-1", Role: models.RoleSystemAdmin}
}

func doMutation(t *testing.T, h *MutationHandler, principal *models.Principal, req api.MutationRequest) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/mutations", bytes.NewReader(body))
	if principal != nil {
		r = r.WithContext(WithPrincipal(r.Context(), *principal))
	}

	w := httptest.NewRecorder()
	h.Mutate(w, r)
	return w
}

func decodeMutationError(t *testing.T, w *httptest.ResponseRecorder) api.MutationError {
	t.Helper()

	var mutErr api.MutationError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mutErr))
	return mutErr
}

func TestMutationHandler_CreateStampsAndDispatches(t *testing.T) {
	var saved *models.Entity
	store := &storage.EntityStoreMock{
		GetEntityFunc: func(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
			return nil, storage.ErrEntityNotFound
		},
		SaveEntityFunc: func(ctx context.Context, entity *models.Entity) error {
			saved = entity
			return nil
		},
	}
	dispatcher := &dispatchRecorder{}
	h := NewMutationHandler(store, clock.New(), dispatcher, testLogger())

	principal := systemAdmin()
	w := doMutation(t, h, &principal, api.MutationRequest{
		Operation:     api.OperationCreate,
		EntityType:    "application",
		Fields:        map[string]any{"student_id": "stu-1", "status": "draft"},
		CorrelationID: "corr-1",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp api.MutationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Entity)
	assert.Equal(t, "corr-1", resp.CorrelationID)
	assert.NotEmpty(t, resp.Entity.ID, "server assigns the entity id")
	assert.False(t, resp.Entity.UpdatedAt.IsZero(), "commit is stamped")

	require.NotNil(t, saved)
	assert.Equal(t, "stu-1", saved.StudentID())

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, models.OperationCreate, dispatcher.calls[0].op)
	assert.Nil(t, dispatcher.calls[0].before)
	assert.Equal(t, saved, dispatcher.calls[0].after)
}

func TestMutationHandler_CreateExistingIDConflicts(t *testing.T) {
	store := &storage.EntityStoreMock{
		GetEntityFunc: func(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
			return &models.Entity{ID: id, Type: entityType}, nil
		},
	}
	dispatcher := &dispatchRecorder{}
	h := NewMutationHandler(store, clock.New(), dispatcher, testLogger())

	principal := systemAdmin()
	w := doMutation(t, h, &principal, api.MutationRequest{
		Operation:  api.OperationCreate,
		EntityType: "course",
		EntityID:   "course-1",
		Fields:     map[string]any{"title": "Databases"},
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, api.ErrorConflict, decodeMutationError(t, w).Code)
	assert.Empty(t, dispatcher.calls)
}

func TestMutationHandler_UpdateMergesAndAdvancesTimestamp(t *testing.T) {
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	existing := &models.Entity{
		ID:   "app-1",
		Type: models.EntityApplication,
		Fields: map[string]any{
			"student_id": "stu-1",
			"status":     "draft",
			"notes":      "first pass",
		},
		UpdatedAt: base,
	}

	var saved *models.Entity
	store := &storage.EntityStoreMock{
		GetEntityFunc: func(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
			return existing.Clone(), nil
		},
		SaveEntityFunc: func(ctx context.Context, entity *models.Entity) error {
			saved = entity
			return nil
		},
	}
	dispatcher := &dispatchRecorder{}
	h := NewMutationHandler(store, clock.New(), dispatcher, testLogger())

	student := models.Principal{UserID: "stu-1", Role: models.RoleStudent}
	w := doMutation(t, h, &student, api.MutationRequest{
		Operation:  api.OperationUpdate,
		EntityType: "application",
		EntityID:   "app-1",
		Fields:     map[string]any{"status": "submitted"},
	})

	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, saved)
	assert.Equal(t, "submitted", saved.Fields["status"], "requested field replaced")
	assert.Equal(t, "first pass", saved.Fields["notes"], "untouched fields survive")
	assert.True(t, saved.UpdatedAt.After(base), "timestamp advances on every write")

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, models.OperationUpdate, dispatcher.calls[0].op)
	assert.Equal(t, base, dispatcher.calls[0].before.UpdatedAt)
	assert.Equal(t, saved, dispatcher.calls[0].after)
}

func TestMutationHandler_UpdateForeignApplicationDenied(t *testing.T) {
	store := &storage.EntityStoreMock{
		GetEntityFunc: func(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
			return &models.Entity{
				ID:     id,
				Type:   models.EntityApplication,
				Fields: map[string]any{"student_id": "stu-other"},
			}, nil
		},
	}
	dispatcher := &dispatchRecorder{}
	h := NewMutationHandler(store, clock.New(), dispatcher, testLogger())

	student := models.Principal{UserID: "stu-1", Role: models.RoleStudent}
	w := doMutation(t, h, &student, api.MutationRequest{
		Operation:  api.OperationUpdate,
		EntityType: "application",
		EntityID:   "app-9",
		Fields:     map[string]any{"status": "accepted"},
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, api.ErrorUnauthorized, decodeMutationError(t, w).Code)
	assert.Empty(t, dispatcher.calls, "denied mutations never dispatch")
}

func TestMutationHandler_UpdateCannotMoveEntityOutOfScope(t *testing.T) {
	store := &storage.EntityStoreMock{
		GetEntityFunc: func(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
			return &models.Entity{
				ID:     id,
				Type:   models.EntityCourse,
				Fields: map[string]any{"department_id": "dept-1"},
			}, nil
		},
	}
	h := NewMutationHandler(store, clock.New(), &dispatchRecorder{}, testLogger())

	supervisor := models.Principal{UserID: "sup-1", Role: models.RoleSupervisor, DepartmentID: "dept-1"}
	w := doMutation(t, h, &supervisor, api.MutationRequest{
		Operation:  api.OperationUpdate,
		EntityType: "course",
		EntityID:   "course-1",
		Fields:     map[string]any{"department_id": "dept-2"},
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMutationHandler_DeleteDispatchesTombstone(t *testing.T) {
	existing := &models.Entity{
		ID:        "app-1",
		Type:      models.EntityApplication,
		Fields:    map[string]any{"student_id": "stu-1", "department_id": "dept-1"},
		UpdatedAt: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	}

	var deletedAt time.Time
	store := &storage.EntityStoreMock{
		GetEntityFunc: func(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
			return existing.Clone(), nil
		},
		DeleteEntityFunc: func(ctx context.Context, entityType models.EntityType, id string, at time.Time) error {
			deletedAt = at
			return nil
		},
	}
	dispatcher := &dispatchRecorder{}
	h := NewMutationHandler(store, clock.New(), dispatcher, testLogger())

	principal := systemAdmin()
	w := doMutation(t, h, &principal, api.MutationRequest{
		Operation:  api.OperationDelete,
		EntityType: "application",
		EntityID:   "app-1",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp api.MutationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Entity, "deletions return no entity")

	require.Len(t, dispatcher.calls, 1)
	call := dispatcher.calls[0]
	assert.Equal(t, models.OperationDelete, call.op)
	assert.Nil(t, call.after)
	require.NotNil(t, call.before)
	assert.True(t, call.before.Deleted)
	assert.Equal(t, deletedAt, call.before.UpdatedAt, "tombstone carries the deletion stamp")
	assert.Equal(t, "stu-1", call.before.StudentID(), "ownership fields survive for group addressing")
}

func TestMutationHandler_DeleteMissingEntity(t *testing.T) {
	store := &storage.EntityStoreMock{
		GetEntityFunc: func(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
			return nil, storage.ErrEntityNotFound
		},
	}
	h := NewMutationHandler(store, clock.New(), &dispatchRecorder{}, testLogger())

	principal := systemAdmin()
	w := doMutation(t, h, &principal, api.MutationRequest{
		Operation:  api.OperationDelete,
		EntityType: "application",
		EntityID:   "app-missing",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.ErrorNotFound, decodeMutationError(t, w).Code)
}

func TestMutationHandler_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  api.MutationRequest
	}{
		{
			name: "unknown operation",
			req:  api.MutationRequest{Operation: "upsert", EntityType: "course", EntityID: "c1", Fields: map[string]any{"a": 1}},
		},
		{
			name: "unknown entity type",
			req:  api.MutationRequest{Operation: api.OperationCreate, EntityType: "grade", Fields: map[string]any{"a": 1}},
		},
		{
			name: "update without entity id",
			req:  api.MutationRequest{Operation: api.OperationUpdate, EntityType: "course", Fields: map[string]any{"a": 1}},
		},
		{
			name: "create without fields",
			req:  api.MutationRequest{Operation: api.OperationCreate, EntityType: "course"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &dispatchRecorder{}
			h := NewMutationHandler(&storage.EntityStoreMock{}, clock.New(), dispatcher, testLogger())

			principal := systemAdmin()
			w := doMutation(t, h, &principal, tt.req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, api.ErrorValidation, decodeMutationError(t, w).Code)
			assert.Empty(t, dispatcher.calls)
		})
	}
}

func TestMutationHandler_NoPrincipal(t *testing.T) {
	h := NewMutationHandler(&storage.EntityStoreMock{}, clock.New(), &dispatchRecorder{}, testLogger())

	w := doMutation(t, h, nil, api.MutationRequest{
		Operation:  api.OperationCreate,
		EntityType: "course",
		Fields:     map[string]any{"title": "x"},
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
