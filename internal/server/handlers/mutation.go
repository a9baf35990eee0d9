package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/internal/server/scope"
	"github.com/internhub/internhub/internal/server/storage"
	"github.com/internhub/internhub/internal/wire"
	"github.com/internhub/internhub/pkg/api"
)

// Dispatcher publishes committed mutations to live connections. The handler
// calls it strictly after the store write succeeds.
type Dispatcher interface {
	Dispatch(op models.Operation, before, after *models.Entity)
}

// MutationClock stamps committed mutations with strictly increasing
// timestamps.
type MutationClock interface {
	Next() time.Time
}

// MutationHandler serves POST /api/v1/mutations: the single write path of
// the system. Every accepted mutation is stamped, persisted, and then
// dispatched to subscribers; rejections come back as typed MutationErrors
// so clients can tell a final rejection from a transient failure.
type MutationHandler struct {
	store      storage.EntityStore
	clock      MutationClock
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewMutationHandler creates a mutation handler.
func NewMutationHandler(store storage.EntityStore, clk MutationClock, dispatcher Dispatcher, logger *slog.Logger) *MutationHandler {
	return &MutationHandler{
		store:      store,
		clock:      clk,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Mutate handles POST /api/v1/mutations.
func (h *MutationHandler) Mutate(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.MutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, req.CorrelationID, &api.MutationError{
			Code:    api.ErrorValidation,
			Message: "invalid request body",
		})
		return
	}

	if mutErr := validateRequest(req); mutErr != nil {
		h.writeError(w, req.CorrelationID, mutErr)
		return
	}

	entity, mutErr := h.apply(r.Context(), principal, req)
	if mutErr != nil {
		h.logger.Warn("mutation rejected",
			"code", mutErr.Code,
			"operation", req.Operation,
			"entity_type", req.EntityType,
			"entity_id", req.EntityID,
			"user_id", principal.UserID)
		h.writeError(w, req.CorrelationID, mutErr)
		return
	}

	response := api.MutationResponse{
		CorrelationID: req.CorrelationID,
	}
	if entity != nil {
		wireEntity := wire.Entity(entity)
		response.Entity = &wireEntity
	}

	writeJSON(w, h.logger, http.StatusOK, response)
}

func validateRequest(req api.MutationRequest) *api.MutationError {
	switch req.Operation {
	case api.OperationCreate, api.OperationUpdate, api.OperationDelete:
	default:
		return &api.MutationError{
			Code:    api.ErrorValidation,
			Message: fmt.Sprintf("unknown operation %q", req.Operation),
		}
	}

	if !knownEntityType(models.EntityType(req.EntityType)) {
		return &api.MutationError{
			Code:    api.ErrorValidation,
			Message: fmt.Sprintf("unknown entity type %q", req.EntityType),
		}
	}

	if req.Operation != api.OperationCreate && req.EntityID == "" {
		return &api.MutationError{
			Code:    api.ErrorValidation,
			Message: "entity_id is required",
		}
	}

	if req.Operation != api.OperationDelete && len(req.Fields) == 0 {
		return &api.MutationError{
			Code:    api.ErrorValidation,
			Message: "fields are required",
		}
	}

	return nil
}

func (h *MutationHandler) apply(ctx context.Context, principal models.Principal, req api.MutationRequest) (*models.Entity, *api.MutationError) {
	entityType := models.EntityType(req.EntityType)

	switch req.Operation {
	case api.OperationCreate:
		return h.applyCreate(ctx, principal, entityType, req)
	case api.OperationUpdate:
		return h.applyUpdate(ctx, principal, entityType, req)
	case api.OperationDelete:
		return h.applyDelete(ctx, principal, entityType, req.EntityID)
	default:
		return nil, &api.MutationError{Code: api.ErrorValidation, Message: "unknown operation"}
	}
}

func (h *MutationHandler) applyCreate(ctx context.Context, principal models.Principal, entityType models.EntityType, req api.MutationRequest) (*models.Entity, *api.MutationError) {
	id := req.EntityID
	if id == "" {
		id = uuid.New().String()
	}

	if _, err := h.store.GetEntity(ctx, entityType, id); err == nil {
		return nil, &api.MutationError{
			Code:    api.ErrorConflict,
			Message: fmt.Sprintf("%s %s already exists", entityType, id),
		}
	} else if !errors.Is(err, storage.ErrEntityNotFound) {
		return nil, h.internalError(err)
	}

	entity := wire.Model(api.Entity{
		ID:     id,
		Type:   string(entityType),
		Fields: req.Fields,
	})

	if !scope.WriteAllowed(principal, models.OperationCreate, entity) {
		return nil, unauthorizedError(models.OperationCreate, entityType, id)
	}

	entity.UpdatedAt = h.clock.Next()

	if err := h.store.SaveEntity(ctx, entity); err != nil {
		return nil, h.internalError(err)
	}

	h.dispatcher.Dispatch(models.OperationCreate, nil, entity)

	return entity, nil
}

func (h *MutationHandler) applyUpdate(ctx context.Context, principal models.Principal, entityType models.EntityType, req api.MutationRequest) (*models.Entity, *api.MutationError) {
	before, err := h.store.GetEntity(ctx, entityType, req.EntityID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil, notFoundError(entityType, req.EntityID)
		}
		return nil, h.internalError(err)
	}

	after := before.Clone()
	for key, value := range req.Fields {
		after.Fields[key] = value
	}

	// Checked against both states so a principal can neither touch an
	// entity it does not own nor move one out of its own scope.
	if !scope.WriteAllowed(principal, models.OperationUpdate, before) ||
		!scope.WriteAllowed(principal, models.OperationUpdate, after) {
		return nil, unauthorizedError(models.OperationUpdate, entityType, req.EntityID)
	}

	after.UpdatedAt = h.clock.Next()

	if err := h.store.SaveEntity(ctx, after); err != nil {
		return nil, h.internalError(err)
	}

	h.dispatcher.Dispatch(models.OperationUpdate, before, after)

	return after, nil
}

func (h *MutationHandler) applyDelete(ctx context.Context, principal models.Principal, entityType models.EntityType, id string) (*models.Entity, *api.MutationError) {
	before, err := h.store.GetEntity(ctx, entityType, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil, notFoundError(entityType, id)
		}
		return nil, h.internalError(err)
	}

	if !scope.WriteAllowed(principal, models.OperationDelete, before) {
		return nil, unauthorizedError(models.OperationDelete, entityType, id)
	}

	stamp := h.clock.Next()

	if err := h.store.DeleteEntity(ctx, entityType, id, stamp); err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil, notFoundError(entityType, id)
		}
		return nil, h.internalError(err)
	}

	tombstone := before.Clone()
	tombstone.UpdatedAt = stamp
	tombstone.Deleted = true

	h.dispatcher.Dispatch(models.OperationDelete, tombstone, nil)

	return nil, nil
}

func (h *MutationHandler) writeError(w http.ResponseWriter, correlationID string, mutErr *api.MutationError) {
	status := http.StatusInternalServerError
	switch mutErr.Code {
	case api.ErrorUnauthorized:
		status = http.StatusForbidden
	case api.ErrorNotFound:
		status = http.StatusNotFound
	case api.ErrorValidation:
		status = http.StatusBadRequest
	case api.ErrorConflict:
		status = http.StatusConflict
	}

	writeJSON(w, h.logger, status, struct {
		*api.MutationError
		CorrelationID string `json:"correlation_id,omitempty"`
	}{mutErr, correlationID})
}

func (h *MutationHandler) internalError(err error) *api.MutationError {
	h.logger.Error("mutation storage failure", "error", err)
	return &api.MutationError{
		Code:    api.ErrorInternal,
		Message: "internal error",
	}
}

func unauthorizedError(op models.Operation, entityType models.EntityType, id string) *api.MutationError {
	return &api.MutationError{
		Code:    api.ErrorUnauthorized,
		Message: fmt.Sprintf("%s %s %s not allowed", op, entityType, id),
	}
}

func notFoundError(entityType models.EntityType, id string) *api.MutationError {
	return &api.MutationError{
		Code:    api.ErrorNotFound,
		Message: fmt.Sprintf("%s %s not found", entityType, id),
	}
}

func knownEntityType(entityType models.EntityType) bool {
	for _, known := range models.KnownEntityTypes() {
		if known == entityType {
			return true
		}
	}
	return false
}
