// Package sync wires the client pieces into one facade: REST client, state
// store, optimistic manager, offline queue, and realtime session. Callers
// mutate through the facade and it routes between the optimistic path
// (online) and the durable queue (offline).
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	clientapi "github.com/internhub/internhub/internal/client/api"
	"github.com/internhub/internhub/internal/client/optimistic"
	"github.com/internhub/internhub/internal/client/queue"
	"github.com/internhub/internhub/internal/client/realtime"
	"github.com/internhub/internhub/internal/client/store"
	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/pkg/api"
)

// Config holds the client settings.
type Config struct {
	ServerURL string // REST base, e.g. http://host:8080
	WSURL     string // websocket endpoint, e.g. ws://host:8080/ws
	Token     string
	QueuePath string // bolt file for the offline queue
}

// Service is the sync client facade.
type Service struct {
	api     *clientapi.Client
	store   *store.Store
	manager *optimistic.Manager
	queue   *queue.Queue
	session *realtime.Session
	logger  *slog.Logger
}

// New assembles the client. Close releases its resources.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	s := &Service{
		api:    clientapi.NewClient(cfg.ServerURL, cfg.Token),
		store:  store.New(store.NewResolver(), logger),
		logger: logger,
	}

	s.manager = optimistic.New(s.store, s.api, s.onOptimisticResult, logger)

	q, err := queue.New(cfg.QueuePath, s, s.onPermanentFailure, logger)
	if err != nil {
		s.store.Close()
		return nil, fmt.Errorf("failed to open offline queue: %w", err)
	}
	s.queue = q

	s.session = realtime.New(realtime.Config{
		URL:   cfg.WSURL,
		Token: cfg.Token,
	}, s.store, s.queue, logger)

	return s, nil
}

// Run serves the realtime session until ctx is cancelled or the reconnect
// budget runs out.
func (s *Service) Run(ctx context.Context) error {
	return s.session.Run(ctx)
}

// Close flushes nothing and releases resources; queued mutations stay on
// disk for the next run.
func (s *Service) Close() error {
	s.manager.Wait()
	s.store.Close()
	return s.queue.Close()
}

// Store exposes the reconciled entity cache.
func (s *Service) Store() *store.Store {
	return s.store
}

// Status reports the realtime connectivity state.
func (s *Service) Status() realtime.Status {
	return s.session.Status()
}

// Refresh pulls changes for one entity type over REST from the cached
// watermark. When the cursor is behind the server's compaction horizon the
// server demands a resync and Refresh falls back to a full snapshot.
func (s *Service) Refresh(ctx context.Context, entityType models.EntityType) error {
	resp, err := s.api.IncrementalSync(ctx, string(entityType), s.store.LastSync(entityType))
	if err != nil {
		return fmt.Errorf("incremental refresh failed: %w", err)
	}

	if resp.Resync {
		full, err := s.api.InitialSync(ctx)
		if err != nil {
			return fmt.Errorf("full refresh failed: %w", err)
		}

		collections := make(map[models.EntityType][]*models.Entity, len(full.Collections))
		for t, entities := range full.Collections {
			collections[models.EntityType(t)] = toModelEntities(entities)
		}
		return s.store.ApplySnapshot(collections, full.ServerTime)
	}

	return s.store.ApplyIncremental(entityType, toModelEntities(resp.Entities), resp.ServerTime)
}

// Update mutates an entity. Online it goes through the optimistic manager;
// offline it is applied speculatively and queued for replay.
func (s *Service) Update(entityType models.EntityType, entityID string, fields map[string]any) (string, error) {
	if s.online() {
		return s.manager.Update(entityType, entityID, fields)
	}
	return s.enqueueOffline(models.OperationUpdate, entityType, entityID, fields)
}

// Create creates an entity, optimistically when online.
func (s *Service) Create(entityType models.EntityType, fields map[string]any) (string, error) {
	if s.online() {
		return s.manager.Create(entityType, fields)
	}
	return s.enqueueOffline(models.OperationCreate, entityType, "", fields)
}

// Delete removes an entity, optimistically when online.
func (s *Service) Delete(entityType models.EntityType, entityID string) (string, error) {
	if s.online() {
		return s.manager.Delete(entityType, entityID)
	}
	return s.enqueueOffline(models.OperationDelete, entityType, entityID, nil)
}

func (s *Service) online() bool {
	return s.session.Status() == realtime.StatusOnline
}

// enqueueOffline applies the speculative overlay and persists the mutation
// for replay. The overlay is keyed by the queue item's local id so the
// eventual confirmation or permanent failure resolves it.
func (s *Service) enqueueOffline(op models.Operation, entityType models.EntityType, entityID string, fields map[string]any) (string, error) {
	localID := uuid.New().String()

	speculative, err := s.speculativeEntity(op, entityType, entityID, localID, fields)
	if err != nil {
		return "", err
	}

	if err := s.store.ApplyOptimistic(localID, speculative); err != nil {
		return "", fmt.Errorf("failed to apply offline overlay: %w", err)
	}

	if err := s.queue.Enqueue(&models.PendingMutation{
		LocalID:    localID,
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  op,
		Fields:     fields,
	}); err != nil {
		_ = s.store.ApplyRollback(localID)
		return "", fmt.Errorf("failed to enqueue mutation: %w", err)
	}

	return localID, nil
}

func (s *Service) speculativeEntity(op models.Operation, entityType models.EntityType, entityID, localID string, fields map[string]any) (*models.Entity, error) {
	switch op {
	case models.OperationCreate:
		return &models.Entity{ID: localID, Type: entityType, Fields: fields}, nil

	case models.OperationUpdate:
		local, ok := s.store.Get(entityType, entityID)
		if !ok {
			return nil, fmt.Errorf("cannot update unknown entity %s/%s", entityType, entityID)
		}
		if local.Fields == nil {
			local.Fields = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			local.Fields[k] = v
		}
		return local, nil

	case models.OperationDelete:
		local, ok := s.store.Get(entityType, entityID)
		if !ok {
			return nil, fmt.Errorf("cannot delete unknown entity %s/%s", entityType, entityID)
		}
		local.Deleted = true
		return local, nil

	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}

// Send implements queue.Sender: replay one queued mutation against the
// server and resolve its overlay.
func (s *Service) Send(ctx context.Context, m *models.PendingMutation) error {
	resp, err := s.api.Mutate(ctx, api.MutationRequest{
		Operation:     api.Operation(m.Operation),
		EntityType:    string(m.EntityType),
		EntityID:      m.EntityID,
		Fields:        m.Fields,
		CorrelationID: m.LocalID,
	})
	if err != nil {
		return err
	}

	var confirmed *models.Entity
	if resp.Entity != nil {
		confirmed = &models.Entity{
			ID:        resp.Entity.ID,
			Type:      models.EntityType(resp.Entity.Type),
			Fields:    resp.Entity.Fields,
			UpdatedAt: resp.Entity.UpdatedAt,
			Deleted:   resp.Entity.Deleted,
		}
	}

	if err := s.store.ApplyConfirmed(m.LocalID, confirmed); err != nil {
		s.logger.Error("failed to confirm queued mutation", "error", err, "local_id", m.LocalID)
	}

	return nil
}

func toModelEntities(entities []api.Entity) []*models.Entity {
	out := make([]*models.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, &models.Entity{
			ID:        e.ID,
			Type:      models.EntityType(e.Type),
			Fields:    e.Fields,
			UpdatedAt: e.UpdatedAt,
			Deleted:   e.Deleted,
		})
	}
	return out
}

func (s *Service) onOptimisticResult(correlationID string, err error) {
	if err != nil {
		s.logger.Warn("mutation failed", "correlation_id", correlationID, "error", err)
	}
}

// onPermanentFailure rolls back the overlay of a queued mutation the server
// will never accept.
func (s *Service) onPermanentFailure(m *models.PendingMutation, err error) {
	s.logger.Warn("queued mutation dropped",
		"local_id", m.LocalID,
		"operation", m.Operation,
		"entity_type", m.EntityType,
		"error", err)

	if rollbackErr := s.store.ApplyRollback(m.LocalID); rollbackErr != nil {
		s.logger.Error("failed to roll back dropped mutation", "error", rollbackErr, "local_id", m.LocalID)
	}
}
