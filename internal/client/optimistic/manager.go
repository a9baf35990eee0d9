// Package optimistic applies local mutations speculatively and reconciles
// them with the server's verdict. Each mutation gets a correlation id,
// deliberately distinct from the entity id: a create does not know its
// canonical id until the server confirms it.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/pkg/api"
)

// StalenessTimeout bounds how long a speculative overlay may wait for a
// server verdict. A mutation still unresolved after this is rolled back so
// the cache cannot diverge indefinitely.
const StalenessTimeout = 5 * time.Minute

// ErrCancelled is reported for mutations cancelled before submission.
var ErrCancelled = errors.New("mutation cancelled")

// Store is the slice of the client store the manager drives.
type Store interface {
	Get(entityType models.EntityType, id string) (*models.Entity, bool)
	ApplyOptimistic(correlationID string, entity *models.Entity) error
	ApplyConfirmed(correlationID string, entity *models.Entity) error
	ApplyRollback(correlationID string) error
}

// Submitter sends a mutation to the server. Implemented by the REST client.
type Submitter interface {
	Mutate(ctx context.Context, req api.MutationRequest) (*api.MutationResponse, error)
}

// ResultFunc is called once per submitted mutation with the final outcome:
// nil on confirmation, the rejection or transport error otherwise.
type ResultFunc func(correlationID string, err error)

type laneKey struct {
	entityType models.EntityType
	entityID   string
}

type job struct {
	req           api.MutationRequest
	correlationID string
	enqueuedAt    time.Time
	cancelled     bool
}

// Manager owns the speculative mutation lifecycle. Mutations against the
// same entity are serialized in submission order; mutations against
// different entities proceed concurrently.
type Manager struct {
	store     Store
	submitter Submitter
	logger    *slog.Logger
	onResult  ResultFunc
	staleness time.Duration

	mu    sync.Mutex
	lanes map[laneKey][]*job
	byID  map[string]*job

	wg sync.WaitGroup
}

// New creates a manager. onResult may be nil.
func New(store Store, submitter Submitter, onResult ResultFunc, logger *slog.Logger) *Manager {
	return &Manager{
		store:     store,
		submitter: submitter,
		logger:    logger,
		onResult:  onResult,
		staleness: StalenessTimeout,
		lanes:     make(map[laneKey][]*job),
		byID:      make(map[string]*job),
	}
}

// Wait blocks until every submitted mutation has been resolved. Used on
// shutdown and in tests.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Update applies a speculative field update and submits it. The returned
// correlation id identifies the mutation for Cancel and the result callback.
func (m *Manager) Update(entityType models.EntityType, entityID string, fields map[string]any) (string, error) {
	local, ok := m.store.Get(entityType, entityID)
	if !ok {
		return "", fmt.Errorf("cannot update unknown entity %s/%s", entityType, entityID)
	}

	speculative := local.Clone()
	if speculative.Fields == nil {
		speculative.Fields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		speculative.Fields[k] = v
	}

	return m.submit(speculative, api.MutationRequest{
		Operation:  api.OperationUpdate,
		EntityType: string(entityType),
		EntityID:   entityID,
		Fields:     fields,
	})
}

// Create applies a speculative create under a placeholder id (the
// correlation id). The canonical id arrives with the confirmation and the
// placeholder is swapped out.
func (m *Manager) Create(entityType models.EntityType, fields map[string]any) (string, error) {
	correlationID := uuid.New().String()

	speculative := &models.Entity{
		ID:     correlationID,
		Type:   entityType,
		Fields: fields,
	}

	return m.submitWithID(correlationID, speculative, api.MutationRequest{
		Operation:  api.OperationCreate,
		EntityType: string(entityType),
		Fields:     fields,
	})
}

// Delete applies a speculative delete and submits it.
func (m *Manager) Delete(entityType models.EntityType, entityID string) (string, error) {
	local, ok := m.store.Get(entityType, entityID)
	if !ok {
		return "", fmt.Errorf("cannot delete unknown entity %s/%s", entityType, entityID)
	}

	speculative := local.Clone()
	speculative.Deleted = true

	return m.submit(speculative, api.MutationRequest{
		Operation:  api.OperationDelete,
		EntityType: string(entityType),
		EntityID:   entityID,
	})
}

// Cancel aborts a mutation that has not reached the server yet. It reports
// whether the cancellation took effect; once the remote call has started the
// mutation can only be resolved by the server's verdict.
func (m *Manager) Cancel(correlationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.byID[correlationID]
	if !ok || j.cancelled {
		return false
	}
	j.cancelled = true
	return true
}

func (m *Manager) submit(speculative *models.Entity, req api.MutationRequest) (string, error) {
	return m.submitWithID(uuid.New().String(), speculative, req)
}

func (m *Manager) submitWithID(correlationID string, speculative *models.Entity, req api.MutationRequest) (string, error) {
	req.CorrelationID = correlationID

	if err := m.store.ApplyOptimistic(correlationID, speculative); err != nil {
		return "", fmt.Errorf("failed to apply optimistic overlay: %w", err)
	}

	key := laneKey{entityType: speculative.Type, entityID: speculative.ID}
	j := &job{correlationID: correlationID, req: req, enqueuedAt: time.Now()}

	m.mu.Lock()
	m.byID[correlationID] = j
	m.lanes[key] = append(m.lanes[key], j)
	startWorker := len(m.lanes[key]) == 1
	m.mu.Unlock()

	if startWorker {
		m.wg.Add(1)
		go m.runLane(key)
	}

	return correlationID, nil
}

// runLane drains one entity's jobs in FIFO order and exits when the lane is
// empty. At most one remote call per entity is in flight at any time.
func (m *Manager) runLane(key laneKey) {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		queue := m.lanes[key]
		if len(queue) == 0 {
			delete(m.lanes, key)
			m.mu.Unlock()
			return
		}
		j := queue[0]
		m.mu.Unlock()

		m.resolve(j)

		m.mu.Lock()
		m.lanes[key] = m.lanes[key][1:]
		delete(m.byID, j.correlationID)
		m.mu.Unlock()
	}
}

func (m *Manager) resolve(j *job) {
	m.mu.Lock()
	cancelled := j.cancelled
	m.mu.Unlock()

	if cancelled {
		m.finish(j.correlationID, ErrCancelled)
		return
	}

	// Staleness counts from submission, not from when the lane got around
	// to this job: time spent queued behind earlier mutations to the same
	// entity is part of the overlay's age.
	deadline := j.enqueuedAt.Add(m.staleness)
	if !time.Now().Before(deadline) {
		m.finish(j.correlationID, context.DeadlineExceeded)
		return
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	resp, err := m.submitter.Mutate(ctx, j.req)
	if err != nil {
		m.finish(j.correlationID, err)
		return
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

	if err := m.store.ApplyConfirmed(j.correlationID, confirmed); err != nil {
		m.logger.Error("failed to confirm mutation", "error", err, "correlation_id", j.correlationID)
	}

	if m.onResult != nil {
		m.onResult(j.correlationID, nil)
	}
}

// finish rolls the overlay back and reports the failure.
func (m *Manager) finish(correlationID string, cause error) {
	if err := m.store.ApplyRollback(correlationID); err != nil {
		m.logger.Error("failed to roll back mutation", "error", err, "correlation_id", correlationID)
	}

	if !errors.Is(cause, ErrCancelled) {
		m.logger.Warn("mutation rolled back", "correlation_id", correlationID, "error", cause)
	}

	if m.onResult != nil {
		m.onResult(correlationID, cause)
	}
}
