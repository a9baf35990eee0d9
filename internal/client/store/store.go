// Package store is the client-side cache of server entities. It is a
// reducer: every input — snapshots, live envelopes, optimistic overlays,
// confirmations, rollbacks — becomes a transition applied by a single
// writer goroutine, so no interleaving of sources can corrupt the state.
// Reads are concurrent and always return clones.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/pkg/api"
)

// ErrStoreClosed is returned for transitions submitted after Close.
var ErrStoreClosed = errors.New("store is closed")

// pendingState remembers what an entity looked like before an optimistic
// overlay, keyed by correlation id. prior == nil means the entity did not
// exist (optimistic create).
type pendingState struct {
	prior      *models.Entity
	entityType models.EntityType
	entityID   string
}

type transition struct {
	fn   func()
	done chan struct{}
}

// Store holds the reconciled client state.
type Store struct {
	resolver *Resolver
	logger   *slog.Logger

	mu          sync.RWMutex
	collections map[models.EntityType]map[string]*models.Entity
	lastSync    map[models.EntityType]time.Time
	pending     map[string]pendingState

	applyCh   chan transition
	quit      chan struct{}
	closeOnce sync.Once
}

// New creates a store and starts its writer goroutine.
func New(resolver *Resolver, logger *slog.Logger) *Store {
	s := &Store{
		resolver:    resolver,
		logger:      logger,
		collections: make(map[models.EntityType]map[string]*models.Entity),
		lastSync:    make(map[models.EntityType]time.Time),
		pending:     make(map[string]pendingState),
		applyCh:     make(chan transition),
		quit:        make(chan struct{}),
	}

	go s.run()

	return s
}

// Close stops the writer goroutine. Pending transitions already submitted
// complete first.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
}

func (s *Store) run() {
	for {
		select {
		case t := <-s.applyCh:
			s.mu.Lock()
			t.fn()
			s.mu.Unlock()
			close(t.done)
		case <-s.quit:
			return
		}
	}
}

// apply submits a transition and waits for the writer to execute it.
func (s *Store) apply(fn func()) error {
	t := transition{fn: fn, done: make(chan struct{})}

	select {
	case s.applyCh <- t:
	case <-s.quit:
		return ErrStoreClosed
	}

	<-t.done
	return nil
}

// ApplySnapshot replaces the cached state with a full snapshot. Optimistic
// overlays are discarded: a snapshot is only taken on (re)connect, and
// unconfirmed local work is owned by the offline queue, which re-submits it.
func (s *Store) ApplySnapshot(collections map[models.EntityType][]*models.Entity, serverTime time.Time) error {
	return s.apply(func() {
		s.collections = make(map[models.EntityType]map[string]*models.Entity, len(collections))
		s.pending = make(map[string]pendingState)

		for entityType, entities := range collections {
			byID := make(map[string]*models.Entity, len(entities))
			for _, e := range entities {
				byID[e.ID] = e.Clone()
			}
			s.collections[entityType] = byID
			s.lastSync[entityType] = serverTime
		}

		s.logger.Debug("snapshot applied", "collections", len(collections), "server_time", serverTime)
	})
}

// ApplyIncremental reconciles a catch-up batch for one entity type.
// Tombstones in the batch remove cached entities.
func (s *Store) ApplyIncremental(entityType models.EntityType, entities []*models.Entity, serverTime time.Time) error {
	return s.apply(func() {
		for _, e := range entities {
			if e.Deleted {
				s.removeLocked(entityType, e.ID, e.UpdatedAt)
				continue
			}
			s.reconcileLocked(e)
		}

		if serverTime.After(s.lastSync[entityType]) {
			s.lastSync[entityType] = serverTime
		}
	})
}

// ApplyEnvelope reconciles one live envelope. Unknown envelope kinds are
// ignored.
func (s *Store) ApplyEnvelope(env *api.Envelope) error {
	switch env.Type {
	case api.MessageEntityCreated, api.MessageEntityUpdated:
		var wireEntity api.Entity
		if err := json.Unmarshal(env.Data, &wireEntity); err != nil {
			return fmt.Errorf("failed to decode entity payload: %w", err)
		}

		entity := &models.Entity{
			ID:        wireEntity.ID,
			Type:      models.EntityType(wireEntity.Type),
			Fields:    wireEntity.Fields,
			UpdatedAt: wireEntity.UpdatedAt,
			Deleted:   wireEntity.Deleted,
		}

		return s.apply(func() {
			s.reconcileLocked(entity)
			s.advanceLastSyncLocked(entity.Type, env.Timestamp)
		})

	case api.MessageEntityDeleted:
		entityType := models.EntityType(env.EntityType)
		return s.apply(func() {
			s.removeLocked(entityType, env.EntityID, env.Timestamp)
			s.advanceLastSyncLocked(entityType, env.Timestamp)
		})

	default:
		return nil
	}
}

// ApplyOptimistic overlays a speculative entity, remembering the prior state
// under the correlation id so the overlay can be rolled back.
func (s *Store) ApplyOptimistic(correlationID string, entity *models.Entity) error {
	return s.apply(func() {
		prior := s.getLocked(entity.Type, entity.ID)
		s.pending[correlationID] = pendingState{
			prior:      prior,
			entityType: entity.Type,
			entityID:   entity.ID,
		}

		if entity.Deleted {
			s.deleteLocked(entity.Type, entity.ID)
			return
		}
		s.putLocked(entity.Clone())
	})
}

// ApplyConfirmed replaces a speculative overlay with the canonical server
// entity and forgets the rollback snapshot. entity is nil for confirmed
// deletions.
func (s *Store) ApplyConfirmed(correlationID string, entity *models.Entity) error {
	return s.apply(func() {
		state, ok := s.pending[correlationID]
		delete(s.pending, correlationID)

		if entity != nil {
			// A confirmed create may carry a server-assigned id; drop the
			// local placeholder so the entity does not appear twice.
			if ok && state.entityID != entity.ID {
				s.deleteLocked(state.entityType, state.entityID)
			}
			s.putLocked(entity.Clone())
			return
		}
		if ok {
			s.deleteLocked(state.entityType, state.entityID)
		}
	})
}

// ApplyRollback restores the pre-overlay state for a failed or cancelled
// mutation. This is the one transition allowed to move an entity's
// updated_at backwards.
func (s *Store) ApplyRollback(correlationID string) error {
	return s.apply(func() {
		state, ok := s.pending[correlationID]
		if !ok {
			return
		}
		delete(s.pending, correlationID)

		if state.prior == nil {
			s.deleteLocked(state.entityType, state.entityID)
			return
		}
		s.putLocked(state.prior)
	})
}

// Get returns a clone of a cached entity.
func (s *Store) Get(entityType models.EntityType, id string) (*models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.getLocked(entityType, id)
	if e == nil {
		return nil, false
	}
	return e, true
}

// List returns clones of all cached entities of a type, ordered by id.
func (s *Store) List(entityType models.EntityType) []*models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.collections[entityType]
	out := make([]*models.Entity, 0, len(byID))
	for _, e := range byID {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LastSync returns the incremental sync cursor for an entity type.
func (s *Store) LastSync(entityType models.EntityType) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSync[entityType]
}

// PendingCount reports how many optimistic overlays are unresolved.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.pending)
}

// reconcileLocked merges an incoming server entity into the cache. The
// resolver only runs while an optimistic overlay for the same entity is in
// flight; without one the server copy is taken verbatim, and a stale or
// duplicate envelope (delivery is at-least-once) is dropped outright so it
// cannot regress fields the merge whitelist would not protect.
func (s *Store) reconcileLocked(incoming *models.Entity) {
	local := s.getLocked(incoming.Type, incoming.ID)

	if !s.hasPendingLocked(incoming.Type, incoming.ID) {
		if local != nil && !incoming.UpdatedAt.After(local.UpdatedAt) {
			return
		}
		s.putLocked(incoming.Clone())
		return
	}

	s.putLocked(s.resolver.Resolve(local, incoming))
}

func (s *Store) hasPendingLocked(entityType models.EntityType, id string) bool {
	for _, state := range s.pending {
		if state.entityType == entityType && state.entityID == id {
			return true
		}
	}
	return false
}

// removeLocked drops an entity unless the cached copy is newer than the
// deletion, which happens when a stale tombstone arrives after a re-create.
func (s *Store) removeLocked(entityType models.EntityType, id string, at time.Time) {
	if existing := s.getLocked(entityType, id); existing != nil && existing.UpdatedAt.After(at) {
		return
	}
	s.deleteLocked(entityType, id)
}

func (s *Store) advanceLastSyncLocked(entityType models.EntityType, t time.Time) {
	if t.After(s.lastSync[entityType]) {
		s.lastSync[entityType] = t
	}
}

func (s *Store) getLocked(entityType models.EntityType, id string) *models.Entity {
	if byID, ok := s.collections[entityType]; ok {
		return byID[id].Clone()
	}
	return nil
}

func (s *Store) putLocked(e *models.Entity) {
	byID, ok := s.collections[e.Type]
	if !ok {
		byID = make(map[string]*models.Entity)
		s.collections[e.Type] = byID
	}
	byID[e.ID] = e
}

func (s *Store) deleteLocked(entityType models.EntityType, id string) {
	if byID, ok := s.collections[entityType]; ok {
		delete(byID, id)
	}
}
