// Package dispatch turns committed mutations into broadcast envelopes.
// An envelope implies commit: the mutation layer invokes Dispatch strictly
// after the store has durably applied the change, never before.
package dispatch

import (
	"encoding/json"
	"log/slog"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/internal/server/scope"
	"github.com/internhub/internhub/internal/wire"
	"github.com/internhub/internhub/pkg/api"
)

//go:generate moq -out broadcaster_mock.go . Broadcaster

// Broadcaster is the gateway-facing fan-out contract. Delivery is
// asynchronous relative to the caller: Broadcast enqueues into bounded
// per-connection buffers, so mutation latency never includes fan-out
// latency to every subscriber.
type Broadcaster interface {
	Broadcast(groups []models.Group, source *models.Entity, env *api.Envelope)
}

// Dispatcher resolves target groups and pushes envelopes into the gateway.
type Dispatcher struct {
	broadcaster Broadcaster
	logger      *slog.Logger
}

// New creates a dispatcher.
func New(broadcaster Broadcaster, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Dispatch publishes a committed mutation. Groups are computed from the
// post-mutation state for creates and updates, and from the pre-deletion
// snapshot for deletes — the deleted entity's ownership fields are gone
// otherwise.
func (d *Dispatcher) Dispatch(op models.Operation, before, after *models.Entity) {
	source := after
	if op == models.OperationDelete {
		source = before
	}
	if source == nil {
		d.logger.Error("dispatch with no entity snapshot", "operation", op)
		return
	}

	env, err := d.envelope(op, source)
	if err != nil {
		d.logger.Error("failed to build envelope",
			"error", err,
			"operation", op,
			"entity_type", source.Type,
			"entity_id", source.ID)
		return
	}

	groups := scope.GroupsFor(source)
	d.broadcaster.Broadcast(groups, source, env)

	d.logger.Debug("dispatched",
		"operation", op,
		"entity_type", source.Type,
		"entity_id", source.ID,
		"groups", len(groups))
}

func (d *Dispatcher) envelope(op models.Operation, source *models.Entity) (*api.Envelope, error) {
	env := &api.Envelope{
		EntityType: string(source.Type),
		EntityID:   source.ID,
		Timestamp:  source.UpdatedAt,
	}

	switch op {
	case models.OperationCreate:
		env.Type = api.MessageEntityCreated
	case models.OperationUpdate:
		env.Type = api.MessageEntityUpdated
	case models.OperationDelete:
		// Deletions carry no payload; entity_type + entity_id suffice.
		env.Type = api.MessageEntityDeleted
		return env, nil
	}

	data, err := json.Marshal(wire.Entity(source))
	if err != nil {
		return nil, err
	}
	env.Data = data

	return env, nil
}
