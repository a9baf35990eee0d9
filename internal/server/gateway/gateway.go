// Package gateway owns the persistent bidirectional connections. Each
// authenticated principal gets one lightweight task per connection; group
// memberships are derived from the principal through the scope package,
// never duplicated here.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/internal/server/scope"
	"github.com/internhub/internhub/internal/server/storage"
	"github.com/internhub/internhub/internal/wire"
	"github.com/internhub/internhub/pkg/api"
)

//go:generate moq -out snapshots_mock.go . SnapshotService

// SnapshotService produces permission-scoped snapshots for the initial sync
// and for in-band sync_request catch-up.
type SnapshotService interface {
	InitialSnapshot(ctx context.Context, principal models.Principal) (map[models.EntityType][]*models.Entity, error)
	IncrementalSnapshot(ctx context.Context, principal models.Principal, entityType models.EntityType, since time.Time) ([]*models.Entity, bool, error)
}

// EntityFetcher looks up single entities for ad hoc subscriptions.
type EntityFetcher interface {
	GetEntity(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error)
}

// Gateway runs the per-connection session protocol on top of the hub.
type Gateway struct {
	hub       *Hub
	snapshots SnapshotService
	entities  EntityFetcher
	logger    *slog.Logger
}

// New creates a gateway.
func New(hub *Hub, snapshots SnapshotService, entities EntityFetcher, logger *slog.Logger) *Gateway {
	return &Gateway{
		hub:       hub,
		snapshots: snapshots,
		entities:  entities,
		logger:    logger,
	}
}

// Hub exposes the hub for the dispatcher.
func (g *Gateway) Hub() *Hub { return g.hub }

// HandleConn runs a connection to completion. The caller has already
// authenticated the principal; this sends the initial snapshot, joins the
// principal's groups, and then serves the active loop until the connection
// drops or ctx is done.
//
// Ordering invariant: the initial snapshot is queued before any group join,
// so no live envelope can reach the client before its consistent base.
func (g *Gateway) HandleConn(ctx context.Context, ws *websocket.Conn, principal models.Principal) {
	c := newConn(uuid.New().String(), ws, principal, g.logger)
	c.setState(StateAuthenticated)

	defer func() {
		g.hub.Unregister(c)
		c.Close()
		c.logger.Info("connection closed")
	}()

	go c.writePump()

	if err := g.sendInitialSnapshot(ctx, c); err != nil {
		c.logger.Error("initial snapshot failed", "error", err)
		return
	}

	c.setState(StateSubscribed)
	g.hub.Join(c, scope.MembershipGroups(principal)...)

	c.setState(StateActive)
	c.logger.Info("connection active", "role", principal.Role)

	g.readLoop(ctx, c)
}

func (g *Gateway) sendInitialSnapshot(ctx context.Context, c *Conn) error {
	// The watermark is stamped before the read so it never claims more
	// than the snapshot contains; anything committed while reading shows
	// up again in the client's catch-up, and duplicates are harmless.
	serverTime := time.Now().UTC()

	collections, err := g.snapshots.InitialSnapshot(ctx, c.principal)
	if err != nil {
		return fmt.Errorf("failed to compute snapshot: %w", err)
	}

	snapshot := api.InitialSnapshot{
		Collections: wire.Collections(collections),
		ServerTime:  serverTime,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	env := &api.Envelope{
		Type:      api.MessageInitialSync,
		Data:      data,
		Timestamp: snapshot.ServerTime,
	}

	// The send buffer is empty at this point (no groups joined yet), so
	// this cannot fail on overflow unless the connection is already gone.
	if !c.trySend(env) {
		return errors.New("connection closed before snapshot delivery")
	}

	return nil
}

func (g *Gateway) readLoop(ctx context.Context, c *Conn) {
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}

		var msg api.ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read failed", "error", err)
			}
			return
		}

		// Any inbound traffic counts as liveness.
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case api.MessageHeartbeat:
			g.handleHeartbeat(c)
		case api.MessageSubscribe:
			g.handleSubscribe(ctx, c, msg)
		case api.MessageUnsubscribe:
			g.hub.Leave(c, models.EntityGroup(models.EntityType(msg.EntityType), msg.EntityID))
		case api.MessageSyncRequest:
			g.handleSyncRequest(ctx, c, msg)
		default:
			// Unknown kinds are ignored, not fatal, to tolerate newer
			// clients speaking additive protocol versions.
			c.logger.Debug("ignoring unknown message type", "type", msg.Type)
		}
	}
}

func (g *Gateway) handleHeartbeat(c *Conn) {
	env := &api.Envelope{
		Type:      api.MessageHeartbeatAck,
		Timestamp: time.Now().UTC(),
	}
	if !c.trySend(env) {
		go c.Close()
	}
}

// handleSubscribe joins an ad hoc entity group. The subscription is only
// granted if the entity is visible to the principal right now; scoping at
// membership time, not just snapshot time.
func (g *Gateway) handleSubscribe(ctx context.Context, c *Conn, msg api.ClientMessage) {
	entityType := models.EntityType(msg.EntityType)

	entity, err := g.entities.GetEntity(ctx, entityType, msg.EntityID)
	if err != nil {
		if !errors.Is(err, storage.ErrEntityNotFound) {
			c.logger.Error("subscribe lookup failed", "error", err, "entity_type", entityType, "entity_id", msg.EntityID)
		}
		return
	}

	if !scope.VisibleScope(c.principal, entityType)(entity) {
		c.logger.Warn("subscribe denied by scope",
			"entity_type", entityType,
			"entity_id", msg.EntityID)
		return
	}

	g.hub.Join(c, models.EntityGroup(entityType, msg.EntityID))
}

func (g *Gateway) handleSyncRequest(ctx context.Context, c *Conn, msg api.ClientMessage) {
	entityType := models.EntityType(msg.EntityType)
	serverTime := time.Now().UTC()

	entities, resync, err := g.snapshots.IncrementalSnapshot(ctx, c.principal, entityType, msg.LastSync)
	if err != nil {
		c.logger.Error("incremental snapshot failed", "error", err, "entity_type", entityType)
		return
	}

	response := api.IncrementalSnapshot{
		Entities:   wire.Entities(entities),
		ServerTime: serverTime,
		Resync:     resync,
	}

	data, err := json.Marshal(response)
	if err != nil {
		c.logger.Error("failed to marshal sync response", "error", err)
		return
	}

	env := &api.Envelope{
		Type:       api.MessageSyncResponse,
		EntityType: msg.EntityType,
		Data:       data,
		Timestamp:  response.ServerTime,
	}
	if !c.trySend(env) {
		go c.Close()
	}
}
