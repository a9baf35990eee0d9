// Package realtime maintains the client's live connection: dial, initial
// snapshot, envelope stream, heartbeats, and reconnection. The session owns
// connectivity state and tells the offline queue when to flush or hold.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/pkg/api"
)

// Status is the session's connectivity state.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOnline     Status = "online"
	StatusOffline    Status = "offline"
)

// ErrOffline is returned by Run when the reconnect budget is exhausted and
// the session settles into persistent offline state.
var ErrOffline = errors.New("reconnect attempts exhausted")

// Store is the slice of the client store the session feeds.
type Store interface {
	ApplySnapshot(collections map[models.EntityType][]*models.Entity, serverTime time.Time) error
	ApplyEnvelope(env *api.Envelope) error
	ApplyIncremental(entityType models.EntityType, entities []*models.Entity, serverTime time.Time) error
}

// ConnectivityListener is notified of online/offline transitions. The
// offline queue implements it.
type ConnectivityListener interface {
	SetOnline(online bool)
}

// Config holds the session settings.
type Config struct {
	URL                  string // websocket endpoint, e.g. ws://host/ws
	Token                string
	HeartbeatInterval    time.Duration
	ReconnectInitial     time.Duration
	ReconnectMax         time.Duration
	MaxReconnectAttempts int
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectInitial == 0 {
		c.ReconnectInitial = time.Second
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = time.Minute
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
}

// Session is the realtime sync session.
type Session struct {
	cfg      Config
	store    Store
	listener ConnectivityListener
	logger   *slog.Logger
	dialer   *websocket.Dialer

	status atomic.Value
}

// New creates a session. listener may be nil.
func New(cfg Config, store Store, listener ConnectivityListener, logger *slog.Logger) *Session {
	cfg.applyDefaults()

	s := &Session{
		cfg:      cfg,
		store:    store,
		listener: listener,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
	}
	s.status.Store(StatusOffline)

	return s
}

// Status returns the current connectivity state.
func (s *Session) Status() Status {
	return s.status.Load().(Status)
}

// Run connects and serves envelopes until ctx is cancelled. Connection
// drops trigger reconnection with jittered exponential backoff; a
// connection that made it online resets the attempt budget. When the budget
// runs out the session goes persistently offline and Run returns ErrOffline.
func (s *Session) Run(ctx context.Context) error {
	defer s.setOffline()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.ReconnectInitial
	policy.MaxInterval = s.cfg.ReconnectMax

	attempts := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.status.Store(StatusConnecting)
		served, err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if served {
			s.logger.Warn("connection lost, redialing", "error", err)
			attempts = 0
			policy.Reset()
			continue
		}

		attempts++
		if attempts >= s.cfg.MaxReconnectAttempts {
			s.logger.Error("giving up reconnecting", "attempts", attempts, "error", err)
			return ErrOffline
		}

		wait := policy.NextBackOff()
		s.logger.Warn("connection failed",
			"error", err,
			"attempt", attempts,
			"retry_in", wait)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runConnection dials, applies the initial snapshot, then pumps envelopes
// until the connection drops. served reports whether the connection made it
// past the snapshot; such a drop restarts with a fresh backoff schedule.
func (s *Session) runConnection(ctx context.Context) (served bool, _ error) {
	header := http.Header{"Authorization": []string{"Bearer " + s.cfg.Token}}

	ws, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return false, fmt.Errorf("dial failed: %w", err)
	}
	defer func() {
		_ = ws.Close()
	}()

	// The first frame is always the consistent base; live envelopes only
	// start after it has been applied.
	var first api.Envelope
	if err := ws.ReadJSON(&first); err != nil {
		return false, fmt.Errorf("failed to read initial snapshot: %w", err)
	}
	if first.Type != api.MessageInitialSync {
		return false, fmt.Errorf("expected initial_sync, got %q", first.Type)
	}
	serverTime, err := s.applyInitialSnapshot(&first)
	if err != nil {
		return false, err
	}

	s.status.Store(StatusOnline)
	s.setListenerOnline(true)
	s.logger.Info("realtime session online")

	defer func() {
		s.status.Store(StatusOffline)
		s.setListenerOnline(false)
	}()

	// The server computes the snapshot before joining this connection to
	// its groups, so a mutation committed in that window is in neither the
	// snapshot nor any delivered envelope. Catch-up from the snapshot
	// watermark closes the gap. Runs before the heartbeat loop starts so
	// there is a single writer on the socket.
	if err := s.requestCatchUp(ws, serverTime); err != nil {
		return true, fmt.Errorf("failed to request catch-up: %w", err)
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.heartbeatLoop(connCtx, ws)

	// ReadJSON does not watch the context; closing the socket is what
	// unblocks the read on cancellation.
	go func() {
		<-connCtx.Done()
		_ = ws.Close()
	}()

	for {
		var env api.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, fmt.Errorf("read failed: %w", err)
		}

		if err := s.handleEnvelope(&env); err != nil {
			s.logger.Error("failed to apply envelope", "error", err, "type", env.Type)
		}
	}
}

func (s *Session) applyInitialSnapshot(env *api.Envelope) (time.Time, error) {
	var snapshot api.InitialSnapshot
	if err := json.Unmarshal(env.Data, &snapshot); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode initial snapshot: %w", err)
	}

	collections := make(map[models.EntityType][]*models.Entity, len(snapshot.Collections))
	for entityType, entities := range snapshot.Collections {
		collections[models.EntityType(entityType)] = toModels(entities)
	}

	if err := s.store.ApplySnapshot(collections, snapshot.ServerTime); err != nil {
		return time.Time{}, fmt.Errorf("failed to apply initial snapshot: %w", err)
	}

	return snapshot.ServerTime, nil
}

// requestCatchUp asks for everything that changed since the snapshot
// watermark, one sync_request per entity type. Responses arrive as
// sync_response envelopes on the normal read path.
func (s *Session) requestCatchUp(ws *websocket.Conn, since time.Time) error {
	for _, entityType := range models.KnownEntityTypes() {
		msg := api.ClientMessage{
			Type:       api.MessageSyncRequest,
			EntityType: string(entityType),
			LastSync:   since,
		}
		if err := ws.WriteJSON(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleEnvelope(env *api.Envelope) error {
	switch env.Type {
	case api.MessageEntityCreated, api.MessageEntityUpdated, api.MessageEntityDeleted:
		return s.store.ApplyEnvelope(env)

	case api.MessageSyncResponse:
		var snapshot api.IncrementalSnapshot
		if err := json.Unmarshal(env.Data, &snapshot); err != nil {
			return fmt.Errorf("failed to decode sync response: %w", err)
		}
		return s.store.ApplyIncremental(
			models.EntityType(env.EntityType), toModels(snapshot.Entities), snapshot.ServerTime)

	case api.MessageHeartbeatAck:
		return nil

	default:
		// Additive protocol: unknown envelope kinds are skipped.
		s.logger.Debug("ignoring unknown envelope type", "type", env.Type)
		return nil
	}
}

func (s *Session) heartbeatLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ws.WriteJSON(api.ClientMessage{Type: api.MessageHeartbeat}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) setOffline() {
	s.status.Store(StatusOffline)
	s.setListenerOnline(false)
}

func (s *Session) setListenerOnline(online bool) {
	if s.listener != nil {
		s.listener.SetOnline(online)
	}
}

func toModels(entities []api.Entity) []*models.Entity {
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
