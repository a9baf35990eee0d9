package gateway

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/pkg/api"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second

	// pongWait is the read deadline; three missed heartbeats.
	pongWait = 90 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = 30 * time.Second

	// sendBufferSize bounds the per-connection outbound buffer. A
	// connection too slow to drain it is dropped so a broadcast never
	// blocks on one laggard.
	sendBufferSize = 64
)

// State is the connection lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateSubscribed
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is a single client connection. The write pump is the only goroutine
// touching the websocket for writes; everything else goes through the
// bounded send channel.
type Conn struct {
	ws        *websocket.Conn
	logger    *slog.Logger
	send      chan *api.Envelope
	done      chan struct{}
	id        string
	principal models.Principal
	state     atomic.Int32
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, principal models.Principal, logger *slog.Logger) *Conn {
	c := &Conn{
		id:        id,
		ws:        ws,
		principal: principal,
		send:      make(chan *api.Envelope, sendBufferSize),
		done:      make(chan struct{}),
		logger:    logger.With("conn_id", id, "user_id", principal.UserID),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Principal returns the authenticated principal bound at connect time.
func (c *Conn) Principal() models.Principal { return c.principal }

// State returns the current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// trySend enqueues an envelope without blocking. Returns false when the
// buffer is full or the connection is shutting down.
func (c *Conn) trySend(env *api.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// Close transitions to Closing and tears down the websocket. Idempotent.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.setState(StateClosing)
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
		c.setState(StateClosed)
	})
}

// writePump drains the send channel onto the websocket and keeps the
// heartbeat going. Runs in its own goroutine per connection; exits close
// the connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				c.logger.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}
