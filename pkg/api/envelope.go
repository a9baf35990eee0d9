package api

import (
	"encoding/json"
	"time"
)

// MessageType enumerates every message kind carried over the realtime
// connection, in both directions. The set is closed: receivers must match
// exhaustively and ignore unknown kinds so that older clients keep working
// against newer servers.
type MessageType string

const (
	// Server -> client
	MessageEntityCreated MessageType = "entity_created"
	MessageEntityUpdated MessageType = "entity_updated"
	MessageEntityDeleted MessageType = "entity_deleted"
	MessageInitialSync   MessageType = "initial_sync"
	MessageSyncResponse  MessageType = "sync_response"
	MessageHeartbeatAck  MessageType = "heartbeat_ack"
	MessageError         MessageType = "error"

	// Client -> server
	MessageSubscribe   MessageType = "subscribe"
	MessageUnsubscribe MessageType = "unsubscribe"
	MessageSyncRequest MessageType = "sync_request"
	MessageHeartbeat   MessageType = "heartbeat"
)

// Envelope is the server->client wire message. For entity events Data holds
// the serialized Entity (nil for deletions). Envelopes for the same
// (entity_type, entity_id) are delivered per connection in non-decreasing
// Timestamp order.
type Envelope struct {
	Timestamp  time.Time       `json:"timestamp"`
	Type       MessageType     `json:"type"`
	EntityType string          `json:"entity_type,omitempty"`
	EntityID   string          `json:"entity_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is the client->server control message.
type ClientMessage struct {
	LastSync   time.Time   `json:"last_sync,omitzero"`
	Type       MessageType `json:"type"`
	EntityType string      `json:"entity_type,omitempty"`
	EntityID   string      `json:"entity_id,omitempty"`
}
