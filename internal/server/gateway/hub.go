package gateway

import (
	"log/slog"
	"sync"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/internal/server/scope"
	"github.com/internhub/internhub/pkg/api"
)

// Hub tracks group memberships and fans envelopes out to members. Joins and
// leaves take the write lock; broadcasts only read, so fan-out proceeds
// concurrently with other broadcasts.
type Hub struct {
	logger  *slog.Logger
	groups  map[models.Group]map[*Conn]struct{}
	members map[*Conn]map[models.Group]struct{}
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		groups:  make(map[models.Group]map[*Conn]struct{}),
		members: make(map[*Conn]map[models.Group]struct{}),
	}
}

// Join adds a connection to the given groups.
func (h *Hub) Join(c *Conn, groups ...models.Group) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.members[c] == nil {
		h.members[c] = make(map[models.Group]struct{})
	}
	for _, g := range groups {
		if h.groups[g] == nil {
			h.groups[g] = make(map[*Conn]struct{})
		}
		h.groups[g][c] = struct{}{}
		h.members[c][g] = struct{}{}
	}
}

// Leave removes a connection from the given groups.
func (h *Hub) Leave(c *Conn, groups ...models.Group) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, g := range groups {
		delete(h.groups[g], c)
		if len(h.groups[g]) == 0 {
			delete(h.groups, g)
		}
		delete(h.members[c], g)
	}
}

// Unregister releases every membership of a connection.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for g := range h.members[c] {
		delete(h.groups[g], c)
		if len(h.groups[g]) == 0 {
			delete(h.groups, g)
		}
	}
	delete(h.members, c)
}

// Broadcast delivers an envelope to every connection that is a member of at
// least one of the target groups at broadcast time — once per connection,
// however many groups overlap. Connections joining afterwards do not
// receive it; they catch up via snapshot instead.
//
// source is the entity snapshot the envelope describes (pre-deletion state
// for deletes). Group membership is a routing layer; the visibility
// predicate is re-checked per member so a connection sharing a group with
// an entity it may not see never receives the envelope.
//
// Delivery is asynchronous: envelopes land in each member's bounded buffer
// and a member that cannot keep up is dropped, never waited on.
func (h *Hub) Broadcast(groups []models.Group, source *models.Entity, env *api.Envelope) {
	h.mu.RLock()

	recipients := make(map[*Conn]struct{})
	for _, g := range groups {
		for c := range h.groups[g] {
			recipients[c] = struct{}{}
		}
	}

	h.mu.RUnlock()

	for c := range recipients {
		if source != nil && !scope.VisibleScope(c.principal, source.Type)(source) {
			continue
		}
		if !c.trySend(env) {
			h.logger.Warn("outbound buffer overflow, dropping connection",
				"conn_id", c.id,
				"user_id", c.principal.UserID)
			go c.Close()
		}
	}
}

// GroupSize returns the current member count of a group.
func (h *Hub) GroupSize(g models.Group) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.groups[g])
}

// Memberships returns the groups a connection currently belongs to.
func (h *Hub) Memberships(c *Conn) []models.Group {
	h.mu.RLock()
	defer h.mu.RUnlock()

	groups := make([]models.Group, 0, len(h.members[c]))
	for g := range h.members[c] {
		groups = append(groups, g)
	}
	return groups
}
