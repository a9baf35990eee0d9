package models

import "time"

// Operation enumerates entity mutations.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// PendingMutation tracks a local mutation that has not been confirmed by the
// server yet. LocalID is a client-generated correlation id, deliberately
// distinct from the entity id: create operations do not know their real id
// until the server confirms. A PendingMutation is destroyed on confirmed
// success, rollback, or permanent failure after the retry budget runs out.
type PendingMutation struct {
	EnqueuedAt   time.Time
	Fields       map[string]any
	LocalID      string
	EntityType   EntityType
	EntityID     string
	Operation    Operation
	AttemptCount int
}

// Clone returns a deep copy.
func (m *PendingMutation) Clone() *PendingMutation {
	if m == nil {
		return nil
	}
	out := *m
	out.Fields = cloneFields(m.Fields)
	return &out
}
