package api

import "fmt"

// Operation enumerates mutation operations.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// MutationRequest is the body of POST /api/v1/mutations. CorrelationID is a
// client-generated id used to match confirmations against locally pending
// mutations; it is echoed back unchanged and never used as an entity id.
type MutationRequest struct {
	Fields        map[string]any `json:"fields,omitempty"`
	Operation     Operation      `json:"operation"`
	EntityType    string         `json:"entity_type"`
	EntityID      string         `json:"entity_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// MutationResponse carries the canonical server-confirmed entity on success.
type MutationResponse struct {
	Entity        *Entity `json:"entity,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

// ErrorCode classifies mutation failures. Rejections (unauthorized,
// not_found, validation, conflict) are final and must not be retried;
// everything else is transport-level and may be.
type ErrorCode string

const (
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorValidation   ErrorCode = "validation"
	ErrorConflict     ErrorCode = "conflict"
	ErrorInternal     ErrorCode = "internal"
)

// MutationError is the structured failure returned by the mutation endpoint.
type MutationError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("mutation rejected (%s): %s", e.Code, e.Message)
}

// Retryable reports whether the failure is transient. Validation and
// authorization rejections are final; only internal server failures are
// worth another attempt.
func (e *MutationError) Retryable() bool {
	return e.Code == ErrorInternal
}
