package storage

import "errors"

var (
	// ErrEntityNotFound is returned when the requested entity does not
	// exist or has been compacted away.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrStorageClosed is returned on operations against a closed store.
	ErrStorageClosed = errors.New("storage is closed")
)
