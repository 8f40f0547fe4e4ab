package persistence

import "errors"

// Ticket repository errors. Both adapters return these so callers can map them
// without knowing which backend is configured.
var (
	ErrNotFound  = errors.New("ticket not found")
	ErrDuplicate = errors.New("ticket already exists")
)
