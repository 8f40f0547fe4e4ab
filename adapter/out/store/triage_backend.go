// Package store persists conversation state over one of two interchangeable key-value
// backends (Redis or in-process memory). Both backends hold the exact bytes produced by
// the shared codec under the same keys, so switching backends never changes entity shapes.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Backend.Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// UpdateFunc receives the current raw value (nil when absent) and returns the new value
// and whether it changed. Returning changed=false skips the write.
type UpdateFunc func(old []byte) (value []byte, changed bool, err error)

// Backend is the raw key-value contract both implementations satisfy.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Update runs a read-modify-write on key that no other Update on the same key
	// interleaves with.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Keys
// =============================================================================

// Key namespaces per entity kind.
const (
	keyPrefixHistory = "wa:chat:"
	keyPrefixMeta    = "wa:meta:"
	keyPrefixFollow  = "wa:follow:"
	keyUsers         = "wa:users"
)

func historyKey(user string) string { return keyPrefixHistory + user }
func metaKey(user string) string    { return keyPrefixMeta + user }
func followKey(user string) string  { return keyPrefixFollow + user }
