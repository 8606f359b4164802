// Package store provides the key-to-blob persistence used for
// workspace state. Backends are interchangeable; the service layer
// only sees the KV contract.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports a missing key.
	ErrNotFound = errors.New("key not found")
	// ErrCapacity reports a failed write. The caller keeps its
	// in-memory state and surfaces a non-fatal warning instead of
	// rolling back; later writes are retried independently.
	ErrCapacity = errors.New("storage write failed")
)

// KV is a minimal durable key-value store. Values are opaque blobs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
