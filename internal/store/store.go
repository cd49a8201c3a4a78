package store

import (
	"context"
	"errors"
)

// Store is the durable key-value port carts and wishlists are persisted to.
// Payloads are opaque strings; callers own the serialization.
type Store interface {
	// Get returns ErrNotFound when nothing is stored under key.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete does not fail for a missing key.
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("key not found")

// Closer is implemented by stores that hold connections.
type Closer interface {
	Close() error
}
