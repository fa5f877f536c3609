// Package store provides the ordered key-value abstraction every other
// component persists through. Two backends implement the same contract:
// an embedded bbolt database and Redis. Higher-level components isolate
// themselves from each other with Namespaced, a pure prefix decorator.
package store

import (
	"context"
	"time"
)

// Entry is a single key-value pair returned by List.
type Entry struct {
	Key   string
	Value []byte
}

// ListOptions controls prefix scans.
type ListOptions struct {
	// Reverse returns entries in descending key order.
	Reverse bool

	// Limit caps the number of returned entries. Zero means no limit.
	Limit int
}

// UpdateFunc transforms the current value of a key. old is nil when the
// key is absent. Returning a nil slice deletes the key; returning a
// non-nil slice writes it. The function may be invoked more than once
// when the backend retries on contention, so it must be side-effect
// free apart from its return value.
type UpdateFunc func(old []byte) ([]byte, error)

// Store is the minimal async key-value contract. Get returns a
// fault.KindNotFound error for absent keys; backend failures are
// reported as fault.KindStoreUnavailable. There is no cross-key
// atomicity: Update is the only conditional primitive, and it covers a
// single key.
type Store interface {
	// Get returns the value for key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key. A non-zero ttl expires the key after
	// that duration; zero means the key never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns entries whose keys start with prefix, ordered by key.
	List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error)

	// Update atomically applies fn to the current value of key. The
	// read-modify-write sequence is protected against concurrent
	// writers of the same key.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Close releases the backend connection.
	Close() error
}
