package auth

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned when a key does not exist in the store.
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore provides API key persistence. The interface is defined in the
// domain so adapters depend on auth, not the other way around.
// Implementations must be safe for concurrent creation, revocation, and
// validation; keys are constructed fully before insertion and replaced
// wholesale on update, never mutated field-by-field.
type KeyStore interface {
	// Put inserts or wholesale-replaces a key, indexed by ID and by hash.
	Put(ctx context.Context, key *APIKey) error

	// GetByID retrieves a key by ID.
	// Returns ErrKeyNotFound if the key doesn't exist.
	GetByID(ctx context.Context, id string) (*APIKey, error)

	// GetByHash retrieves a key by its stored hash.
	// Returns ErrKeyNotFound if the key doesn't exist.
	GetByHash(ctx context.Context, keyHash string) (*APIKey, error)

	// List returns all stored keys for iteration-based verification and
	// administrative listing.
	List(ctx context.Context) ([]*APIKey, error)

	// Delete removes a key from both indices.
	// Returns ErrKeyNotFound if the key doesn't exist.
	Delete(ctx context.Context, id string) error
}
