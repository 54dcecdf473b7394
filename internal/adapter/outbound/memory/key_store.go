// Package memory provides in-memory implementations of outbound ports.
// Keys and conversations are intentionally volatile: persistence across
// restarts is a documented gap, not a silent feature.
package memory

import (
	"context"
	"sync"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
)

// KeyStore implements auth.KeyStore with concurrent maps indexed by ID and
// by hash. Entities are stored as copies and returned as copies, so readers
// never observe a half-constructed key.
type KeyStore struct {
	mu     sync.RWMutex
	byID   map[string]*auth.APIKey
	byHash map[string]*auth.APIKey
}

// NewKeyStore creates an empty in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		byID:   make(map[string]*auth.APIKey),
		byHash: make(map[string]*auth.APIKey),
	}
}

// Put inserts or wholesale-replaces a key in both indices.
func (s *KeyStore) Put(ctx context.Context, key *auth.APIKey) error {
	cp := cloneKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[cp.ID]; ok && old.KeyHash != cp.KeyHash {
		delete(s.byHash, old.KeyHash)
	}
	s.byID[cp.ID] = cp
	s.byHash[cp.KeyHash] = cp
	return nil
}

// GetByID retrieves a key by ID.
func (s *KeyStore) GetByID(ctx context.Context, id string) (*auth.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return cloneKey(key), nil
}

// GetByHash retrieves a key by its stored hash.
func (s *KeyStore) GetByHash(ctx context.Context, keyHash string) (*auth.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byHash[keyHash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return cloneKey(key), nil
}

// List returns copies of all stored keys.
func (s *KeyStore) List(ctx context.Context) ([]*auth.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.APIKey, 0, len(s.byID))
	for _, key := range s.byID {
		out = append(out, cloneKey(key))
	}
	return out, nil
}

// Delete removes a key from both indices.
func (s *KeyStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[id]
	if !ok {
		return auth.ErrKeyNotFound
	}
	delete(s.byID, id)
	delete(s.byHash, key.KeyHash)
	return nil
}

// cloneKey deep-copies a key so callers cannot mutate stored state.
func cloneKey(key *auth.APIKey) *auth.APIKey {
	cp := *key
	cp.Permissions = key.Permissions.Clone()
	if key.ExpiresAt != nil {
		exp := *key.ExpiresAt
		cp.ExpiresAt = &exp
	}
	if key.Metadata != nil {
		cp.Metadata = make(map[string]string, len(key.Metadata))
		for k, v := range key.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Compile-time interface verification.
var _ auth.KeyStore = (*KeyStore)(nil)
