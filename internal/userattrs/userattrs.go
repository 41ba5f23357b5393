// Package userattrs resolves the profile attribute values that verification
// runs are started with.
package userattrs

import (
	"context"
	"sync"

	"idvgate/pkg/platform/sentinel"
)

// Store reads user attribute values by claim URI.
type Store interface {
	// AttributeValue returns the user's value for the claim URI, or
	// sentinel.ErrNotFound when the user has no value for it.
	AttributeValue(ctx context.Context, tenantID, userID, claimURI string) (string, error)
}

// MemoryStore is an in-memory attribute store for tests and local
// development.
type MemoryStore struct {
	mu    sync.RWMutex
	attrs map[string]map[string]string // tenant|user -> claimURI -> value
}

// NewMemoryStore creates an empty in-memory attribute store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attrs: make(map[string]map[string]string)}
}

// Set stores one attribute value for a user.
func (s *MemoryStore) Set(tenantID, userID, claimURI, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "|" + userID
	if s.attrs[key] == nil {
		s.attrs[key] = make(map[string]string)
	}
	s.attrs[key][claimURI] = value
}

// AttributeValue implements Store.
func (s *MemoryStore) AttributeValue(_ context.Context, tenantID, userID, claimURI string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.attrs[tenantID+"|"+userID][claimURI]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return v, nil
}
