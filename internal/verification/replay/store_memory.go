package replay

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore tracks deliveries in process memory. Suitable for single
// instance deployments and tests.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates a memory store with the given retention window.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{cache: gocache.New(retention, 2*retention)}
}

// Seen implements Store.
func (s *MemoryStore) Seen(_ context.Context, providerID, runID string, completedAt time.Time) (bool, error) {
	_, found := s.cache.Get(deliveryKey(providerID, runID, completedAt))
	return found, nil
}

// MarkProcessed implements Store.
func (s *MemoryStore) MarkProcessed(_ context.Context, providerID, runID string, completedAt time.Time) error {
	s.cache.SetDefault(deliveryKey(providerID, runID, completedAt), struct{}{})
	return nil
}
