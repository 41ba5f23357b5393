package provider

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// CachingConfigStore decorates a ConfigStore with a short TTL cache. Webhook
// bursts hit the config on every delivery; singleflight collapses concurrent
// loads for the same tenant/provider pair into one store round trip.
type CachingConfigStore struct {
	next  ConfigStore
	cache *gocache.Cache
	group singleflight.Group
}

// NewCachingConfigStore wraps next with a TTL cache. Negative lookups are not
// cached; a tenant finishing provider setup should not wait out the TTL.
func NewCachingConfigStore(next ConfigStore, ttl time.Duration) *CachingConfigStore {
	return &CachingConfigStore{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// GetConfig implements ConfigStore.
func (s *CachingConfigStore) GetConfig(ctx context.Context, tenantID, providerID string) (*Config, error) {
	key := configKey(tenantID, providerID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*Config), nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		cfg, err := s.next.GetConfig(ctx, tenantID, providerID)
		if err != nil {
			return nil, err
		}
		s.cache.SetDefault(key, cfg)
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Config), nil
}

// Invalidate drops the cached config for a tenant/provider pair.
func (s *CachingConfigStore) Invalidate(tenantID, providerID string) {
	s.cache.Delete(configKey(tenantID, providerID))
}
