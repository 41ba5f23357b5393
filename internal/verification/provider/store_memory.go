package provider

import (
	"context"
	"maps"
	"sync"

	"idvgate/pkg/platform/sentinel"
)

// MemoryConfigStore is an in-memory ConfigStore for tests and local
// development.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

// NewMemoryConfigStore creates an empty in-memory config store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{configs: make(map[string]*Config)}
}

func configKey(tenantID, providerID string) string {
	return tenantID + "|" + providerID
}

// Put stores or replaces a config.
func (s *MemoryConfigStore) Put(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[configKey(cfg.TenantID, cfg.ProviderID)] = cfg
}

// GetConfig implements ConfigStore. Returned configs are copies; mutating
// them does not affect the store.
func (s *MemoryConfigStore) GetConfig(_ context.Context, tenantID, providerID string) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[configKey(tenantID, providerID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *cfg
	clone.ClaimMappings = maps.Clone(cfg.ClaimMappings)
	clone.AttributeAliases = maps.Clone(cfg.AttributeAliases)
	return &clone, nil
}
