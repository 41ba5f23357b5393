package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"idvgate/internal/verification/models"
	"idvgate/pkg/platform/sentinel"
	"idvgate/pkg/requestcontext"
)

// MemoryStore is an in-memory ClaimStore for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	claims map[string]*models.VerificationClaim // by claim ID
}

// NewMemoryStore creates an empty in-memory claim store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[string]*models.VerificationClaim)}
}

func cloneClaim(c *models.VerificationClaim) *models.VerificationClaim {
	clone := *c
	clone.Metadata = maps.Clone(c.Metadata)
	return &clone
}

// GetClaims implements ClaimStore.
func (s *MemoryStore) GetClaims(_ context.Context, tenantID, userID, providerID string) ([]*models.VerificationClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.VerificationClaim
	for _, c := range s.claims {
		if c.TenantID == tenantID && c.UserID == userID && c.ProviderID == providerID {
			out = append(out, cloneClaim(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimURI < out[j].ClaimURI })
	return out, nil
}

// GetClaim implements ClaimStore.
func (s *MemoryStore) GetClaim(_ context.Context, tenantID, claimID string) (*models.VerificationClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[claimID]
	if !ok || c.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return cloneClaim(c), nil
}

// GetClaimsByMetadata implements ClaimStore.
func (s *MemoryStore) GetClaimsByMetadata(_ context.Context, tenantID, providerID, key, value string) ([]*models.VerificationClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.VerificationClaim
	for _, c := range s.claims {
		if c.TenantID == tenantID && c.ProviderID == providerID && c.Meta(key) == value {
			out = append(out, cloneClaim(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimURI < out[j].ClaimURI })
	return out, nil
}

// StoreClaims implements ClaimStore. The batch is all-or-nothing: a duplicate
// (user, provider, claim URI) pair fails the whole insert.
func (s *MemoryStore) StoreClaims(ctx context.Context, claims []*models.VerificationClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range claims {
		for _, existing := range s.claims {
			if existing.TenantID == c.TenantID && existing.UserID == c.UserID &&
				existing.ProviderID == c.ProviderID && existing.ClaimURI == c.ClaimURI {
				return sentinel.ErrConflict
			}
		}
	}
	now := requestcontext.Now(ctx)
	for _, c := range claims {
		stored := cloneClaim(c)
		stored.CreatedAt = now
		stored.UpdatedAt = now
		s.claims[c.ID] = stored
	}
	return nil
}

// UpdateClaim implements ClaimStore.
func (s *MemoryStore) UpdateClaim(ctx context.Context, claim *models.VerificationClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.claims[claim.ID]
	if !ok || existing.TenantID != claim.TenantID {
		return sentinel.ErrNotFound
	}
	updated := cloneClaim(claim)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = requestcontext.Now(ctx)
	s.claims[claim.ID] = updated
	return nil
}
