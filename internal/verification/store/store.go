// Package store persists verification claims.
package store

import (
	"context"

	"idvgate/internal/verification/models"
)

// ClaimStore is the persistence boundary for verification claims. Absent
// rows surface as sentinel.ErrNotFound, duplicate inserts as
// sentinel.ErrConflict; services translate both into domain errors.
type ClaimStore interface {
	// GetClaims returns every claim of a user for one provider, in
	// claim-URI order.
	GetClaims(ctx context.Context, tenantID, userID, providerID string) ([]*models.VerificationClaim, error)

	// GetClaim returns one claim by id.
	GetClaim(ctx context.Context, tenantID, claimID string) (*models.VerificationClaim, error)

	// GetClaimsByMetadata returns the claims of one provider whose metadata
	// bag has key set to value. The webhook path uses it to resolve claims
	// from a run id.
	GetClaimsByMetadata(ctx context.Context, tenantID, providerID, key, value string) ([]*models.VerificationClaim, error)

	// StoreClaims inserts a batch of new claims atomically.
	StoreClaims(ctx context.Context, claims []*models.VerificationClaim) error

	// UpdateClaim replaces a claim's verified flag and metadata.
	UpdateClaim(ctx context.Context, claim *models.VerificationClaim) error
}
