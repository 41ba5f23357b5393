package models

import (
	"time"

	"github.com/google/uuid"
)

// Metadata keys tracked on a verification claim. The bag is opaque to the
// claim store; these are the keys the orchestrator and reconciler agree on.
const (
	MetaApplicantID        = "applicant_id"
	MetaRunID              = "run_id"
	MetaRunStatus          = "run_status"
	MetaVerificationStatus = "verification_status"
	MetaVerifiedAt         = "verified_at"
)

// VerificationClaim tracks the verification state of one (user, claim URI)
// pair against one provider. It is created the first time a verification flow
// is initiated for the claim and mutated on every phase transition; deletion
// is owned by the claim store, never by this service.
type VerificationClaim struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	TenantID   string            `json:"-"`
	ProviderID string            `json:"providerId"`
	ClaimURI   string            `json:"uri"`
	Verified   bool              `json:"verified"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"-"`
	UpdatedAt  time.Time         `json:"-"`
}

// NewVerificationClaim builds an unverified claim with empty metadata.
func NewVerificationClaim(userID, tenantID, providerID, claimURI string, now time.Time) *VerificationClaim {
	return &VerificationClaim{
		ID:         uuid.NewString(),
		UserID:     userID,
		TenantID:   tenantID,
		ProviderID: providerID,
		ClaimURI:   claimURI,
		Verified:   false,
		Metadata:   map[string]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Meta returns the metadata value for key, or "" when the key (or the whole
// bag) is absent.
func (c *VerificationClaim) Meta(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

// SetMeta sets a metadata key, allocating the bag on first use.
func (c *VerificationClaim) SetMeta(key, value string) {
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	c.Metadata[key] = value
}

// ApplicantID returns the provider applicant id recorded on the claim, if any.
func (c *VerificationClaim) ApplicantID() string { return c.Meta(MetaApplicantID) }

// RunID returns the provider run id recorded on the claim, if any.
func (c *VerificationClaim) RunID() string { return c.Meta(MetaRunID) }

// RunStatus returns the recorded run status, or RunStatusUnknown when the
// claim has none or the stored value is not a recognized status.
func (c *VerificationClaim) RunStatus() RunStatus {
	s, err := ParseRunStatus(c.Meta(MetaRunStatus))
	if err != nil {
		return RunStatusUnknown
	}
	return s
}
