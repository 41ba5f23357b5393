package models

import (
	"strings"

	dErrors "idvgate/pkg/domain-errors"
	platformstrings "idvgate/pkg/platform/strings"
)

// VerifyRequest is the body of POST /idv/verify. Claims name the claim URIs to
// verify; Properties carries flow parameters, of which only "status" is
// recognized today.
type VerifyRequest struct {
	UserID     string            `json:"userId,omitempty"`
	ProviderID string            `json:"providerId"`
	Claims     []string          `json:"claims"`
	Properties []RequestProperty `json:"properties"`
}

// RequestProperty is a name/value flow parameter.
type RequestProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PropertyStatus is the property carrying the requested flow phase.
const PropertyStatus = "status"

// FlowStatus extracts and parses the "status" property. Absent property and
// invalid value surface as the distinct errors ParseFlowStatus defines.
func (r *VerifyRequest) FlowStatus() (FlowStatus, error) {
	for _, p := range r.Properties {
		if strings.EqualFold(p.Name, PropertyStatus) {
			return ParseFlowStatus(p.Value)
		}
	}
	return ParseFlowStatus("")
}

// Validate checks the request shape common to every flow phase.
func (r *VerifyRequest) Validate() error {
	if strings.TrimSpace(r.ProviderID) == "" {
		return dErrors.New(dErrors.CodeValidation, "providerId is required")
	}
	if len(r.Claims) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one claim is required")
	}
	for _, c := range r.Claims {
		if strings.TrimSpace(c) == "" {
			return dErrors.New(dErrors.CodeValidation, "claim URIs must be non-empty")
		}
	}
	return nil
}

// NormalizedClaims returns the requested claim URIs trimmed and deduplicated,
// preserving order. Callers repeating a URI should not get duplicate claim
// records.
func (r *VerifyRequest) NormalizedClaims() []string {
	return platformstrings.DedupeAndTrim(r.Claims)
}

// VerifyResponse is the body returned by POST /idv/verify.
type VerifyResponse struct {
	Claims []*VerificationClaim `json:"claims"`
	// SDKToken is only set on the INITIATED and REINITIATED phases. It is
	// handed to the caller and never persisted.
	SDKToken string `json:"sdkToken,omitempty"`
}
