// Package provider holds the verification provider's tenant configuration and
// the outbound API client.
package provider

import (
	"context"
	"strings"

	dErrors "idvgate/pkg/domain-errors"
)

// Config is a tenant's configuration for one verification provider.
type Config struct {
	ProviderID    string
	TenantID      string
	APIToken      string
	BaseURL       string
	WebhookSecret string
	WorkflowID    string
	// ClaimMappings maps local claim URIs to provider attribute names.
	ClaimMappings map[string]string
	// AttributeAliases remaps provider attribute names to the keys the
	// workflow output actually uses (e.g. dob to date_of_birth).
	AttributeAliases map[string]string
	Enabled          bool
}

// Validate checks that every scalar a flow needs is present. An incomplete
// config is a client problem: the tenant admin has not finished provider
// setup.
func (c *Config) Validate() error {
	missing := []string{}
	if strings.TrimSpace(c.APIToken) == "" {
		missing = append(missing, "api token")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "base url")
	}
	if strings.TrimSpace(c.WebhookSecret) == "" {
		missing = append(missing, "webhook secret")
	}
	if strings.TrimSpace(c.WorkflowID) == "" {
		missing = append(missing, "workflow id")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "provider configuration is incomplete").
			WithDescription("missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ConfigStore loads provider configuration per tenant.
type ConfigStore interface {
	// GetConfig returns the tenant's config for the provider. Absent configs
	// surface as sentinel.ErrNotFound.
	GetConfig(ctx context.Context, tenantID, providerID string) (*Config, error)
}
