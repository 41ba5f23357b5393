package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"idvgate/pkg/platform/sentinel"
)

// PostgresConfigStore loads provider configs from PostgreSQL. Mapping tables
// are stored as JSONB.
type PostgresConfigStore struct {
	pool *pgxpool.Pool
}

// NewPostgresConfigStore constructs a PostgreSQL-backed config store.
func NewPostgresConfigStore(pool *pgxpool.Pool) *PostgresConfigStore {
	return &PostgresConfigStore{pool: pool}
}

// GetConfig implements ConfigStore.
func (s *PostgresConfigStore) GetConfig(ctx context.Context, tenantID, providerID string) (*Config, error) {
	const q = `
		SELECT provider_id, tenant_id, api_token, base_url, webhook_secret,
		       workflow_id, claim_mappings, attribute_aliases, enabled
		FROM idv_provider_configs
		WHERE tenant_id = $1 AND provider_id = $2`

	cfg := Config{}
	err := s.pool.QueryRow(ctx, q, tenantID, providerID).Scan(
		&cfg.ProviderID, &cfg.TenantID, &cfg.APIToken, &cfg.BaseURL,
		&cfg.WebhookSecret, &cfg.WorkflowID, &cfg.ClaimMappings,
		&cfg.AttributeAliases, &cfg.Enabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get provider config: %w", err)
	}
	return &cfg, nil
}

// UpsertConfig stores or replaces a tenant's provider config.
func (s *PostgresConfigStore) UpsertConfig(ctx context.Context, cfg *Config) error {
	const q = `
		INSERT INTO idv_provider_configs
			(tenant_id, provider_id, api_token, base_url, webhook_secret,
			 workflow_id, claim_mappings, attribute_aliases, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, provider_id) DO UPDATE SET
			api_token = EXCLUDED.api_token,
			base_url = EXCLUDED.base_url,
			webhook_secret = EXCLUDED.webhook_secret,
			workflow_id = EXCLUDED.workflow_id,
			claim_mappings = EXCLUDED.claim_mappings,
			attribute_aliases = EXCLUDED.attribute_aliases,
			enabled = EXCLUDED.enabled,
			updated_at = now()`

	_, err := s.pool.Exec(ctx, q, cfg.TenantID, cfg.ProviderID, cfg.APIToken,
		cfg.BaseURL, cfg.WebhookSecret, cfg.WorkflowID, cfg.ClaimMappings,
		cfg.AttributeAliases, cfg.Enabled)
	if err != nil {
		return fmt.Errorf("upsert provider config: %w", err)
	}
	return nil
}
