package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"idvgate/internal/verification/models"
	"idvgate/pkg/platform/sentinel"
	"idvgate/pkg/requestcontext"
)

// PostgresStore persists claims in PostgreSQL. The metadata bag is a JSONB
// column; GetClaimsByMetadata relies on the @> containment operator.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL-backed claim store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const claimColumns = `id, user_id, tenant_id, provider_id, claim_uri, verified, metadata, created_at, updated_at`

func scanClaim(row pgx.Row) (*models.VerificationClaim, error) {
	var c models.VerificationClaim
	err := row.Scan(&c.ID, &c.UserID, &c.TenantID, &c.ProviderID, &c.ClaimURI,
		&c.Verified, &c.Metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectClaims(rows pgx.Rows) ([]*models.VerificationClaim, error) {
	defer rows.Close()
	var out []*models.VerificationClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetClaims implements ClaimStore.
func (s *PostgresStore) GetClaims(ctx context.Context, tenantID, userID, providerID string) ([]*models.VerificationClaim, error) {
	q := `SELECT ` + claimColumns + `
		FROM idv_claims
		WHERE tenant_id = $1 AND user_id = $2 AND provider_id = $3
		ORDER BY claim_uri`

	rows, err := s.pool.Query(ctx, q, tenantID, userID, providerID)
	if err != nil {
		return nil, fmt.Errorf("get claims: %w", err)
	}
	claims, err := collectClaims(rows)
	if err != nil {
		return nil, fmt.Errorf("get claims: %w", err)
	}
	return claims, nil
}

// GetClaim implements ClaimStore.
func (s *PostgresStore) GetClaim(ctx context.Context, tenantID, claimID string) (*models.VerificationClaim, error) {
	q := `SELECT ` + claimColumns + ` FROM idv_claims WHERE tenant_id = $1 AND id = $2`

	c, err := scanClaim(s.pool.QueryRow(ctx, q, tenantID, claimID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

// GetClaimsByMetadata implements ClaimStore.
func (s *PostgresStore) GetClaimsByMetadata(ctx context.Context, tenantID, providerID, key, value string) ([]*models.VerificationClaim, error) {
	q := `SELECT ` + claimColumns + `
		FROM idv_claims
		WHERE tenant_id = $1 AND provider_id = $2 AND metadata @> jsonb_build_object($3::text, $4::text)
		ORDER BY claim_uri`

	rows, err := s.pool.Query(ctx, q, tenantID, providerID, key, value)
	if err != nil {
		return nil, fmt.Errorf("get claims by metadata: %w", err)
	}
	claims, err := collectClaims(rows)
	if err != nil {
		return nil, fmt.Errorf("get claims by metadata: %w", err)
	}
	return claims, nil
}

// StoreClaims implements ClaimStore. The batch inserts inside one
// transaction; the unique index on (tenant_id, user_id, provider_id,
// claim_uri) turns duplicates into sentinel.ErrConflict.
func (s *PostgresStore) StoreClaims(ctx context.Context, claims []*models.VerificationClaim) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store claims: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := requestcontext.Now(ctx)
	const q = `
		INSERT INTO idv_claims
			(id, user_id, tenant_id, provider_id, claim_uri, verified, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

	for _, c := range claims {
		if _, err := tx.Exec(ctx, q, c.ID, c.UserID, c.TenantID, c.ProviderID,
			c.ClaimURI, c.Verified, c.Metadata, now); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("store claims: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store claims: %w", err)
	}
	return nil
}

// UpdateClaim implements ClaimStore.
func (s *PostgresStore) UpdateClaim(ctx context.Context, claim *models.VerificationClaim) error {
	const q = `
		UPDATE idv_claims
		SET verified = $3, metadata = $4, updated_at = $5
		WHERE tenant_id = $1 AND id = $2`

	tag, err := s.pool.Exec(ctx, q, claim.TenantID, claim.ID, claim.Verified,
		claim.Metadata, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
