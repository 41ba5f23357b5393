package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idvgate/internal/verification/models"
	dErrors "idvgate/pkg/domain-errors"
)

func strPtr(s string) *string { return &s }

func claim(uri string) *models.VerificationClaim {
	return &models.VerificationClaim{
		ID:       "c-" + uri,
		UserID:   "user-1",
		ClaimURI: uri,
		Metadata: map[string]string{},
	}
}

var (
	mappings = map[string]string{
		"http://wso2.org/claims/givenname": "first_name",
		"http://wso2.org/claims/lastname":  "last_name",
		"http://wso2.org/claims/dob":       "dob",
	}
	aliases = map[string]string{"dob": "date_of_birth"}
)

func TestReconcileMarksClaims(t *testing.T) {
	completedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	results := map[string]models.AttributeResult{
		"first_name":    {Result: strPtr("clear")},
		"last_name":     {Result: strPtr("consider")},
		"date_of_birth": {Result: strPtr("clear")},
	}
	first := claim("http://wso2.org/claims/givenname")
	last := claim("http://wso2.org/claims/lastname")
	dob := claim("http://wso2.org/claims/dob")

	err := NewEngine(nil).Reconcile(context.Background(), results,
		[]*models.VerificationClaim{first, last, dob}, mappings, aliases, completedAt)
	require.NoError(t, err)

	assert.True(t, first.Verified)
	assert.False(t, last.Verified)
	assert.True(t, dob.Verified, "alias remap should resolve dob to date_of_birth")

	assert.Equal(t, "clear", first.Meta(models.MetaVerificationStatus))
	assert.Equal(t, "consider", last.Meta(models.MetaVerificationStatus))
	assert.Equal(t, "2024-03-01T10:00:00Z", first.Meta(models.MetaVerifiedAt))
}

func TestReconcileSkipsUnmappedClaims(t *testing.T) {
	unmapped := claim("http://wso2.org/claims/nickname")
	unmapped.Verified = true // pre-existing state must survive the skip

	err := NewEngine(nil).Reconcile(context.Background(),
		map[string]models.AttributeResult{"first_name": {Result: strPtr("clear")}},
		[]*models.VerificationClaim{unmapped}, mappings, aliases, time.Now())
	require.NoError(t, err)

	assert.True(t, unmapped.Verified)
	assert.Empty(t, unmapped.Meta(models.MetaVerificationStatus))
}

func TestReconcileMissingComparisonEntry(t *testing.T) {
	err := NewEngine(nil).Reconcile(context.Background(),
		map[string]models.AttributeResult{"last_name": {Result: strPtr("clear")}},
		[]*models.VerificationClaim{claim("http://wso2.org/claims/givenname")},
		mappings, aliases, time.Now())

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	assert.Contains(t, err.Error(), "http://wso2.org/claims/givenname")
	assert.Contains(t, err.Error(), "user-1")
}

func TestReconcileNullResult(t *testing.T) {
	err := NewEngine(nil).Reconcile(context.Background(),
		map[string]models.AttributeResult{"first_name": {Result: nil}},
		[]*models.VerificationClaim{claim("http://wso2.org/claims/givenname")},
		mappings, aliases, time.Now())

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	assert.Contains(t, err.Error(), "null")
}

func TestReconcileNilBreakdown(t *testing.T) {
	err := NewEngine(nil).Reconcile(context.Background(), nil,
		[]*models.VerificationClaim{claim("http://wso2.org/claims/givenname")},
		mappings, aliases, time.Now())

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestReconcileUnknownResultIsNotVerified(t *testing.T) {
	c := claim("http://wso2.org/claims/givenname")
	err := NewEngine(nil).Reconcile(context.Background(),
		map[string]models.AttributeResult{"first_name": {Result: strPtr("suspected")}},
		[]*models.VerificationClaim{c}, mappings, aliases, time.Now())

	require.NoError(t, err)
	assert.False(t, c.Verified)
	assert.Equal(t, "suspected", c.Meta(models.MetaVerificationStatus))
}
