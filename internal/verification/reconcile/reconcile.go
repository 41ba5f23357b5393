// Package reconcile maps a provider's data-comparison breakdown back onto the
// verification claims a run was started for.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"idvgate/internal/verification/models"
	dErrors "idvgate/pkg/domain-errors"
)

// Engine applies comparison results to claims. It is stateless; a single
// instance is shared by the whole service.
type Engine struct {
	log *slog.Logger
}

// NewEngine builds an engine. A nil logger falls back to slog.Default.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log}
}

// Reconcile walks the claims of a completed run and marks each verified or
// not from the comparison breakdown.
//
// Name resolution is two-stage: the claim URI is first mapped to a provider
// attribute name via claimMappings, then optionally remapped through
// attributeAliases (e.g. "dob" to "date_of_birth"). A claim with no mapping
// is logged and skipped, its verification state untouched. A mapped claim
// whose attribute is absent from the breakdown, or present with a null
// result, fails the whole reconciliation with a client error naming the
// claim.
//
// Claims are mutated in place; the caller persists them.
func (e *Engine) Reconcile(
	ctx context.Context,
	results map[string]models.AttributeResult,
	claims []*models.VerificationClaim,
	claimMappings map[string]string,
	attributeAliases map[string]string,
	completedAt time.Time,
) error {
	if results == nil {
		return dErrors.New(dErrors.CodeBadRequest, "workflow output has no data comparison")
	}

	for _, claim := range claims {
		attr, ok := claimMappings[claim.ClaimURI]
		if !ok || attr == "" {
			e.log.DebugContext(ctx, "claim has no provider mapping, skipping",
				"claim_uri", claim.ClaimURI, "user_id", claim.UserID)
			continue
		}
		if alias, ok := attributeAliases[attr]; ok && alias != "" {
			attr = alias
		}

		entry, ok := results[attr]
		if !ok {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"no comparison result for claim %s of user %s", claim.ClaimURI, claim.UserID).
				WithDescription("attribute %q is absent from the workflow output", attr)
		}
		if entry.Result == nil {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"comparison result for claim %s of user %s is null", claim.ClaimURI, claim.UserID).
				WithDescription("attribute %q was not compared by the provider", attr)
		}

		claim.Verified = models.ParseComparisonResult(*entry.Result) == models.ComparisonClear
		claim.SetMeta(models.MetaVerificationStatus, *entry.Result)
		claim.SetMeta(models.MetaVerifiedAt, completedAt.UTC().Format(time.RFC3339))
	}
	return nil
}
