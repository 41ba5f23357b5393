package service

import (
	"context"

	"idvgate/internal/audit"
	"idvgate/internal/verification/models"
	"idvgate/internal/verification/signature"
	dErrors "idvgate/pkg/domain-errors"
	"idvgate/pkg/requestcontext"
)

// HandleWebhook processes one provider webhook delivery. rawBody must be the
// exact bytes read from the request; the signature covers them verbatim.
//
// Unlike the synchronous completion path, the webhook records the run's real
// ending status. Reconciliation of individual claims only happens for
// approved runs.
func (s *Service) HandleWebhook(ctx context.Context, tenantID, providerID string, rawBody []byte, signatureHex string) error {
	ctx, span := s.tracer.Start(ctx, "verification.HandleWebhook")
	defer span.End()

	err := s.handleWebhook(ctx, tenantID, providerID, rawBody, signatureHex)
	if err != nil {
		s.metrics.RecordWebhook("rejected")
		s.emitWebhookAudit(ctx, tenantID, providerID, audit.ActionWebhookRejected, err.Error())
		return err
	}
	return nil
}

func (s *Service) handleWebhook(ctx context.Context, tenantID, providerID string, rawBody []byte, signatureHex string) error {
	cfg, err := s.loadConfig(ctx, tenantID, providerID)
	if err != nil {
		return err
	}
	if err := signature.Verify(cfg.WebhookSecret, rawBody, signatureHex); err != nil {
		return err
	}

	ev, err := models.DecodeWebhookEvent(rawBody)
	if err != nil {
		return err
	}
	if !ev.Completed() {
		return dErrors.Newf(dErrors.CodeBadRequest, "unsupported webhook event %s/%s",
			ev.Payload.ResourceType, ev.Payload.Action)
	}
	runID := ev.Payload.Object.ID
	if runID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "webhook payload has no run id")
	}
	status, err := models.ParseRunStatus(ev.Payload.Object.Status)
	if err != nil {
		return err
	}

	seen, err := s.replays.Seen(ctx, providerID, runID, ev.Payload.Object.CompletedAt)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "checking webhook replay")
	}
	if seen {
		s.log.InfoContext(ctx, "duplicate webhook delivery acknowledged",
			"provider_id", providerID, "run_id", runID)
		s.metrics.RecordWebhook("replayed")
		return nil
	}

	claims, err := s.claims.GetClaimsByMetadata(ctx, tenantID, providerID, models.MetaRunID, runID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "resolving claims for run")
	}
	if len(claims) == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "no verification claims for run %s", runID)
	}

	userID := claims[0].UserID
	unlock := s.locks.Lock(tenantID + "|" + userID + "|" + providerID)
	defer unlock()

	// Claims already verified are settled; a later delivery must not rewrite
	// their status or un-verify them.
	pending := claims[:0]
	for _, c := range claims {
		if !c.Verified {
			pending = append(pending, c)
		}
	}

	for _, c := range pending {
		c.SetMeta(models.MetaRunStatus, string(status))
	}
	verified := 0
	if status == models.RunStatusApproved && len(pending) > 0 {
		err := s.reconciler.Reconcile(ctx, ev.Payload.Resource.Output.DataComparison,
			pending, cfg.ClaimMappings, cfg.AttributeAliases, ev.Payload.Object.CompletedAt)
		if err != nil {
			return err
		}
		for _, c := range pending {
			if c.Verified {
				verified++
			}
		}
	}

	for _, c := range pending {
		if err := s.claims.UpdateClaim(ctx, c); err != nil {
			return s.storeError(err, "updating verification claim")
		}
	}

	if err := s.replays.MarkProcessed(ctx, providerID, runID, ev.Payload.Object.CompletedAt); err != nil {
		s.log.ErrorContext(ctx, "recording webhook delivery", "run_id", runID, "error", err)
	}

	s.metrics.RecordWebhook("accepted")
	s.metrics.RecordClaimsVerified(verified)
	s.emitWebhookAudit(ctx, tenantID, providerID, audit.ActionWebhookAccepted, string(status))
	s.log.InfoContext(ctx, "webhook processed",
		"provider_id", providerID, "run_id", runID, "run_status", string(status),
		"claims", len(pending), "verified", verified)
	return nil
}

func (s *Service) emitWebhookAudit(ctx context.Context, tenantID, providerID, action, detail string) {
	event := audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		TenantID:   tenantID,
		ProviderID: providerID,
		Action:     action,
		Outcome:    outcomeFor(action),
		Detail:     detail,
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.log.ErrorContext(ctx, "emitting audit event", "action", action, "error", err)
	}
}

func outcomeFor(action string) string {
	if action == audit.ActionWebhookRejected {
		return "failure"
	}
	return "success"
}
