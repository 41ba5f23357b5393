// Package service orchestrates identity verification flows against an
// external verification provider.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"idvgate/internal/audit"
	"idvgate/internal/userattrs"
	"idvgate/internal/verification/metrics"
	"idvgate/internal/verification/models"
	"idvgate/internal/verification/provider"
	"idvgate/internal/verification/reconcile"
	"idvgate/internal/verification/replay"
	"idvgate/internal/verification/store"
	dErrors "idvgate/pkg/domain-errors"
	"idvgate/pkg/platform/sentinel"
	"idvgate/pkg/requestcontext"
)

// Service drives the three-phase verification flow and consumes provider
// webhooks. All claim mutations for one (tenant, user, provider) triple are
// serialized through a keyed mutex.
type Service struct {
	claims     store.ClaimStore
	configs    provider.ConfigStore
	api        provider.API
	attrs      userattrs.Store
	reconciler *reconcile.Engine
	replays    replay.Store
	auditor    audit.Publisher
	metrics    *metrics.Metrics
	log        *slog.Logger
	tracer     trace.Tracer
	locks      *keyedMutex
}

// Option customizes the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics wires Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor wires an audit publisher.
func WithAuditor(p audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// WithReplayStore wires webhook replay protection.
func WithReplayStore(r replay.Store) Option {
	return func(s *Service) { s.replays = r }
}

// New constructs the verification service.
func New(claims store.ClaimStore, configs provider.ConfigStore, api provider.API, attrs userattrs.Store, opts ...Option) *Service {
	s := &Service{
		claims:  claims,
		configs: configs,
		api:     api,
		attrs:   attrs,
		replays: replay.NewMemoryStore(24 * time.Hour),
		auditor: audit.NewLogPublisher(nil),
		log:     slog.Default(),
		tracer:  otel.Tracer("idvgate/verification"),
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reconciler = reconcile.NewEngine(s.log)
	return s
}

// Execute runs one phase of the verification flow for a user's claims. The
// returned token is an SDK token on the INITIATED and REINITIATED phases and
// empty otherwise; it is handed to the caller and never persisted.
func (s *Service) Execute(ctx context.Context, userID, tenantID, providerID string, flowStatus models.FlowStatus, claimURIs []string) ([]*models.VerificationClaim, string, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Execute")
	defer span.End()

	cfg, err := s.loadConfig(ctx, tenantID, providerID)
	if err != nil {
		s.metrics.RecordFlowError(string(dErrors.CodeOf(err)))
		return nil, "", err
	}

	unlock := s.locks.Lock(tenantID + "|" + userID + "|" + providerID)
	defer unlock()

	var (
		claims []*models.VerificationClaim
		token  string
	)
	switch flowStatus {
	case models.FlowInitiated:
		claims, token, err = s.initiate(ctx, userID, tenantID, cfg, claimURIs)
	case models.FlowCompleted:
		claims, err = s.complete(ctx, userID, tenantID, cfg, claimURIs)
	case models.FlowReinitiated:
		claims, token, err = s.reinitiate(ctx, userID, tenantID, cfg, claimURIs)
	default:
		err = dErrors.Newf(dErrors.CodeValidation, "invalid flow status %q", flowStatus)
	}
	if err != nil {
		s.metrics.RecordFlowError(string(dErrors.CodeOf(err)))
		return nil, "", err
	}

	s.metrics.RecordFlow(string(flowStatus))
	s.emitFlowAudit(ctx, tenantID, userID, cfg.ProviderID, flowStatus)
	return claims, token, nil
}

// loadConfig resolves and validates the tenant's provider configuration. A
// missing or disabled provider and an incomplete config are all client
// problems.
func (s *Service) loadConfig(ctx context.Context, tenantID, providerID string) (*provider.Config, error) {
	cfg, err := s.configs.GetConfig(ctx, tenantID, providerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "verification provider %s is not configured", providerID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading provider configuration")
	}
	if !cfg.Enabled {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "verification provider %s is disabled", providerID)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initiate starts verification for the requested claims. An applicant
// recorded on an existing unverified claim is reused; otherwise a new one is
// created from the user's attribute values.
func (s *Service) initiate(ctx context.Context, userID, tenantID string, cfg *provider.Config, claimURIs []string) ([]*models.VerificationClaim, string, error) {
	existing, err := s.claims.GetClaims(ctx, tenantID, userID, cfg.ProviderID)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "loading verification claims")
	}
	byURI := make(map[string]*models.VerificationClaim, len(existing))
	applicantID := ""
	for _, c := range existing {
		byURI[c.ClaimURI] = c
		if !c.Verified && applicantID == "" {
			applicantID = c.ApplicantID()
		}
	}

	// Claims already carrying an applicant id are in flight; only the rest
	// start a new run.
	var pending []string
	for _, uri := range claimURIs {
		if c, ok := byURI[uri]; ok && c.ApplicantID() != "" {
			continue
		}
		pending = append(pending, uri)
	}
	if len(pending) == 0 {
		return nil, "", dErrors.New(dErrors.CodeConflict, "verification already initiated for the requested claims")
	}

	attrs, err := s.attributeValues(ctx, tenantID, userID, cfg, pending)
	if err != nil {
		return nil, "", err
	}

	if applicantID == "" {
		if len(attrs) == 0 {
			return nil, "", dErrors.New(dErrors.CodeValidation,
				"none of the requested claims map to a provider attribute")
		}
		applicant, err := s.createApplicant(ctx, cfg, attrs)
		if err != nil {
			return nil, "", err
		}
		applicantID = applicant.ID
	} else if len(attrs) > 0 {
		if _, err := s.updateApplicant(ctx, cfg, applicantID, attrs); err != nil {
			return nil, "", err
		}
	}

	run, err := s.createWorkflowRun(ctx, cfg, applicantID)
	if err != nil {
		return nil, "", err
	}
	sdkToken, err := s.createSDKToken(ctx, cfg, applicantID)
	if err != nil {
		return nil, "", err
	}

	now := requestcontext.Now(ctx)
	var toInsert, toUpdate, affected []*models.VerificationClaim
	for _, uri := range pending {
		c, ok := byURI[uri]
		if !ok {
			c = models.NewVerificationClaim(userID, tenantID, cfg.ProviderID, uri, now)
			toInsert = append(toInsert, c)
		} else {
			toUpdate = append(toUpdate, c)
		}
		c.Verified = false
		c.SetMeta(models.MetaApplicantID, applicantID)
		c.SetMeta(models.MetaRunID, run.ID)
		c.SetMeta(models.MetaRunStatus, string(models.RunStatusAwaitingInput))
		affected = append(affected, c)
	}
	if len(toInsert) > 0 {
		if err := s.claims.StoreClaims(ctx, toInsert); err != nil {
			return nil, "", s.storeError(err, "storing verification claims")
		}
	}
	for _, c := range toUpdate {
		if err := s.claims.UpdateClaim(ctx, c); err != nil {
			return nil, "", s.storeError(err, "updating verification claim")
		}
	}
	return affected, sdkToken.Token, nil
}

// complete polls the provider for the run's current status. An ending status
// is reported and stored as processing here; the authoritative result lands
// through the webhook.
func (s *Service) complete(ctx context.Context, userID, tenantID string, cfg *provider.Config, claimURIs []string) ([]*models.VerificationClaim, error) {
	claims, runID, err := s.claimsInFlight(ctx, userID, tenantID, cfg.ProviderID, claimURIs)
	if err != nil {
		return nil, err
	}

	run, err := s.getWorkflowRun(ctx, cfg, runID)
	if err != nil {
		return nil, err
	}
	status, err := models.ParseRunStatus(run.Status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "provider returned an unrecognized run status")
	}
	if status.Ending() {
		status = models.RunStatusProcessing
	}

	for _, c := range claims {
		if c.Verified {
			continue
		}
		c.SetMeta(models.MetaRunStatus, string(status))
		if err := s.claims.UpdateClaim(ctx, c); err != nil {
			return nil, s.storeError(err, "updating verification claim")
		}
	}
	return claims, nil
}

// reinitiate mints a fresh SDK token for an interrupted run. Only runs whose
// stored status is still awaiting_input can be resumed; the gate reads claim
// metadata and makes no provider call on rejection.
func (s *Service) reinitiate(ctx context.Context, userID, tenantID string, cfg *provider.Config, claimURIs []string) ([]*models.VerificationClaim, string, error) {
	claims, _, err := s.claimsInFlight(ctx, userID, tenantID, cfg.ProviderID, claimURIs)
	if err != nil {
		return nil, "", err
	}

	if status := claims[0].RunStatus(); status != models.RunStatusAwaitingInput {
		return nil, "", dErrors.Newf(dErrors.CodeConflict,
			"verification cannot be reinitiated while the run is %s", status)
	}

	applicantID := claims[0].ApplicantID()
	sdkToken, err := s.createSDKToken(ctx, cfg, applicantID)
	if err != nil {
		return nil, "", err
	}

	for _, c := range claims {
		c.SetMeta(models.MetaRunStatus, string(models.RunStatusAwaitingInput))
		if err := s.claims.UpdateClaim(ctx, c); err != nil {
			return nil, "", s.storeError(err, "updating verification claim")
		}
	}
	return claims, sdkToken.Token, nil
}

// claimsInFlight resolves the requested claims and the run they share. Claims
// that never started a run cannot be completed or reinitiated.
func (s *Service) claimsInFlight(ctx context.Context, userID, tenantID, providerID string, claimURIs []string) ([]*models.VerificationClaim, string, error) {
	existing, err := s.claims.GetClaims(ctx, tenantID, userID, providerID)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "loading verification claims")
	}
	byURI := make(map[string]*models.VerificationClaim, len(existing))
	for _, c := range existing {
		byURI[c.ClaimURI] = c
	}

	var claims []*models.VerificationClaim
	runID := ""
	for _, uri := range claimURIs {
		c, ok := byURI[uri]
		if !ok || c.RunID() == "" {
			continue
		}
		claims = append(claims, c)
		if runID == "" {
			runID = c.RunID()
		}
	}
	if runID == "" {
		return nil, "", dErrors.Newf(dErrors.CodeNotFound, "no workflow run found for user %s", userID)
	}
	return claims, runID, nil
}

// attributeValues maps the requested claim URIs onto provider attribute
// values. Unmapped claims are skipped; a mapped claim without a stored value
// is a client error, the provider cannot verify what the user never supplied.
func (s *Service) attributeValues(ctx context.Context, tenantID, userID string, cfg *provider.Config, claimURIs []string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, uri := range claimURIs {
		attr, ok := cfg.ClaimMappings[uri]
		if !ok || attr == "" {
			s.log.DebugContext(ctx, "claim has no provider mapping, skipping",
				"claim_uri", uri, "user_id", userID)
			continue
		}
		value, err := s.attrs.AttributeValue(ctx, tenantID, userID, uri)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Newf(dErrors.CodeValidation,
					"user has no value for claim %s", uri)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading user attributes")
		}
		attrs[attr] = value
	}
	return attrs, nil
}

func (s *Service) storeError(err error, message string) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, message)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, message)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}

func (s *Service) emitFlowAudit(ctx context.Context, tenantID, userID, providerID string, flowStatus models.FlowStatus) {
	action := audit.ActionFlowInitiated
	switch flowStatus {
	case models.FlowCompleted:
		action = audit.ActionFlowCompleted
	case models.FlowReinitiated:
		action = audit.ActionFlowReinitiated
	}
	event := audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		TenantID:   tenantID,
		UserID:     userID,
		ProviderID: providerID,
		Action:     action,
		Outcome:    "success",
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.log.ErrorContext(ctx, "emitting audit event", "action", action, "error", err)
	}
}

func (s *Service) createApplicant(ctx context.Context, cfg *provider.Config, attrs map[string]string) (*provider.Applicant, error) {
	defer s.timeProviderCall("create_applicant")()
	return s.api.CreateApplicant(ctx, cfg, attrs)
}

func (s *Service) updateApplicant(ctx context.Context, cfg *provider.Config, applicantID string, attrs map[string]string) (*provider.Applicant, error) {
	defer s.timeProviderCall("update_applicant")()
	return s.api.UpdateApplicant(ctx, cfg, applicantID, attrs)
}

func (s *Service) createWorkflowRun(ctx context.Context, cfg *provider.Config, applicantID string) (*provider.WorkflowRun, error) {
	defer s.timeProviderCall("create_workflow_run")()
	return s.api.CreateWorkflowRun(ctx, cfg, applicantID)
}

func (s *Service) getWorkflowRun(ctx context.Context, cfg *provider.Config, runID string) (*provider.WorkflowRun, error) {
	defer s.timeProviderCall("get_workflow_run")()
	run, err := s.api.GetWorkflowRun(ctx, cfg, runID)
	if err != nil && dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "workflow run not found at the provider")
	}
	return run, err
}

func (s *Service) createSDKToken(ctx context.Context, cfg *provider.Config, applicantID string) (*provider.SDKToken, error) {
	defer s.timeProviderCall("create_sdk_token")()
	return s.api.CreateSDKToken(ctx, cfg, applicantID)
}

func (s *Service) timeProviderCall(operation string) func() {
	start := time.Now()
	return func() {
		s.metrics.ObserveProviderCall(operation, time.Since(start).Seconds())
	}
}
