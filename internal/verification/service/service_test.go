package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idvgate/internal/audit"
	"idvgate/internal/userattrs"
	"idvgate/internal/verification/models"
	"idvgate/internal/verification/provider"
	"idvgate/internal/verification/store"
	dErrors "idvgate/pkg/domain-errors"
	"idvgate/pkg/requestcontext"
)

const (
	testTenant   = "tenant-1"
	testUser     = "user-1"
	testProvider = "onfido-1"

	uriGivenName = "http://wso2.org/claims/givenname"
	uriLastName  = "http://wso2.org/claims/lastname"
	uriDOB       = "http://wso2.org/claims/dob"
)

// fakeAPI implements provider.API with per-call hooks and invocation
// counters.
type fakeAPI struct {
	createApplicantCalls int
	updateApplicantCalls int
	createRunCalls       int
	getRunCalls          int
	sdkTokenCalls        int

	lastApplicantAttrs map[string]string
	runStatus          string

	createApplicantErr error
	createRunErr       error
	getRunErr          error
	sdkTokenErr        error
}

func (f *fakeAPI) CreateApplicant(_ context.Context, _ *provider.Config, attrs map[string]string) (*provider.Applicant, error) {
	f.createApplicantCalls++
	f.lastApplicantAttrs = attrs
	if f.createApplicantErr != nil {
		return nil, f.createApplicantErr
	}
	return &provider.Applicant{ID: "applicant-1"}, nil
}

func (f *fakeAPI) UpdateApplicant(_ context.Context, _ *provider.Config, applicantID string, attrs map[string]string) (*provider.Applicant, error) {
	f.updateApplicantCalls++
	f.lastApplicantAttrs = attrs
	return &provider.Applicant{ID: applicantID}, nil
}

func (f *fakeAPI) CreateWorkflowRun(_ context.Context, _ *provider.Config, applicantID string) (*provider.WorkflowRun, error) {
	f.createRunCalls++
	if f.createRunErr != nil {
		return nil, f.createRunErr
	}
	return &provider.WorkflowRun{ID: "run-1", ApplicantID: applicantID, Status: "awaiting_input"}, nil
}

func (f *fakeAPI) GetWorkflowRun(_ context.Context, _ *provider.Config, runID string) (*provider.WorkflowRun, error) {
	f.getRunCalls++
	if f.getRunErr != nil {
		return nil, f.getRunErr
	}
	return &provider.WorkflowRun{ID: runID, Status: f.runStatus}, nil
}

func (f *fakeAPI) CreateSDKToken(_ context.Context, _ *provider.Config, _ string) (*provider.SDKToken, error) {
	f.sdkTokenCalls++
	if f.sdkTokenErr != nil {
		return nil, f.sdkTokenErr
	}
	return &provider.SDKToken{Token: "sdk-token-1"}, nil
}

type fixture struct {
	svc     *Service
	api     *fakeAPI
	claims  *store.MemoryStore
	configs *provider.MemoryConfigStore
	attrs   *userattrs.MemoryStore
	auditor *audit.MemoryPublisher
}

func testConfig() *provider.Config {
	return &provider.Config{
		ProviderID:    testProvider,
		TenantID:      testTenant,
		APIToken:      "token",
		BaseURL:       "https://api.example.com",
		WebhookSecret: "webhook-secret",
		WorkflowID:    "wf-1",
		ClaimMappings: map[string]string{
			uriGivenName: "first_name",
			uriLastName:  "last_name",
			uriDOB:       "dob",
		},
		AttributeAliases: map[string]string{"dob": "date_of_birth"},
		Enabled:          true,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		api:     &fakeAPI{runStatus: "awaiting_input"},
		claims:  store.NewMemoryStore(),
		configs: provider.NewMemoryConfigStore(),
		attrs:   userattrs.NewMemoryStore(),
		auditor: audit.NewMemoryPublisher(),
	}
	f.configs.Put(testConfig())
	f.attrs.Set(testTenant, testUser, uriGivenName, "Ada")
	f.attrs.Set(testTenant, testUser, uriLastName, "Lovelace")
	f.attrs.Set(testTenant, testUser, uriDOB, "1815-12-10")
	f.svc = New(f.claims, f.configs, f.api, f.attrs, WithAuditor(f.auditor))
	return f
}

func (f *fixture) storedClaims(t *testing.T) []*models.VerificationClaim {
	t.Helper()
	claims, err := f.claims.GetClaims(context.Background(), testTenant, testUser, testProvider)
	require.NoError(t, err)
	return claims
}

func TestInitiateStartsVerification(t *testing.T) {
	f := newFixture(t)

	claims, token, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName, uriLastName})
	require.NoError(t, err)

	assert.Equal(t, "sdk-token-1", token)
	require.Len(t, claims, 2)
	for _, c := range claims {
		assert.False(t, c.Verified)
		assert.Equal(t, "applicant-1", c.Meta(models.MetaApplicantID))
		assert.Equal(t, "run-1", c.Meta(models.MetaRunID))
		assert.Equal(t, "awaiting_input", c.Meta(models.MetaRunStatus))
	}
	assert.Equal(t, 1, f.api.createApplicantCalls)
	assert.Equal(t, 1, f.api.createRunCalls)
	assert.Equal(t, 1, f.api.sdkTokenCalls)
	assert.Equal(t, map[string]string{"first_name": "Ada", "last_name": "Lovelace"}, f.api.lastApplicantAttrs)

	stored := f.storedClaims(t)
	require.Len(t, stored, 2)
	for _, c := range stored {
		assert.NotContains(t, c.Metadata, "sdk_token", "sdk token must never be persisted")
	}
}

func TestInitiateReusesApplicantFromUnverifiedClaim(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.NoError(t, err)

	claims, token, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriDOB})
	require.NoError(t, err)

	assert.Equal(t, "sdk-token-1", token)
	require.Len(t, claims, 1)
	assert.Equal(t, "applicant-1", claims[0].Meta(models.MetaApplicantID))

	assert.Equal(t, 1, f.api.createApplicantCalls, "existing applicant must be reused")
	assert.Equal(t, 1, f.api.updateApplicantCalls)
	assert.Equal(t, map[string]string{"dob": "1815-12-10"}, f.api.lastApplicantAttrs)
	assert.Equal(t, 2, f.api.createRunCalls, "new claims start a fresh run")
}

func TestInitiateAlreadyInitiated(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.NoError(t, err)

	_, _, err = f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.Equal(t, 1, f.api.createRunCalls, "no second run for an in-flight claim")
}

func TestInitiateUnmappedClaimIsSkippedInApplicant(t *testing.T) {
	f := newFixture(t)

	claims, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName, "http://wso2.org/claims/nickname"})
	require.NoError(t, err)

	// The unmapped claim still gets a tracking record, it just contributes
	// nothing to the applicant.
	require.Len(t, claims, 2)
	assert.Equal(t, map[string]string{"first_name": "Ada"}, f.api.lastApplicantAttrs)
}

func TestInitiateAllClaimsUnmappedFails(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{"http://wso2.org/claims/nickname"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, 0, f.api.createApplicantCalls, "no applicant from an empty payload")
}

func TestInitiateMissingAttributeValue(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Execute(context.Background(), "user-without-attrs", testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, 0, f.api.createApplicantCalls)
}

func TestExecuteProviderNotConfigured(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, "unknown-provider",
		models.FlowInitiated, []string{uriGivenName})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestExecuteProviderDisabled(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig()
	cfg.Enabled = false
	f.configs.Put(cfg)

	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestExecuteIncompleteConfig(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig()
	cfg.WorkflowID = ""
	f.configs.Put(cfg)

	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCompletedMasksEndingStatus(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.NoError(t, err)

	for _, ending := range []string{"approved", "declined", "review"} {
		f.api.runStatus = ending
		claims, token, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
			models.FlowCompleted, []string{uriGivenName})
		require.NoError(t, err, ending)

		assert.Empty(t, token, "no sdk token on completion")
		require.Len(t, claims, 1)
		assert.Equal(t, "processing", claims[0].Meta(models.MetaRunStatus),
			"ending status %s must be reported as processing on the sync path", ending)
	}

	stored := f.storedClaims(t)
	assert.Equal(t, "processing", stored[0].Meta(models.MetaRunStatus))
}

func TestCompletedStoresNonEndingStatusVerbatim(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.NoError(t, err)

	f.api.runStatus = "abandoned"
	claims, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowCompleted, []string{uriGivenName})
	require.NoError(t, err)
	assert.Equal(t, "abandoned", claims[0].Meta(models.MetaRunStatus))
}

func TestCompletedWithoutRun(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowCompleted, []string{uriGivenName})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestReinitiateMintsNewToken(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.NoError(t, err)

	claims, token, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowReinitiated, []string{uriGivenName})
	require.NoError(t, err)

	assert.Equal(t, "sdk-token-1", token)
	require.Len(t, claims, 1)
	assert.Equal(t, "awaiting_input", claims[0].Meta(models.MetaRunStatus))
	assert.Equal(t, 2, f.api.sdkTokenCalls)
	assert.Equal(t, 1, f.api.createRunCalls, "reinitiation reuses the existing run")
	assert.Equal(t, 0, f.api.getRunCalls, "the gate reads claim metadata, not the provider")
}

func TestReinitiateNotAllowedWhileProcessing(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.NoError(t, err)

	stored := f.storedClaims(t)
	stored[0].SetMeta(models.MetaRunStatus, "processing")
	require.NoError(t, f.claims.UpdateClaim(context.Background(), stored[0]))

	// The provider still reports awaiting_input; the stored status decides.
	f.api.runStatus = "awaiting_input"
	_, _, err = f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowReinitiated, []string{uriGivenName})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.Equal(t, 0, f.api.getRunCalls, "a rejected reinitiation makes no provider call")
	assert.Equal(t, 1, f.api.sdkTokenCalls, "no new token on rejection")
}

func TestExecuteUsesRequestTime(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	_, _, err := f.svc.Execute(ctx, testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.NoError(t, err)

	stored := f.storedClaims(t)
	require.Len(t, stored, 1)
	assert.Equal(t, now, stored[0].CreatedAt)
}

func TestExecuteEmitsAudit(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Execute(context.Background(), testUser, testTenant, testProvider,
		models.FlowInitiated, []string{uriGivenName})
	require.NoError(t, err)

	events := f.auditor.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionFlowInitiated, events[0].Action)
	assert.Equal(t, testTenant, events[0].TenantID)
	assert.Equal(t, "success", events[0].Outcome)
}
