package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idvgate/pkg/domain-errors"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *Config) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &Config{
		APIToken:   "token-123",
		BaseURL:    srv.URL,
		WorkflowID: "wf-1",
	}
	return NewClient(WithHTTPClient(srv.Client())), cfg
}

func TestCreateApplicant(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	client, cfg := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/applicants", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"applicant-1"}`))
	})

	applicant, err := client.CreateApplicant(context.Background(), cfg,
		map[string]string{"first_name": "Ada", "last_name": "Lovelace"})
	require.NoError(t, err)

	assert.Equal(t, "applicant-1", applicant.ID)
	assert.Equal(t, "Token token=token-123", gotAuth)
	assert.Equal(t, "Ada", gotBody["first_name"])
}

func TestUpdateApplicant(t *testing.T) {
	client, cfg := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/applicants/applicant-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"applicant-1"}`))
	})

	applicant, err := client.UpdateApplicant(context.Background(), cfg, "applicant-1",
		map[string]string{"first_name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "applicant-1", applicant.ID)
}

func TestCreateWorkflowRun(t *testing.T) {
	client, cfg := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wf-1", body["workflow_id"])
		assert.Equal(t, "applicant-1", body["applicant_id"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"run-1","status":"awaiting_input"}`))
	})

	run, err := client.CreateWorkflowRun(context.Background(), cfg, "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "awaiting_input", run.Status)
}

func TestCreateWorkflowRunBadWorkflowID(t *testing.T) {
	client, cfg := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"validation_error"}}`))
	})

	_, err := client.CreateWorkflowRun(context.Background(), cfg, "applicant-1")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestGetWorkflowRun(t *testing.T) {
	client, cfg := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/workflow_runs/run-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"run-1","status":"approved"}`))
	})

	run, err := client.GetWorkflowRun(context.Background(), cfg, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "approved", run.Status)
}

func TestCreateSDKToken(t *testing.T) {
	client, cfg := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sdk_token", r.URL.Path)
		_, _ = w.Write([]byte(`{"token":"sdk-token-xyz"}`))
	})

	token, err := client.CreateSDKToken(context.Background(), cfg, "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, "sdk-token-xyz", token.Token)
}

func TestUnauthorizedToken(t *testing.T) {
	client, cfg := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.CreateApplicant(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestNotFoundRun(t *testing.T) {
	client, cfg := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetWorkflowRun(context.Background(), cfg, "run-missing")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestServerErrorIsUpstream(t *testing.T) {
	client, cfg := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CreateSDKToken(context.Background(), cfg, "applicant-1")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}
