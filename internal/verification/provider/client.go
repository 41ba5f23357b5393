package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"idvgate/internal/verification/models"
	dErrors "idvgate/pkg/domain-errors"
)

const (
	defaultTimeout = 10 * time.Second
	maxResponseLen = 1 << 20
)

// Applicant is the provider-side subject of a verification.
type Applicant struct {
	ID string `json:"id"`
}

// WorkflowRun is a provider workflow run as returned by the API.
type WorkflowRun struct {
	ID          string                `json:"id"`
	ApplicantID string                `json:"applicant_id"`
	WorkflowID  string                `json:"workflow_id"`
	Status      string                `json:"status"`
	Output      models.WorkflowOutput `json:"output"`
}

// SDKToken authorizes the tenant's frontend SDK for one applicant.
type SDKToken struct {
	Token string `json:"token"`
}

// API is the slice of the provider's REST API this service drives.
type API interface {
	CreateApplicant(ctx context.Context, cfg *Config, attrs map[string]string) (*Applicant, error)
	UpdateApplicant(ctx context.Context, cfg *Config, applicantID string, attrs map[string]string) (*Applicant, error)
	CreateWorkflowRun(ctx context.Context, cfg *Config, applicantID string) (*WorkflowRun, error)
	GetWorkflowRun(ctx context.Context, cfg *Config, runID string) (*WorkflowRun, error)
	CreateSDKToken(ctx context.Context, cfg *Config, applicantID string) (*SDKToken, error)
}

// Client calls the provider's REST API. Base URLs are tenant-supplied, so the
// default transport is SSRF-guarded; it refuses private, loopback and
// link-local destinations.
type Client struct {
	http   *http.Client
	log    *slog.Logger
	tracer trace.Tracer
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient swaps the transport. Tests use this to reach httptest
// servers, which the guarded transport would refuse.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient builds a provider API client.
func NewClient(opts ...ClientOption) *Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(defaultTimeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	c := &Client{
		http:   safeurl.Client(config).Client,
		log:    slog.Default(),
		tracer: otel.Tracer("idvgate/provider"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateApplicant registers a new applicant from the user's attribute values.
func (c *Client) CreateApplicant(ctx context.Context, cfg *Config, attrs map[string]string) (*Applicant, error) {
	var out Applicant
	if err := c.do(ctx, cfg, http.MethodPost, "/applicants", attrs, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateApplicant replaces the attribute values of an existing applicant.
func (c *Client) UpdateApplicant(ctx context.Context, cfg *Config, applicantID string, attrs map[string]string) (*Applicant, error) {
	var out Applicant
	path := "/applicants/" + applicantID
	if err := c.do(ctx, cfg, http.MethodPut, path, attrs, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateWorkflowRun starts the configured workflow for an applicant.
func (c *Client) CreateWorkflowRun(ctx context.Context, cfg *Config, applicantID string) (*WorkflowRun, error) {
	body := map[string]string{
		"workflow_id":  cfg.WorkflowID,
		"applicant_id": applicantID,
	}
	var out WorkflowRun
	if err := c.do(ctx, cfg, http.MethodPost, "/workflow_runs", body, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWorkflowRun fetches the current state of a run.
func (c *Client) GetWorkflowRun(ctx context.Context, cfg *Config, runID string) (*WorkflowRun, error) {
	var out WorkflowRun
	if err := c.do(ctx, cfg, http.MethodGet, "/workflow_runs/"+runID, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSDKToken mints a frontend SDK token for an applicant.
func (c *Client) CreateSDKToken(ctx context.Context, cfg *Config, applicantID string) (*SDKToken, error) {
	body := map[string]string{"applicant_id": applicantID}
	var out SDKToken
	if err := c.do(ctx, cfg, http.MethodPost, "/sdk_token", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, cfg *Config, method, path string, body any, wantStatus int, out any) error {
	ctx, span := c.tracer.Start(ctx, "provider."+method+" "+path)
	defer span.End()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encoding provider request")
		}
		reader = bytes.NewReader(encoded)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "building provider request")
	}
	req.Header.Set("Authorization", "Token token="+cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "calling verification provider")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "reading provider response")
	}

	if resp.StatusCode != wantStatus {
		return c.statusError(ctx, method, path, resp.StatusCode, payload)
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "decoding provider response")
		}
	}
	return nil
}

func (c *Client) statusError(ctx context.Context, method, path string, status int, payload []byte) error {
	c.log.WarnContext(ctx, "provider call failed",
		"method", method, "path", path, "status", status, "body_len", len(payload))

	switch {
	case status == http.StatusUnauthorized:
		return dErrors.New(dErrors.CodeUnauthorized, "provider rejected the api token")
	case status == http.StatusNotFound:
		return dErrors.New(dErrors.CodeNotFound, "provider resource not found")
	case status == http.StatusUnprocessableEntity && path == "/workflow_runs":
		return dErrors.New(dErrors.CodeValidation, "provider rejected the workflow run").
			WithDescription("check the configured workflow id")
	case status >= 400 && status < 500:
		return dErrors.Newf(dErrors.CodeBadRequest, "provider rejected the request with status %d", status)
	default:
		return dErrors.Newf(dErrors.CodeUnavailable, "provider returned status %d", status)
	}
}
