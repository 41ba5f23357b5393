package models

import (
	"bytes"
	"encoding/json"
	"time"

	dErrors "idvgate/pkg/domain-errors"
)

const (
	// ResourceTypeWorkflowRun is the only resource type this service consumes.
	ResourceTypeWorkflowRun = "workflow_run"
	// ActionWorkflowRunCompleted is the only webhook action this service consumes.
	ActionWorkflowRunCompleted = "workflow_run.completed"
)

// WebhookEvent is the provider's webhook envelope. It is decoded from the
// exact raw bytes that passed the signature check; handlers never re-serialize
// it.
type WebhookEvent struct {
	Payload WebhookPayload `json:"payload"`
}

// WebhookPayload carries the event classification plus the run object and the
// workflow output the reconciler reads.
type WebhookPayload struct {
	ResourceType string          `json:"resource_type"`
	Action       string          `json:"action"`
	Object       WebhookObject   `json:"object"`
	Resource     WebhookResource `json:"resource"`
}

// WebhookObject identifies the workflow run the event is about.
type WebhookObject struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completed_at_iso8601"`
}

// WebhookResource wraps the workflow output.
type WebhookResource struct {
	Output WorkflowOutput `json:"output"`
}

// WorkflowOutput holds the per-attribute comparison breakdown produced by the
// provider's document checks.
type WorkflowOutput struct {
	DataComparison map[string]AttributeResult `json:"data_comparison"`
}

// AttributeResult is one entry of the data-comparison breakdown. Result is a
// pointer because the provider emits explicit nulls for attributes it could
// not compare.
type AttributeResult struct {
	Result     *string        `json:"result"`
	Properties map[string]any `json:"properties,omitempty"`
}

// DecodeWebhookEvent parses the raw webhook body. Unknown fields are allowed
// (the provider adds fields without notice); a body that is not a JSON object
// is a client error.
func DecodeWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(rawBody))
	var ev WebhookEvent
	if err := dec.Decode(&ev); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed webhook payload")
	}
	return &ev, nil
}

// Completed reports whether the event is a completed workflow-run event, the
// only kind this service acts on.
func (e *WebhookEvent) Completed() bool {
	return e.Payload.ResourceType == ResourceTypeWorkflowRun &&
		e.Payload.Action == ActionWorkflowRunCompleted
}
