package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idvgate/pkg/domain-errors"
)

func TestDecodeWebhookEvent(t *testing.T) {
	body := []byte(`{
		"payload": {
			"resource_type": "workflow_run",
			"action": "workflow_run.completed",
			"object": {
				"id": "run-123",
				"status": "approved",
				"completed_at_iso8601": "2024-03-01T10:15:30Z"
			},
			"resource": {
				"output": {
					"data_comparison": {
						"first_name": {"result": "clear"},
						"date_of_birth": {"result": null}
					}
				}
			}
		}
	}`)

	ev, err := DecodeWebhookEvent(body)
	require.NoError(t, err)
	assert.True(t, ev.Completed())
	assert.Equal(t, "run-123", ev.Payload.Object.ID)
	assert.Equal(t, "approved", ev.Payload.Object.Status)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC), ev.Payload.Object.CompletedAt)

	dc := ev.Payload.Resource.Output.DataComparison
	require.Len(t, dc, 2)
	require.NotNil(t, dc["first_name"].Result)
	assert.Equal(t, "clear", *dc["first_name"].Result)
	assert.Nil(t, dc["date_of_birth"].Result)
}

func TestDecodeWebhookEventMalformed(t *testing.T) {
	_, err := DecodeWebhookEvent([]byte(`{"payload": `))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestCompletedRejectsOtherEvents(t *testing.T) {
	ev := &WebhookEvent{Payload: WebhookPayload{ResourceType: "check", Action: "workflow_run.completed"}}
	assert.False(t, ev.Completed())

	ev = &WebhookEvent{Payload: WebhookPayload{ResourceType: "workflow_run", Action: "workflow_run.started"}}
	assert.False(t, ev.Completed())
}
