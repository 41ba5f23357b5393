// Package audit captures the security-relevant actions of the verification
// service.
package audit

import "time"

// Actions emitted by the verification service.
const (
	ActionFlowInitiated   = "idv.flow_initiated"
	ActionFlowCompleted   = "idv.flow_completed"
	ActionFlowReinitiated = "idv.flow_reinitiated"
	ActionWebhookAccepted = "idv.webhook_accepted"
	ActionWebhookRejected = "idv.webhook_rejected"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	TenantID   string    `json:"tenantId"`
	UserID     string    `json:"userId,omitempty"`
	ProviderID string    `json:"providerId"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	ClientIP   string    `json:"clientIp,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
}
