package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher delivers audit events to a sink. Emit is best-effort on the flow
// paths; failures are logged, never propagated into the business operation.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// MemoryPublisher collects events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Emit implements Publisher.
func (p *MemoryPublisher) Emit(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// LogPublisher writes events to the structured log. It is the sink of last
// resort when no broker is configured.
type LogPublisher struct {
	log *slog.Logger
}

// NewLogPublisher creates a log-backed publisher.
func NewLogPublisher(log *slog.Logger) *LogPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &LogPublisher{log: log}
}

// Emit implements Publisher.
func (p *LogPublisher) Emit(ctx context.Context, event Event) error {
	p.log.InfoContext(ctx, "audit event",
		"action", event.Action,
		"outcome", event.Outcome,
		"tenant_id", event.TenantID,
		"user_id", event.UserID,
		"provider_id", event.ProviderID,
		"detail", event.Detail,
	)
	return nil
}
