// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"idvgate/internal/audit"
)

// Publisher produces audit events to Kafka. Production is asynchronous;
// delivery failures are logged, not returned, so the flow path never blocks
// on the broker.
type Publisher struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

// NewPublisher connects a Kafka producer for the given brokers and topic.
func NewPublisher(brokers []string, topic string, log *slog.Logger) (*Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &Publisher{client: client, topic: topic, log: log}, nil
}

// Emit implements audit.Publisher. Events are keyed by tenant so one
// tenant's trail stays ordered within a partition.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.TenantID),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.log.ErrorContext(ctx, "audit event delivery failed",
				"action", event.Action, "tenant_id", event.TenantID, "error", err)
		}
	})
	return nil
}

// Close flushes pending records and shuts the producer down.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		p.client.Close()
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	p.client.Close()
	return nil
}
