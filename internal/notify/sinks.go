package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"riskgate/internal/platform/kafka"
	audit "riskgate/pkg/platform/audit"
)

// Producer is the subset of the kafka producer the sinks use.
type Producer interface {
	Produce(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes approval events keyed by payout so every event for one
// payout lands on the same partition.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Send(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.producer.Produce(ctx, kafka.Message{
		Topic:   s.topic,
		Key:     []byte(e.PayoutID),
		Value:   payload,
		Headers: map[string]string{"event_type": string(e.Type), "audience": string(e.Audience)},
	})
}

// LogSink writes notifications to the log, for deployments without a broker.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(ctx context.Context, e Event) error {
	s.Logger.InfoContext(ctx, "approval notification",
		"type", string(e.Type),
		"audience", string(e.Audience),
		"approval_id", e.ApprovalID,
		"payout_id", e.PayoutID,
		"status", e.Status,
	)
	return nil
}

// SecuritySink forwards batches from the security event publisher to Kafka.
type SecuritySink struct {
	producer Producer
	topic    string
}

func NewSecuritySink(producer Producer, topic string) *SecuritySink {
	return &SecuritySink{producer: producer, topic: topic}
}

func (s *SecuritySink) Write(ctx context.Context, events []audit.SecurityEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal security event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Topic:   s.topic,
			Key:     []byte(e.Subject),
			Value:   payload,
			Headers: map[string]string{"severity": string(e.Severity)},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	return s.producer.Produce(ctx, msgs...)
}
