package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"paygate/internal/platform/kafka"
)

// SlogSink writes events to the structured log.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink builds a log-backed sink.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// Record implements Sink.
func (s *SlogSink) Record(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit event",
		"action", event.Action,
		"customer_id", event.TenantID,
		"provider", event.Provider,
		"provider_transaction_id", event.ProviderTransactionID,
		"refund_id", event.RefundID,
		"amount", event.Amount,
		"currency", event.Currency,
		"latency_ms", event.LatencyMS,
		"error_message", event.ErrorMessage,
		"trace_id", event.TraceID,
	)
	return nil
}

// KafkaSink publishes events to the audit topic, keyed by tenant so one
// tenant's trail stays ordered within a partition.
type KafkaSink struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaSink builds a kafka-backed sink.
func NewKafkaSink(producer *kafka.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

// Record implements Sink.
func (s *KafkaSink) Record(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.producer.Produce(ctx, &kafka.Message{
		Topic: s.topic,
		Key:   []byte(event.TenantID),
		Value: value,
		Headers: map[string]string{
			"action":   string(event.Action),
			"trace_id": event.TraceID,
		},
	})
}
