package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/pastryshop/order-service/internal/order/domain"
	"github.com/pastryshop/order-service/pkg/tracing"
)

// MessageWriter is the slice of kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter builds the shared kafka writer used by the publisher and the
// outbox dispatcher.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Publisher serializes order events onto the created-orders topic, keyed by
// customer id so one customer's events stay in publish order within a
// partition. Transport errors propagate without retry.
type Publisher struct {
	log    *slog.Logger
	writer MessageWriter
	topic  string
}

func NewPublisher(log *slog.Logger, writer MessageWriter, topic string) *Publisher {
	return &Publisher{log: log, writer: writer, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.Order.CustomerID),
		Value:   payload,
		Headers: tracing.InjectKafkaHeaders(ctx, nil),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("order event publish failed", "order_id", event.Order.ID, "err", err)
		return err
	}
	p.log.Info("order event published", "order_id", event.Order.ID, "reason", event.ChangeReason)
	return nil
}
