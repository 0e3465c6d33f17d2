package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Dispatcher turns one outbox row into one kafka message.
type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	msg := kafka.Message{
		Topic: d.topic,
		Key:   []byte(event.Key),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}
