package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pastryshop/order-service/internal/order/domain"
)

// MalformedEventError wraps a payload that cannot be parsed into the order
// event envelope. It blocks the consumer's commit, so the broker redelivers.
type MalformedEventError struct {
	Cause error
}

func (e MalformedEventError) Error() string {
	return fmt.Sprintf("malformed order event: %v", e.Cause)
}

func (e MalformedEventError) Unwrap() error { return e.Cause }

// Processor turns raw stream payloads into review calls on the service.
type Processor struct {
	log *slog.Logger
	svc *Service
}

func NewProcessor(log *slog.Logger, svc *Service) *Processor {
	return &Processor{log: log, svc: svc}
}

// Decode parses the envelope. Field names match case-insensitively and enum
// fields accept their string form. A structurally empty payload decodes to
// (nil, nil): it is ignorable, not an error.
func (p *Processor) Decode(payload []byte) (*domain.OrderEvent, error) {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, MalformedEventError{Cause: err}
	}
	if event.Order.ID == "" {
		if event.ChangeReason == "" {
			return nil, nil
		}
		return nil, MalformedEventError{Cause: fmt.Errorf("%s event without order id", event.ChangeReason)}
	}
	return &event, nil
}

// Process decodes one payload and forwards it to ApplyReview. An ignorable
// empty event counts as successfully processed. Every other failure, including
// an unknown order id, propagates so the message is not committed.
func (p *Processor) Process(ctx context.Context, payload []byte) error {
	event, err := p.Decode(payload)
	if err != nil {
		return err
	}
	if event == nil {
		p.log.Info("ignoring empty order event")
		return nil
	}
	return p.svc.ApplyReview(ctx, *event)
}
