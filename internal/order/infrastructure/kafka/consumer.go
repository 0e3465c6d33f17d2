package kafka

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pastryshop/order-service/pkg/idempotency"
	"github.com/pastryshop/order-service/pkg/tracing"
)

const defaultBackoff = 5 * time.Second

// Reader is the slice of kafka.Reader the consumer needs; fakes implement it
// in tests.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Processor handles one raw payload; a nil return allows the commit.
type Processor interface {
	Process(ctx context.Context, payload []byte) error
}

// NewReader builds the group reader for the reviewed-orders topic.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

// Consumer is the long-running review loop: fetch one message, process it,
// and only then commit its offset. Nothing is processed concurrently, which
// keeps per-partition ordering at the cost of throughput.
type Consumer struct {
	log     *slog.Logger
	reader  Reader
	proc    Processor
	idem    *idempotency.Store
	backoff time.Duration
	tracer  trace.Tracer
}

// NewConsumer wires the loop. idem may be nil to disable duplicate tracking;
// backoff 0 selects the 5s default used after unexpected errors.
func NewConsumer(log *slog.Logger, reader Reader, proc Processor, idem *idempotency.Store, backoff time.Duration) *Consumer {
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Consumer{
		log:     log,
		reader:  reader,
		proc:    proc,
		idem:    idem,
		backoff: backoff,
		tracer:  otel.Tracer("order-review-consumer"),
	}
}

// Run polls until ctx is cancelled. The reader is closed exactly once, on
// every exit path.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		_ = c.reader.Close()
	}()
	c.log.Info("review consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.Info("review consumer stopping")
				return nil
			}
			if isTransient(err) {
				c.log.Error("fetch failed", "err", err)
				continue
			}
			c.log.Error("unexpected consume error", "err", err)
			c.pause(ctx)
			continue
		}

		if c.idem != nil {
			key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
			seen, err := c.idem.Seen(ctx, key)
			if err != nil {
				c.log.Error("idempotency check failed", "err", err)
			} else if seen {
				c.log.Info("duplicate message skipped", "key", key)
				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.log.Error("offset commit failed", "offset", msg.Offset, "err", err)
				}
				continue
			}
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "ProcessOrderReviewed")
		err = c.proc.Process(msgCtx, msg.Value)
		span.End()
		if err != nil {
			// No commit: the broker redelivers. Poison payloads loop here,
			// bounded only by the backoff.
			c.log.Error("review processing failed", "partition", msg.Partition, "offset", msg.Offset, "err", err)
			c.pause(ctx)
			continue
		}

		if c.idem != nil {
			// Marked only after processing succeeds, so a failed delivery is
			// never mistaken for a duplicate on redelivery. A failed mark is
			// tolerable: the worst case is one extra processing pass.
			key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
			if err := c.idem.Mark(ctx, key); err != nil {
				c.log.Error("idempotency mark failed", "key", key, "err", err)
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("offset commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) pause(ctx context.Context) {
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func isTransient(err error) bool {
	var ke kafka.Error
	if errors.As(err, &ke) {
		return ke.Temporary()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
