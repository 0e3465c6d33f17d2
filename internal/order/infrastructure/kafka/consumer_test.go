package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/pastryshop/order-service/pkg/idempotency"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     chan kafka.Message
	committed []kafka.Message
	closes    int
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{queue: make(chan kafka.Message, len(msgs)+8)}
	for _, m := range msgs {
		r.queue <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.queue:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func (r *fakeReader) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

type fakeProcessor struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
	failures int   // calls that return failErr before the processor recovers
	failErr  error // error for the first failures calls
}

func (p *fakeProcessor) Process(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	if p.failures > 0 {
		p.failures--
		return p.failErr
	}
	return p.err
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func runConsumer(t *testing.T, c *Consumer, ctx context.Context) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return done
}

func TestConsumerCommitsAfterSuccessfulProcessing(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "orders-reviewed", Offset: 1, Value: []byte(`{}`)})
	proc := &fakeProcessor{}
	c := NewConsumer(testLogger(), reader, proc, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := runConsumer(t, c, ctx)

	require.Eventually(t, func() bool { return reader.committedCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, proc.count())

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 1, reader.closeCount(), "reader must be closed exactly once")
}

func TestConsumerDoesNotCommitOnProcessingFailure(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "orders-reviewed", Offset: 7, Value: []byte(`broken`)})
	proc := &fakeProcessor{err: errors.New("order missing")}
	c := NewConsumer(testLogger(), reader, proc, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := runConsumer(t, c, ctx)

	require.Eventually(t, func() bool { return proc.count() >= 1 }, time.Second, 5*time.Millisecond)
	require.Zero(t, reader.committedCount(), "failed message must not be committed")

	cancel()
	require.NoError(t, <-done)
}

func TestConsumerStopsOnCancellation(t *testing.T) {
	reader := newFakeReader()
	c := NewConsumer(testLogger(), reader, &fakeProcessor{}, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := runConsumer(t, c, ctx)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
	require.Equal(t, 1, reader.closeCount())
	require.Zero(t, reader.committedCount())
}

// A delivery that fails must still be retried on redelivery: the dedup record
// is written only after successful processing, so the failed attempt leaves
// no trace that would make the retry look like a duplicate.
func TestConsumerRetriesFailedDeliveryDespiteDedup(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	idem := idempotency.NewStore(rdb, time.Minute)

	msg := kafka.Message{Topic: "orders-reviewed", Partition: 0, Offset: 42, Value: []byte(`{}`)}
	reader := newFakeReader(msg, msg)
	proc := &fakeProcessor{failures: 1, failErr: errors.New("order not found yet")}
	c := NewConsumer(testLogger(), reader, proc, idem, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := runConsumer(t, c, ctx)

	require.Eventually(t, func() bool { return reader.committedCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, proc.count(), "failed delivery must be processed again on redelivery")

	cancel()
	require.NoError(t, <-done)
}

func TestConsumerSkipsDuplicateDeliveries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	idem := idempotency.NewStore(rdb, time.Minute)

	msg := kafka.Message{Topic: "orders-reviewed", Partition: 0, Offset: 42, Value: []byte(`{}`)}
	reader := newFakeReader(msg, msg)
	proc := &fakeProcessor{}
	c := NewConsumer(testLogger(), reader, proc, idem, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := runConsumer(t, c, ctx)

	require.Eventually(t, func() bool { return reader.committedCount() == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, proc.count(), "redelivered offset must be processed once")

	cancel()
	require.NoError(t, <-done)
}
