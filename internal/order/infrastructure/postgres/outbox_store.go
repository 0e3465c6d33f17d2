package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pastryshop/order-service/pkg/outbox"
)

// OutboxStore feeds the relay from the outbox table written by Store.Create.
type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_id, type, key, payload, created_at
		FROM outbox
		WHERE status = 'pending'
		   OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.Type, &event.Key, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + make_interval(secs => $2) WHERE id = ANY($3)`,
		relayID, lease.Seconds(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent' WHERE id = ANY($1)`, ids)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1 WHERE id=$1`, id, errMsg)
	return err
}
