package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pastryshop/order-service/internal/order/domain"
)

// Store is the durable OrderStore. Create writes the order and its Creation
// event in one transaction; the outbox relay publishes the event later, so a
// broker outage cannot leave a stored order unannounced.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

// EnsureSchema creates the tables this store needs. Demo-grade migrations,
// run once at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id          TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			total_price DOUBLE PRECISION NOT NULL,
			status      TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS order_products (
			order_id     TEXT NOT NULL REFERENCES orders(id),
			position     INT NOT NULL,
			product_name TEXT NOT NULL,
			quantity     INT NOT NULL,
			PRIMARY KEY (order_id, position)
		);
		CREATE TABLE IF NOT EXISTS outbox (
			id           BIGSERIAL PRIMARY KEY,
			aggregate_id TEXT NOT NULL,
			type         TEXT NOT NULL,
			key          TEXT NOT NULL,
			payload      BYTEA NOT NULL,
			status       TEXT NOT NULL DEFAULT 'pending',
			relay_id     TEXT,
			lease_until  TIMESTAMPTZ,
			retry_count  INT NOT NULL DEFAULT 0,
			last_error   TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *Store) Create(ctx context.Context, o domain.Order) error {
	payload, err := json.Marshal(domain.NewCreationEvent(o))
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, customer_id, total_price, status) VALUES ($1,$2,$3,$4)`,
		o.ID, o.CustomerID, o.TotalPrice, o.Status)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, pq := range o.ProductQuantities {
		batch.Queue(`INSERT INTO order_products (order_id, position, product_name, quantity) VALUES ($1,$2,$3,$4)`,
			o.ID, i, pq.ProductName, pq.Quantity)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_id, type, key, payload) VALUES ($1,$2,$3,$4)`,
		o.ID, string(domain.ReasonCreation), o.CustomerID, payload)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := s.pool.QueryRow(ctx, `SELECT id, customer_id, total_price, status FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.CustomerID, &o.TotalPrice, &o.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.OrderNotFoundError{ID: id}
	}
	if err != nil {
		return domain.Order{}, err
	}

	rows, err := s.pool.Query(ctx, `SELECT product_name, quantity FROM order_products WHERE order_id=$1 ORDER BY position`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var pq domain.ProductQuantity
		if err := rows.Scan(&pq.ProductName, &pq.Quantity); err != nil {
			return domain.Order{}, err
		}
		o.ProductQuantities = append(o.ProductQuantities, pq)
	}
	return o, rows.Err()
}

// UpdateStatus is a compare-and-set on the status column: only an order still
// in Created moves. The database serializes concurrent reviews per row.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if !domain.CanTransition(domain.StatusCreated, status) {
		return domain.InvalidTransitionError{ID: id, From: domain.StatusCreated, To: status}
	}

	ct, err := s.pool.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1 AND status=$3`,
		id, status, domain.StatusCreated)
	if err != nil {
		return err
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var current domain.OrderStatus
	err = s.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OrderNotFoundError{ID: id}
	}
	if err != nil {
		return err
	}
	return domain.InvalidTransitionError{ID: id, From: current, To: status}
}
