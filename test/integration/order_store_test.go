package integration

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/pastryshop/order-service/internal/order/domain"
	orderpg "github.com/pastryshop/order-service/internal/order/infrastructure/postgres"
)

func TestPostgresStoreLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	log := slog.New(slog.DiscardHandler)
	store := orderpg.NewStore(log, pool)
	require.NoError(t, store.EnsureSchema(ctx))

	order := domain.Order{
		ID:         "order-1",
		CustomerID: "123-456-789",
		ProductQuantities: []domain.ProductQuantity{
			{ProductName: "Millefeuille", Quantity: 1},
			{ProductName: "Eclair Cafe", Quantity: 1},
		},
		TotalPrice: 8.4,
		Status:     domain.StatusCreated,
	}
	require.NoError(t, store.Create(ctx, order))

	got, err := store.Get(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, order, got)

	// Creation must have left a pending outbox row keyed by the customer.
	outboxStore := orderpg.NewOutboxStore(log, pool)
	events, err := outboxStore.LockBatch(ctx, "test-relay", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "order-1", events[0].AggregateID)
	require.Equal(t, "123-456-789", events[0].Key)
	require.NoError(t, outboxStore.MarkSent(ctx, []int64{events[0].ID}))

	require.NoError(t, store.UpdateStatus(ctx, "order-1", domain.StatusValidated))
	got, err = store.Get(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusValidated, got.Status)

	var invalid domain.InvalidTransitionError
	require.ErrorAs(t, store.UpdateStatus(ctx, "order-1", domain.StatusRejected), &invalid)

	var notFound domain.OrderNotFoundError
	require.ErrorAs(t, store.UpdateStatus(ctx, "ghost", domain.StatusValidated), &notFound)
	_, err = store.Get(ctx, "ghost")
	require.ErrorAs(t, err, &notFound)
}
