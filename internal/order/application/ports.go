package application

import (
	"context"

	"github.com/pastryshop/order-service/internal/order/domain"
)

// OrderStore owns the canonical order records. Implementations must allow
// concurrent reads and serialize status writes per order id.
type OrderStore interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
}

// AvailabilityChecker is the external stock lookup. A false return is a
// business answer; an error is a transport failure.
type AvailabilityChecker interface {
	CheckAvailable(ctx context.Context, productName string) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}
