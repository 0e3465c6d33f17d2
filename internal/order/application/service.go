package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pastryshop/order-service/internal/order/domain"
)

// Service orchestrates the order lifecycle: placement against external
// availability, and status reviews arriving from the event stream.
type Service struct {
	log       *slog.Logger
	store     OrderStore
	checker   AvailabilityChecker
	publisher EventPublisher
}

func NewService(log *slog.Logger, store OrderStore, checker AvailabilityChecker, publisher EventPublisher) *Service {
	return &Service{log: log, store: store, checker: checker, publisher: publisher}
}

// PlaceOrder checks every distinct requested product concurrently, waits for
// all checks, and only then decides. A lookup I/O error fails the whole
// placement; otherwise the first unavailable product in request order is
// reported as an UnavailableProductError. On success the order is stored and a
// Creation event is published keyed by customer id. A publish failure is
// returned to the caller but the stored order is kept.
func (s *Service) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}

	// One check per distinct product name, results keyed by first appearance
	// so the failure decision follows request order, not map order.
	index := make(map[string]int, len(req.ProductQuantities))
	var names []string
	for _, pq := range req.ProductQuantities {
		if _, ok := index[pq.ProductName]; !ok {
			index[pq.ProductName] = len(names)
			names = append(names, pq.ProductName)
		}
	}

	available := make([]bool, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			ok, err := s.checker.CheckAvailable(gctx, name)
			if err != nil {
				return fmt.Errorf("availability check for %q: %w", name, err)
			}
			available[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Order{}, err
	}

	for _, pq := range req.ProductQuantities {
		if !available[index[pq.ProductName]] {
			return domain.Order{}, domain.UnavailableProductError{ProductName: pq.ProductName}
		}
	}

	order := domain.NewOrder(uuid.NewString(), req)
	if err := s.store.Create(ctx, order); err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order created", "order_id", order.ID, "customer_id", order.CustomerID)

	if err := s.publisher.Publish(ctx, domain.NewCreationEvent(order)); err != nil {
		// The order stays stored; the caller decides whether to compensate.
		s.log.Error("creation event publish failed", "order_id", order.ID, "err", err)
		return order, err
	}
	return order, nil
}

// ApplyReview moves the order named by the event to the event's status. The
// store serializes the write per order id and rejects illegal transitions, so
// a redelivered review cannot corrupt a terminal order.
func (s *Service) ApplyReview(ctx context.Context, event domain.OrderEvent) error {
	id := event.Order.ID
	if err := s.store.UpdateStatus(ctx, id, event.Order.Status); err != nil {
		return err
	}
	s.log.Info("review applied", "order_id", id, "status", event.Order.Status)
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.store.Get(ctx, id)
}
