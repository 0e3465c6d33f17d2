// Package memory holds orders in process. It is the default store: the
// service only needs a keyed container with per-id write serialization.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pastryshop/order-service/internal/order/domain"
)

type entry struct {
	mu    sync.Mutex
	order domain.Order
}

type Store struct {
	mu     sync.RWMutex
	orders map[string]*entry
}

func NewStore() *Store {
	return &Store{orders: make(map[string]*entry)}
}

func (s *Store) Create(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = &entry{order: cloned(o)}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	e, ok := s.orders[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Order{}, domain.OrderNotFoundError{ID: id}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloned(e.order), nil
}

// UpdateStatus applies the transition under the order's own lock, so reviews
// on different orders never block each other and a redelivered review cannot
// move a terminal order.
func (s *Store) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	s.mu.RLock()
	e, ok := s.orders[id]
	s.mu.RUnlock()
	if !ok {
		return domain.OrderNotFoundError{ID: id}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !domain.CanTransition(e.order.Status, status) {
		return domain.InvalidTransitionError{ID: id, From: e.order.Status, To: status}
	}
	e.order.Status = status
	return nil
}

// cloned copies the product slice so callers never alias stored state.
func cloned(o domain.Order) domain.Order {
	products := make([]domain.ProductQuantity, len(o.ProductQuantities))
	copy(products, o.ProductQuantities)
	o.ProductQuantities = products
	return o
}
