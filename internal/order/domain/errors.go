package domain

import "fmt"

// UnavailableProductError is the business rejection of an order: a requested
// product is out of stock. It names exactly one product, the first unavailable
// one in request order.
type UnavailableProductError struct {
	ProductName string
}

func (e UnavailableProductError) Error() string {
	return fmt.Sprintf("product %q is not available", e.ProductName)
}

type OrderNotFoundError struct {
	ID string
}

func (e OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.ID)
}

// InvalidTransitionError reports a review that would violate the order state
// machine, for example a second review landing on a terminal order.
type InvalidTransitionError struct {
	ID   string
	From OrderStatus
	To   OrderStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot transition from %s to %s", e.ID, e.From, e.To)
}
