package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type OrderStatus string

const (
	StatusCreated   OrderStatus = "Created"
	StatusValidated OrderStatus = "Validated"
	StatusRejected  OrderStatus = "Rejected"
)

// ParseOrderStatus matches the string form case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range []OrderStatus{StatusCreated, StatusValidated, StatusRejected} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

func (s *OrderStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	parsed, err := ParseOrderStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CanTransition reports whether the status move is legal: Created may move to
// Validated or Rejected, terminal states never move again.
func CanTransition(from, to OrderStatus) bool {
	return from == StatusCreated && (to == StatusValidated || to == StatusRejected)
}

type ProductQuantity struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

type Order struct {
	ID                string            `json:"id"`
	CustomerID        string            `json:"customerId"`
	ProductQuantities []ProductQuantity `json:"productQuantities"`
	TotalPrice        float64           `json:"totalPrice"`
	Status            OrderStatus       `json:"status"`
}

// OrderRequest is the transient input to order placement. It is never stored.
type OrderRequest struct {
	CustomerID        string            `json:"customerId"`
	ProductQuantities []ProductQuantity `json:"productQuantities"`
	TotalPrice        float64           `json:"totalPrice"`
}

func (r OrderRequest) Validate() error {
	if r.CustomerID == "" {
		return errors.New("customer id is required")
	}
	if len(r.ProductQuantities) == 0 {
		return errors.New("at least one product is required")
	}
	for _, pq := range r.ProductQuantities {
		if pq.ProductName == "" {
			return errors.New("product name is required")
		}
		if pq.Quantity <= 0 {
			return fmt.Errorf("quantity for %q must be positive", pq.ProductName)
		}
	}
	if r.TotalPrice < 0 {
		return errors.New("total price must not be negative")
	}
	return nil
}

func NewOrder(id string, req OrderRequest) Order {
	return Order{
		ID:                id,
		CustomerID:        req.CustomerID,
		ProductQuantities: req.ProductQuantities,
		TotalPrice:        req.TotalPrice,
		Status:            StatusCreated,
	}
}
