package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChangeReason tags an OrderEvent with what happened to the order.
type ChangeReason string

const (
	ReasonCreation ChangeReason = "Creation"
	ReasonReview   ChangeReason = "Review"
)

// ParseChangeReason matches the string form case-insensitively.
func ParseChangeReason(s string) (ChangeReason, error) {
	for _, r := range []ChangeReason{ReasonCreation, ReasonReview} {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown change reason %q", s)
}

func (r *ChangeReason) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*r = ""
		return nil
	}
	parsed, err := ParseChangeReason(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// OrderEvent is the wire envelope for order lifecycle announcements. The
// embedded order is a snapshot taken when the event was built; the same shape
// travels outbound on order creation and inbound on review.
type OrderEvent struct {
	ChangeReason ChangeReason `json:"changeReason"`
	Order        Order        `json:"order"`
}

func NewCreationEvent(o Order) OrderEvent {
	return OrderEvent{ChangeReason: ReasonCreation, Order: o}
}

func NewReviewEvent(o Order) OrderEvent {
	return OrderEvent{ChangeReason: ReasonReview, Order: o}
}
