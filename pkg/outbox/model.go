// Package outbox couples a state write with its event publication: the event
// row is inserted in the same transaction as the order, and a relay publishes
// pending rows asynchronously. This closes the dual-write gap of publishing
// directly after the store succeeds.
package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

type Event struct {
	ID          int64
	AggregateID string
	Type        string
	// Key becomes the kafka partition key; for order events it is the
	// customer id, which preserves per-customer ordering.
	Key        string
	Payload    []byte
	CreatedAt  time.Time
	Status     Status
	RetryCount int
	LastError  *string
}
