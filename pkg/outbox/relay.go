package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// Relay drains pending outbox rows on a fixed tick. Rows are locked with a
// lease so a crashed relay's batch becomes visible again.
type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string) *Relay {
	return &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
			if err != nil {
				r.log.Error("relay lock batch failed", "err", err)
				continue
			}
			if len(events) == 0 {
				continue
			}

			sent := make([]int64, 0, len(events))
			for _, e := range events {
				if err := r.dispatch.Dispatch(ctx, e); err != nil {
					_ = r.store.MarkFailed(ctx, e.ID, err.Error())
					continue
				}
				sent = append(sent, e.ID)
			}
			if len(sent) > 0 {
				if err := r.store.MarkSent(ctx, sent); err != nil {
					r.log.Error("relay mark sent failed", "err", err)
				}
			}
		}
	}
}
