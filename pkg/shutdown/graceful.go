package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals derives a context cancelled on SIGINT or SIGTERM. Long-running
// loops observe the cancellation cooperatively between iterations.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
