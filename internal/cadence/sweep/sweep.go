// Package sweep runs a function on a fixed interval.
package sweep

import (
	"context"
	"time"

	"github.com/colonyops/cadence/internal/core/logging"
)

// Start runs pass once immediately and then every interval until ctx is
// cancelled. It blocks. A failing pass is logged and retried on the next tick.
func Start(ctx context.Context, interval time.Duration, pass func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := pass(ctx); err != nil && ctx.Err() == nil {
			logging.Component("sweep").Warn().Err(err).Msg("sweep pass failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
