package relay

import (
	"context"
	"time"
)

// RunSweeper periodically prunes stale waiting queue entries until the
// context is cancelled. It is pure maintenance: paired connections and
// the registry itself are never touched.
func (r *Relay) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := r.clock.Ticker(interval)
	defer ticker.Stop()

	r.logger.Debug().Dur("interval", interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug().Msg("sweeper stopped")
			return
		case <-ticker.C:
			r.SweepStale()
		}
	}
}
