// Package scheduler runs background tasks on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"ctsmirror/internal/logging"
)

type Task func(ctx context.Context) error

// Every runs task immediately and then on each tick until ctx is done.
// Runs never overlap; a slow run delays the next tick.
func Every(ctx context.Context, log *logging.Logger, interval time.Duration, name string, task Task) {
	if interval <= 0 {
		log.Warn("scheduler disabled", "task", name, "interval", interval)
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	run := func() {
		started := time.Now()
		if err := task(ctx); err != nil && ctx.Err() == nil {
			log.Error("scheduled task failed", "task", name, "err", err)
			return
		}
		log.Debug("scheduled task done", "task", name, "took", time.Since(started))
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
