// Package scheduler runs periodic housekeeping jobs.
package scheduler

import (
	"context"
	"time"

	"leadgen-engine/internal/logger"
)

type Job func(ctx context.Context) error

// Every runs job once immediately and then every interval until ctx ends.
// Errors are logged; they never stop the schedule.
func Every(ctx context.Context, log logger.Logger, interval time.Duration, name string, job Job) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.String("job", name))

	run := func() {
		start := time.Now()
		if err := job(ctx); err != nil {
			log.Error("scheduled job failed", logger.Error(err))
			return
		}
		log.Debug("scheduled job done", logger.Duration("took", time.Since(start)))
	}

	t := time.NewTicker(interval)
	defer t.Stop()

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
