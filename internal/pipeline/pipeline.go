// Package pipeline runs the periodic jobs that keep the feed alive: the
// history collector and the batch simulator. Each job runs in a single
// goroutine, so runs of the same job never overlap.
package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Job is one periodic unit of work.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Run executes job on every interval tick until ctx is cancelled. The
// first run happens one interval after the call; callers warm up with
// RunOnce. Errors are logged; the loop keeps going.
func Run(ctx context.Context, job Job, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("job starting", "job", job.Name(), "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("job stopped", "job", job.Name())
			return
		case <-ticker.C:
			runLogged(ctx, job)
		}
	}
}

// RunAligned executes job at every wall-clock multiple of interval
// (hh:00, hh:10, ... for ten minutes) until ctx is cancelled, so each run
// lands at the start of the window it builds for.
func RunAligned(ctx context.Context, job Job, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("job starting", "job", job.Name(), "interval", interval.String(), "aligned", true)

	timer := time.NewTimer(time.Until(NextBoundary(time.Now(), interval)))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("job stopped", "job", job.Name())
			return
		case <-timer.C:
			runLogged(ctx, job)
			timer.Reset(time.Until(NextBoundary(time.Now(), interval)))
		}
	}
}

// NextBoundary returns the first multiple of interval strictly after t.
func NextBoundary(t time.Time, interval time.Duration) time.Time {
	return t.Truncate(interval).Add(interval)
}

func runLogged(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.RunOnce(ctx); err != nil {
		slog.Error("job run failed", "job", job.Name(), "err", err)
		return
	}
	slog.Debug("job run complete", "job", job.Name(), "took", time.Since(start).String())
}
