// Package jobs waits on long-running remote generation jobs by polling their
// status at a fixed interval until they report completion.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the polling cadence used when the caller passes a
// non-positive interval.
const DefaultInterval = 5 * time.Second

// ErrJobFailed wraps a terminal failure reported by the remote job.
var ErrJobFailed = errors.New("jobs: job failed")

// Status is one observation of a remote job.
type Status struct {
	// Done reports whether the job has finished, successfully or not.
	Done bool

	// Err is the terminal error for a failed job; nil while running and for
	// successful completion.
	Err error
}

// StatusFunc fetches the current status of a job.
type StatusFunc func(ctx context.Context) (Status, error)

// Option configures a [Wait] call.
type Option func(*waiter)

type waiter struct {
	onPoll func(Status)
}

// WithPollObserver registers fn to be called after every successful status
// check, including the one that observes completion. Useful for instrumenting
// poll cadence.
func WithPollObserver(fn func(Status)) Option {
	return func(w *waiter) { w.onPoll = fn }
}

// Wait polls check every interval until the job reports done, the check
// returns an error, or ctx is cancelled. The first check happens immediately.
func Wait(ctx context.Context, interval time.Duration, check StatusFunc, opts ...Option) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	var w waiter
	for _, opt := range opts {
		opt(&w)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := check(ctx)
		if err != nil {
			return fmt.Errorf("jobs: status check: %w", err)
		}
		if w.onPoll != nil {
			w.onPoll(status)
		}
		if status.Done {
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrJobFailed, status.Err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
