package sorter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/meko-christian/mail-sorter/internal/mailstore"
)

const (
	backoffStep = 10 * time.Second
	backoffMax  = 5 * time.Minute
)

// Sweeper runs one sweep. *Coordinator implements it.
type Sweeper interface {
	Run(ctx context.Context) (Summary, error)
}

// Loop repeats sweeps every interval until ctx is cancelled. A connection
// failure is retried with a growing delay instead of the interval.
type Loop struct {
	Sweeper  Sweeper
	Interval time.Duration
	Log      *slog.Logger
	// OnSummary is called after every completed sweep.
	OnSummary func(Summary)
	Sleep     func(ctx context.Context, d time.Duration) error
}

// Serve blocks until ctx is done. It returns nil on cancellation.
func (l *Loop) Serve(ctx context.Context) error {
	sleep := l.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	connectionAttempt := 0

	for {
		// Check for cancellation at the start of each sweep
		if ctx.Err() != nil {
			l.Log.Info("Serve operation cancelled")
			return nil
		}

		summary, err := l.Sweeper.Run(ctx)

		var delay time.Duration
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			l.Log.Info("Serve operation cancelled")
			return nil
		case errors.Is(err, mailstore.ErrConnection):
			connectionAttempt++
			delay = backoff(connectionAttempt)
			l.Log.Info("Retrying connection after delay", "delay", delay, "next_attempt", connectionAttempt+1)
		case err != nil:
			connectionAttempt = 0
			delay = l.Interval
			l.Log.Error("Sweep failed", "run_id", summary.RunID, "error", err)
		default:
			connectionAttempt = 0
			delay = l.Interval
			if l.OnSummary != nil {
				l.OnSummary(summary)
			}
			l.Log.Info("Next sweep scheduled", "run_id", summary.RunID, "delay", delay)
		}

		if err := sleep(ctx, delay); err != nil {
			l.Log.Info("Serve operation cancelled")
			return nil
		}
	}
}

// backoff grows linearly with the attempt count, capped at six steps.
func backoff(attempt int) time.Duration {
	attempt = min(attempt, 6)

	return min(time.Duration(attempt)*backoffStep, backoffMax)
}
