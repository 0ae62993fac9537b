package executor

import (
	"context"
	"time"
)

// Interruptible sleeps for d in at-most-1-second increments, calling
// reload after each increment; it returns ErrInterrupted the moment
// reload reports a cooperative stop request, per spec.md §5's burst-sleep
// cancellation model.
func Interruptible(ctx context.Context, d time.Duration, reload func() (stopRequested bool, err error)) error {
	deadline := time.Now().Add(d)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		wait := remaining
		if wait > time.Second {
			wait = time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		stop, err := reload()
		if err != nil {
			return err
		}
		if stop {
			return ErrInterrupted
		}
	}
}
