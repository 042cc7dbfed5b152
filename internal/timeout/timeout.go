// Package timeout provides a reusable bound for operations that have no
// intrinsic deadline.
//
// The scan pipeline races several collaborators against timers: page
// navigation, rule evaluation, and fingerprint extraction. Rather than
// repeating the goroutine-and-select dance at each call site, callers
// use Do and get back either the result or ErrTimeout.
package timeout

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the operation did not finish within its
// budget. Callers convert it into a recorded per-page error; it must
// never abort a batch.
var ErrTimeout = errors.New("operation timed out")

// Do runs fn with a context that expires after d and waits for either
// the result or the deadline. When the deadline wins, the fn goroutine
// is left to finish in the background with its context cancelled; fn
// must honor context cancellation if it holds scarce resources.
func Do[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	case out := <-done:
		return out.value, out.err
	}
}
