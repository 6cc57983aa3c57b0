package account

import (
	"context"
	"time"

	"session-service/internal/auth"
)

// withTimeout races fn against a timer. When the timer wins the call is
// abandoned: its context is cancelled but fn may keep running, and its
// result is dropped into a buffered channel nobody reads.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	go func() {
		v, err := fn(callCtx)
		done <- result{v: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.v, r.err
	case <-timer.C:
		return zero, auth.ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
