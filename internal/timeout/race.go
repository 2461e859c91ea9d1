// Package timeout races a remote operation against a time budget.
package timeout

import (
	"context"
	"fmt"
	"time"

	svcErr "github.com/oggyb/edublin-connect/internal/errors"
)

// Op is a cancellable remote operation.
type Op[T any] func(ctx context.Context) (T, error)

type result[T any] struct {
	val T
	err error
}

// Race runs op and returns its result if it settles within budget.
// Otherwise it returns a KindTimeout error and cancels the context handed
// to op. Cancellation is cooperative: a write the backend committed before
// it noticed the cancellation still lands, so callers must treat a timed
// out write as having an unknown outcome. Late results are discarded.
//
// A parent context that ends first wins with its own error.
func Race[T any](ctx context.Context, name string, budget time.Duration, op Op[T]) (T, error) {
	var zero T
	if budget <= 0 {
		return zero, timedOut(name, budget)
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// buffered so a late op never blocks after we stop listening
	done := make(chan result[T], 1)
	go func() {
		v, err := op(opCtx)
		done <- result[T]{val: v, err: err}
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.val, r.err
	case <-timer.C:
		return zero, timedOut(name, budget)
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return zero, timedOut(name, budget)
		}
		return zero, ctx.Err()
	}
}

func timedOut(name string, budget time.Duration) error {
	return svcErr.E(svcErr.KindTimeout, name, fmt.Errorf("%s timed out after %s", name, budget))
}
