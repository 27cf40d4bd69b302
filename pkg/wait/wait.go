// Package wait polls for UI state instead of sleeping for a fixed time.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
)

// Default polling parameters.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 250 * time.Millisecond
)

// Condition reports whether the awaited state holds. Returning an error
// stops the wait immediately.
type Condition func(ctx context.Context) (bool, error)

// errNotYet marks an attempt where the condition did not hold.
var errNotYet = errors.New("condition not met yet")

// Until polls cond every interval until it holds, it returns an error, or
// timeout elapses. A timeout is reported as core.ErrWaitTimeout; a
// condition error is returned unchanged. The condition is always
// evaluated at least once.
func Until(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval > timeout {
		interval = timeout
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	attempts := 0
	var condErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		ok, err := cond(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			condErr = err
			return struct{}{}, backoff.Permanent(err)
		case err != nil, !ok:
			// an error after our deadline means the attempt was cut off
			return struct{}{}, errNotYet
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
	)

	switch {
	case err == nil:
		return nil
	case condErr != nil:
		return condErr
	case parent.Err() != nil:
		return context.Cause(parent)
	default:
		return core.ErrWaitTimeout.
			WithMessage(fmt.Sprintf("condition not met within %s", timeout)).
			WithDetails(map[string]interface{}{"attempts": attempts})
	}
}

// Pause sleeps for d unless ctx is done first. A non-positive d returns
// immediately.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
