package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// pollUntil calls check every interval until it succeeds. A zero timeout
// waits indefinitely; the wait always ends when ctx is done.
func pollUntil(ctx context.Context, interval, timeout time.Duration, check func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, check()
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return fmt.Errorf("%w after %s: %w", ErrReadinessTimeout, timeout, err)
}
