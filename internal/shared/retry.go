package shared

import (
	"context"
	"errors"
	"time"
)

// DefaultConflictAttempts bounds how often a conflicting transaction is rerun.
const DefaultConflictAttempts = 3

// RetryOnConflict reruns fn while it fails with ErrConflict.
func RetryOnConflict(ctx context.Context, attempts int, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultConflictAttempts
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, ErrConflict) || i == attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * 25 * time.Millisecond):
		}
	}
	return err
}
