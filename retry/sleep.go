package retry

import (
	"context"
	"time"
)

// Sleep waits for the duration to elapse and returns nil, or for ctx to close
// and returns its error. A non-positive duration returns immediately.
func Sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	t := time.NewTimer(duration)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
