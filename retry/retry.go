// Package retry repeats operations that fail with transient errors
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/ridge/reqlog/tlog"
	"go.uber.org/zap"
)

// DelayFn produces the delays between attempts, one per call. A single DelayFn
// is a single sequence of delays.
//
// The first delay is used before the very first attempt, so it is usually 0.
// ok=false ends the sequence: the caller stops trying and does not call the
// function again. The first call must return ok=true.
type DelayFn func() (delay time.Duration, ok bool)

// Config defines retry intervals. Implementations are normally stateless.
type Config interface {
	// Delays returns an independent sequence of delays
	Delays() DelayFn
}

// FixedConfig defines fixed retry intervals
type FixedConfig struct {
	// TryAfter is the delay before the first attempt
	TryAfter time.Duration

	// RetryAfter is the delay before each subsequent attempt
	RetryAfter time.Duration

	// MaxAttempts is the maximum number of attempts taken; 0 = unlimited
	MaxAttempts int
}

// Delays implements interface Config
func (c FixedConfig) Delays() DelayFn {
	attempts := 0
	return func() (time.Duration, bool) {
		attempts++
		switch {
		case attempts == 1:
			return c.TryAfter, true
		case c.MaxAttempts != 0 && attempts > c.MaxAttempts:
			return 0, false
		default:
			return c.RetryAfter, true
		}
	}
}

// ErrRetriable marks an error after which the operation should be retried
type ErrRetriable struct {
	err error
}

func (r ErrRetriable) Error() string {
	return r.err.Error()
}

// Unwrap returns the next error in the error chain
func (r ErrRetriable) Unwrap() error {
	return r.err
}

// Retriable wraps an error to tell Do to try again. Returns nil if err is nil.
func Retriable(err error) error {
	if err == nil {
		return nil
	}
	return ErrRetriable{err: err}
}

// Do calls f until it succeeds, returns an error not wrapped with Retriable,
// the delays of c run out or ctx is closed. The last error is returned.
//
// Retriable errors are logged at Debug level, repeated messages only once.
func Do(ctx context.Context, c Config, f func() error) error {
	startedAt := time.Now()
	delays := c.Delays()
	var lastMessage string
	var r ErrRetriable
	for i := 0; ; i++ {
		logger := tlog.Get(ctx).With(zap.Int("attempts", i+1))

		delay, ok := delays()
		if !ok {
			if i == 0 {
				panic("ok is false on first attempt")
			}
			logger.Debug("Giving up", zap.Error(r.err), zap.Duration("duration", time.Since(startedAt)))
			return r.err
		}

		if err := Sleep(ctx, delay); err != nil {
			if i > 0 {
				logger.Debug("Retry canceled", zap.Error(err), zap.Duration("duration", time.Since(startedAt)))
			}
			return err
		}

		err := f()
		if !errors.As(err, &r) {
			if i > 0 {
				logger.Debug("Retry finished", zap.Error(err), zap.Duration("duration", time.Since(startedAt)))
			}
			return err
		}
		if errors.Is(r.err, ctx.Err()) {
			return r.err // f wants to retry but the context is closing
		}

		if msg := r.err.Error(); msg != lastMessage {
			logger.Debug("Will retry", zap.Error(r.err))
			lastMessage = msg
		}
	}
}
