package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ridge/reqlog/test"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	ctx := test.Context(t)

	count := 0
	err := Do(ctx, FixedConfig{}, func() error {
		count++
		if count == 10 {
			return errors.New("ten")
		}
		return Retriable(fmt.Errorf("%d", count))
	})
	require.EqualError(t, err, "ten")
	require.Equal(t, 10, count)
}

func TestDoMaxAttempts(t *testing.T) {
	ctx := test.Context(t)

	count := 0
	err := Do(ctx, FixedConfig{MaxAttempts: 3}, func() error {
		count++
		return Retriable(errors.New("broker unavailable"))
	})
	require.EqualError(t, err, "broker unavailable")
	require.Equal(t, 3, count)
}

func TestDoCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(test.Context(t))
	cancel()

	err := Do(ctx, FixedConfig{RetryAfter: time.Hour}, func() error {
		return Retriable(errors.New("again"))
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetriableNil(t *testing.T) {
	require.NoError(t, Retriable(nil))
}
