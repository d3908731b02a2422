package diag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ridge/reqlog/eventlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	ctx, c := Begin(context.Background())
	require.Same(t, c, FromContext(ctx))

	Set(ctx, "A", 1)
	Set(ctx, "B", "two")
	Set(ctx, "A", 3)
	SetError(ctx, errors.New("oops"))
	require.EqualError(t, c.Err(), "oops")

	completion, ok := c.TryComplete()
	require.True(t, ok)
	assert.Equal(t, []eventlog.Property{{Name: "A", Value: 3}, {Name: "B", Value: "two"}}, completion.Properties)
	assert.EqualError(t, completion.Err, "oops")
}

func TestCompleteEmpty(t *testing.T) {
	_, c := Begin(context.Background())
	completion, ok := c.TryComplete()
	require.True(t, ok)
	assert.Empty(t, completion.Properties)
	assert.NotNil(t, completion.Properties)
	assert.NoError(t, completion.Err)
}

func TestCompleteOnce(t *testing.T) {
	_, c := Begin(context.Background())
	c.Set("A", 1)

	_, ok := c.TryComplete()
	require.True(t, ok)

	c.Set("B", 2) // ignored
	completion, ok := c.TryComplete()
	require.False(t, ok)
	assert.Empty(t, completion.Properties)
}

func TestDispose(t *testing.T) {
	_, c := Begin(context.Background())
	c.Set("A", 1)
	require.False(t, c.Disposed())

	c.Dispose()
	c.Dispose()
	require.True(t, c.Disposed())

	_, ok := c.TryComplete()
	require.False(t, ok)
}

func TestOutsideScope(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, FromContext(ctx))
	Set(ctx, "A", 1)
	SetError(ctx, errors.New("ignored"))
}

func TestNestedScopes(t *testing.T) {
	outerCtx, outer := Begin(context.Background())
	innerCtx, inner := Begin(outerCtx)

	Set(innerCtx, "inner", true)
	Set(outerCtx, "outer", true)

	oc, _ := outer.TryComplete()
	ic, _ := inner.TryComplete()
	assert.Equal(t, []eventlog.Property{{Name: "outer", Value: true}}, oc.Properties)
	assert.Equal(t, []eventlog.Property{{Name: "inner", Value: true}}, ic.Properties)
}

func TestConcurrentScopes(t *testing.T) {
	const n = 50

	var wg sync.WaitGroup
	results := make([]Completion, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, c := Begin(context.Background())
			Set(ctx, fmt.Sprintf("req%d", i), i)
			results[i], _ = c.TryComplete()
		}()
	}
	wg.Wait()

	for i, r := range results {
		assert.Equal(t, []eventlog.Property{{Name: fmt.Sprintf("req%d", i), Value: i}}, r.Properties)
	}
}

func TestConcurrentSet(t *testing.T) {
	ctx, c := Begin(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			Set(ctx, fmt.Sprintf("p%d", i), i)
		}()
	}
	wg.Wait()

	completion, ok := c.TryComplete()
	require.True(t, ok)
	assert.Len(t, completion.Properties, 20)
}
