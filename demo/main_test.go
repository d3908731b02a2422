package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/sink"
	"github.com/ridge/reqlog/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *batchRecorder) EmitBatch(ctx context.Context, events []*eventlog.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range events {
		r.messages = append(r.messages, ev.RenderMessage())
	}
	return nil
}

func TestShutdownWritesDrainedRequests(t *testing.T) {
	target := &batchRecorder{}
	b := sink.NewBatcher(target, sink.BatchConfig{Name: "table", Period: time.Hour})

	ctx, cancel := context.WithCancel(test.Context(t))
	var emitErr error
	err := runServing(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		// a request finishing while the server drains
		emitErr = b.Emit(&eventlog.Event{Level: eventlog.Information, Template: eventlog.ParseTemplate("late request")})
		return ctx.Err()
	}, b)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, emitErr)

	assert.Equal(t, []string{"late request"}, target.messages)
	assert.ErrorIs(t, b.Emit(&eventlog.Event{}), sink.ErrClosed)
}
