package sink

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ridge/parallel"
	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/test"
	"github.com/ridge/reqlog/tlog"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type chanSink struct {
	batches chan []string
	err     error
}

func newChanSink() *chanSink {
	return &chanSink{batches: make(chan []string, 10)}
}

func (s *chanSink) EmitBatch(ctx context.Context, events []*eventlog.Event) error {
	msgs := make([]string, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, ev.RenderMessage())
	}
	s.batches <- msgs
	return s.err
}

func event(i int) *eventlog.Event {
	return &eventlog.Event{
		Timestamp: time.Now(),
		Level:     eventlog.Information,
		Template:  eventlog.ParseTemplate(fmt.Sprintf("event %d", i)),
	}
}

func TestBatcherBatchSize(t *testing.T) {
	target := newChanSink()
	b := NewBatcher(target, BatchConfig{BatchSize: 2, Period: time.Hour})

	group := test.Group(t)
	group.Spawn("batcher", parallel.Fail, b.Run)

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Emit(event(i)))
	}
	test.AssertEvents(t, target.batches,
		[]string{"event 0", "event 1"},
		[]string{"event 2", "event 3"},
	)
}

func TestBatcherPeriod(t *testing.T) {
	target := newChanSink()
	b := NewBatcher(target, BatchConfig{BatchSize: 100, Period: 10 * time.Millisecond})

	group := test.Group(t)
	group.Spawn("batcher", parallel.Fail, b.Run)

	require.NoError(t, b.Emit(event(0)))
	test.AssertEvents(t, target.batches, []string{"event 0"})
}

func TestBatcherQueueFull(t *testing.T) {
	b := NewBatcher(newChanSink(), BatchConfig{QueueSize: 1})
	require.NoError(t, b.Emit(event(0)))
	require.ErrorIs(t, b.Emit(event(1)), ErrQueueFull)
}

func TestBatcherFlushOnShutdown(t *testing.T) {
	target := newChanSink()
	b := NewBatcher(target, BatchConfig{BatchSize: 100, Period: time.Hour})

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Emit(event(i)))
	}

	ctx, cancel := context.WithCancel(test.Context(t))
	cancel()
	require.ErrorIs(t, b.Run(ctx), context.Canceled)

	test.AssertEvents(t, target.batches, []string{"event 0", "event 1", "event 2"})
}

func TestBatcherEmitAfterShutdown(t *testing.T) {
	target := newChanSink()
	b := NewBatcher(target, BatchConfig{Period: time.Hour})

	ctx, cancel := context.WithCancel(test.Context(t))
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()
	require.NoError(t, b.Emit(event(0)))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	test.AssertEvents(t, target.batches, []string{"event 0"})

	require.ErrorIs(t, b.Emit(event(1)), ErrClosed)
}

func TestBatcherBackendFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	target := newChanSink()
	target.err = errors.New("disk full")
	b := NewBatcher(target, BatchConfig{Name: "table", BatchSize: 1, Period: time.Hour})

	ctx, cancel := context.WithCancel(tlog.WithLogger(context.Background(), zap.New(core)))
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()

	require.NoError(t, b.Emit(event(0)))
	require.NoError(t, b.Emit(event(1)))
	test.AssertEvents(t, target.batches, []string{"event 0"}, []string{"event 1"})

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	entries := logs.FilterMessage("Failed to write log events").All()
	require.Len(t, entries, 2)
	require.Equal(t, "table", entries[0].ContextMap()["sink"])
	require.Equal(t, "disk full", entries[0].ContextMap()["error"])
}
