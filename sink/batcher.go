// Package sink contains the machinery shared by log sinks that write to slow
// backends. Concrete sinks live in subpackages.
package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/tcontext"
	"github.com/ridge/reqlog/tlog"
	"go.uber.org/zap"
)

// Errors returned by Batcher.Emit when the event had to be dropped
var (
	ErrQueueFull = errors.New("log event queue is full")
	ErrClosed    = errors.New("log event queue is closed")
)

// BatchSink is a backend that writes events in batches
type BatchSink interface {
	EmitBatch(ctx context.Context, events []*eventlog.Event) error
}

// BatchConfig configures a Batcher
type BatchConfig struct {
	Name         string        // for log messages
	QueueSize    int           // events waiting to be written
	BatchSize    int           // maximum events per EmitBatch
	Period       time.Duration // maximum time an event waits for its batch
	FlushTimeout time.Duration // limit for the final flush on shutdown
}

// DefaultBatchConfig is a suggested configuration
var DefaultBatchConfig = BatchConfig{
	QueueSize:    10000,
	BatchSize:    50,
	Period:       2 * time.Second,
	FlushTimeout: 10 * time.Second,
}

// Batcher turns a BatchSink into an eventlog.Sink that never blocks the caller.
//
// Events are queued by Emit and written by Run, which must be running for
// anything to reach the backend. Once Run has flushed the queue on shutdown,
// Emit refuses events with ErrClosed.
type Batcher struct {
	target BatchSink
	config BatchConfig
	queue  chan *eventlog.Event

	mu     sync.RWMutex
	closed bool
}

// NewBatcher creates a Batcher. Zero fields of config take their values from
// DefaultBatchConfig.
func NewBatcher(target BatchSink, config BatchConfig) *Batcher {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultBatchConfig.QueueSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchConfig.BatchSize
	}
	if config.Period <= 0 {
		config.Period = DefaultBatchConfig.Period
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = DefaultBatchConfig.FlushTimeout
	}
	return &Batcher{
		target: target,
		config: config,
		queue:  make(chan *eventlog.Event, config.QueueSize),
	}
}

// Name returns the name from the configuration
func (b *Batcher) Name() string {
	return b.config.Name
}

// Emit implements eventlog.Sink. It only enqueues the event.
func (b *Batcher) Emit(ev *eventlog.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	select {
	case b.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run writes queued events until the context is closed, then flushes what is
// left in the queue
func (b *Batcher) Run(ctx context.Context) error {
	logger := tlog.Get(ctx).With(zap.String("sink", b.config.Name))
	ctx = tlog.WithLogger(ctx, logger)

	ticker := time.NewTicker(b.config.Period)
	defer ticker.Stop()

	batch := make([]*eventlog.Event, 0, b.config.BatchSize)
	for {
		select {
		case <-ctx.Done():
			b.flush(ctx, batch)
			return ctx.Err()
		case ev := <-b.queue:
			batch = append(batch, ev)
			if len(batch) < b.config.BatchSize {
				continue
			}
		case <-ticker.C:
			if len(batch) == 0 {
				continue
			}
		}
		b.write(ctx, batch)
		batch = batch[:0]
	}
}

func (b *Batcher) flush(ctx context.Context, batch []*eventlog.Event) {
	// waits for Emit calls in progress, so the queue only shrinks from here on
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	flushCtx, cancel := context.WithTimeout(tcontext.Reopen(ctx), b.config.FlushTimeout)
	defer cancel()

	for {
		select {
		case ev := <-b.queue:
			batch = append(batch, ev)
			if len(batch) < b.config.BatchSize {
				continue
			}
		default:
			if len(batch) > 0 {
				b.write(flushCtx, batch)
			}
			return
		}
		b.write(flushCtx, batch)
		batch = batch[:0]
	}
}

func (b *Batcher) write(ctx context.Context, batch []*eventlog.Event) {
	if err := b.target.EmitBatch(ctx, batch); err != nil {
		tlog.Get(ctx).Warn("Failed to write log events", zap.Int("events", len(batch)), zap.Error(err))
	}
}
