// Package console writes log events through a zap core, in the same format as
// the service's own logs.
package console

import (
	"errors"
	"fmt"

	"github.com/ridge/parallel"
	"github.com/ridge/reqlog/eventlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink is an eventlog.Sink backed by a zap core
type Sink struct {
	core zapcore.Core
}

// New creates a console sink writing to the core of the given logger
func New(logger *zap.Logger) *Sink {
	return NewCore(logger.Core())
}

// NewCore creates a console sink writing to the given core
func NewCore(core zapcore.Core) *Sink {
	return &Sink{core: core}
}

// Emit implements eventlog.Sink.
//
// The entry is written to the core directly: events at Fatal level must not
// terminate the process the way zap.Logger.Fatal does.
func (s *Sink) Emit(ev *eventlog.Event) error {
	entry := zapcore.Entry{
		Level:   ev.Level.ZapLevel(),
		Time:    ev.Timestamp,
		Message: ev.RenderMessage(),
	}
	if !s.core.Enabled(entry.Level) {
		return nil
	}

	fields := make([]zapcore.Field, 0, len(ev.Properties)+2)
	for _, p := range ev.Properties {
		fields = append(fields, zap.Any(p.Name, p.Value))
	}
	if ev.Err != nil {
		fields = append(fields, zap.Error(ev.Err))
		var errPanic parallel.ErrPanic
		if errors.As(ev.Err, &errPanic) {
			fields = append(fields, zap.ByteString("stack", errPanic.Stack))
		}
	}
	if err := s.core.Write(entry, fields); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}
