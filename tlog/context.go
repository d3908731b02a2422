package tlog

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey int

const (
	tlogKey contextKey = iota
)

// Get returns a logger from context. Panics if there is none: every context
// created by run.Tool, thttp.Server or test.Context carries one.
func Get(ctx context.Context) *zap.Logger {
	return ctx.Value(tlogKey).(*zap.Logger)
}

// Lookup returns a logger from context, if there is one
func Lookup(ctx context.Context) (*zap.Logger, bool) {
	logger, ok := ctx.Value(tlogKey).(*zap.Logger)
	return logger, ok
}

// WithLogger adds a logger to a context or replaces an existing one
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, tlogKey, logger)
}

// With returns a context with a sub-logger with passed parameters
func With(ctx context.Context, fields ...zapcore.Field) context.Context {
	return WithLogger(ctx, Get(ctx).With(fields...))
}
