package tlog

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format is the logging format
type Format string

// Format values
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Color is the coloring setting for text format
type Color string

// Color values
const (
	ColorAuto Color = ""
	ColorYes  Color = "yes"
	ColorNo   Color = "no"
)

// VerboseLevel is the level below zap's Debug used for the most detailed
// messages
const VerboseLevel = zapcore.DebugLevel - 1

// Config is the configuration for creating a top-level logger
type Config struct {
	Name    string // top-level logger name (optional)
	Format  Format
	Color   Color
	Verbose bool // enable messages at Debug level

	// Level overrides Verbose when set (optional)
	Level *zapcore.Level

	// OutputPaths are zap sink URLs (default: stderr)
	OutputPaths []string
}

func (c Config) level() zapcore.Level {
	switch {
	case c.Level != nil:
		return *c.Level
	case c.Verbose:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func iso8601MicroTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02T15:04:05.000000Z0700"))
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l < zapcore.DebugLevel {
		enc.AppendString("verbose")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// DefaultEncoderConfig is the default value of zap.EncoderConfig that we use
// when creating top-level loggers
var DefaultEncoderConfig = func() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = iso8601MicroTimeEncoder
	ec.EncodeLevel = levelEncoder
	return ec
}()
