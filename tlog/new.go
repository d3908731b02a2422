package tlog

import (
	"fmt"
	"io"
	"testing"

	"github.com/ridge/must/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

func encoderName(config Config, fd int) (name string, development bool) {
	switch config.Format {
	case FormatJSON:
		return "json", false
	case FormatText:
		var color bool
		switch config.Color {
		case ColorYes:
			color = true
		case ColorNo:
			color = false
		case ColorAuto:
			color = fd >= 0 && term.IsTerminal(fd)
		default:
			panic(fmt.Errorf("unexpected --color value: %s", config.Color))
		}
		return fmt.Sprintf("%s;color=%t", consoleEncoderName, color), true
	default:
		panic(fmt.Errorf("unexpected --log-format value: %s", config.Format))
	}
}

// New creates a top-level logger
func New(config Config) *zap.Logger {
	outputs := config.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	fd := -1
	switch outputs[0] {
	case "stderr":
		fd = unix.Stderr
	case "stdout":
		fd = unix.Stdout
	}
	encoding, development := encoderName(config, fd)

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(config.level()),
		Development:      development,
		Encoding:         encoding,
		EncoderConfig:    DefaultEncoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	logger := must.OK1(cfg.Build())

	if config.Name != "" {
		logger = logger.Named(config.Name)
	}

	return logger
}

// NewWriterCore creates a zap core writing to w in the configured format.
// Color is never auto-detected for arbitrary writers.
func NewWriterCore(config Config, w io.Writer) zapcore.Core {
	var encoder zapcore.Encoder
	switch config.Format {
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(DefaultEncoderConfig)
	case FormatText:
		encoder = newConsoleEncoder(DefaultEncoderConfig, config.Color == ColorYes)
	default:
		panic(fmt.Errorf("unexpected --log-format value: %s", config.Format))
	}
	return zapcore.NewCore(encoder, zapcore.AddSync(w), config.level())
}

// NewForTesting creates a logger for use in unit tests
func NewForTesting(t *testing.T) *zap.Logger {
	return New(Config{
		Name:    t.Name(),
		Format:  FormatText,
		Color:   ColorAuto,
		Verbose: true,
	})
}
