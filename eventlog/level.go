package eventlog

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is the severity of a log event
type Level int8

// Level values, from the least to the most severe
const (
	Verbose Level = iota
	Debug
	Information
	Warning
	Error
	Fatal
)

// VerboseZapLevel is the zap level that Verbose events are written at. zap has
// no level below Debug, so one is made up.
const VerboseZapLevel = zapcore.DebugLevel - 1

var levelNames = [...]string{
	Verbose:     "Verbose",
	Debug:       "Debug",
	Information: "Information",
	Warning:     "Warning",
	Error:       "Error",
	Fatal:       "Fatal",
}

func (l Level) String() string {
	if l < Verbose || l > Fatal {
		return fmt.Sprintf("Level(%d)", l)
	}
	return levelNames[l]
}

// ZapLevel maps the level onto the closest zap level.
//
// Fatal maps to zap's Fatal level, so write Fatal events through a zapcore.Core,
// not through zap.Logger, to avoid exiting the process.
func (l Level) ZapLevel() zapcore.Level {
	switch l {
	case Verbose:
		return VerboseZapLevel
	case Debug:
		return zapcore.DebugLevel
	case Information:
		return zapcore.InfoLevel
	case Warning:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

// ParseLevel parses a level name. Both full names ("Information") and
// short forms ("info", "warn") are accepted, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose", "trace":
		return Verbose, nil
	case "debug":
		return Debug, nil
	case "information", "info":
		return Information, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	case "fatal":
		return Fatal, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
