package eventlog

import (
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
)

// Sink is a backend that records events.
//
// Emit must not retain ev beyond the call unless it treats it as read-only:
// the same event is handed to every sink.
type Sink interface {
	Emit(ev *Event) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ev *Event) error

// Emit implements Sink
func (f SinkFunc) Emit(ev *Event) error {
	return f(ev)
}

// SinkConfig attaches a sink to a logger
type SinkConfig struct {
	Name         string // used in self-log messages
	Sink         Sink
	MinimumLevel Level // events below this level are not sent to the sink
}

// SourceContextProperty names the property that identifies the component
// an event comes from
const SourceContextProperty = "SourceContext"

// Config is the configuration of a Logger
type Config struct {
	MinimumLevel Level
	Enrichers    []Enricher
	Sinks        []SinkConfig

	// Overrides replaces MinimumLevel for events whose SourceContext is the
	// key or starts with the key followed by "." or "/". The longest matching
	// key wins.
	Overrides map[string]Level

	// SelfLog receives failures of the sinks (optional)
	SelfLog *zap.Logger
}

// Logger fans events out to a fixed set of sinks.
//
// A Logger is immutable and safe for concurrent use.
type Logger struct {
	minimum   Level
	overrides map[string]Level
	source    string // SourceContext set with ForContext
	enrichers []Enricher
	sinks     []SinkConfig
	selfLog   *zap.Logger
}

// NewLogger creates a Logger
func NewLogger(config Config) *Logger {
	selfLog := config.SelfLog
	if selfLog == nil {
		selfLog = zap.NewNop()
	}
	sinks := make([]SinkConfig, 0, len(config.Sinks))
	for _, sc := range config.Sinks {
		if sc.Sink == nil {
			panic(fmt.Errorf("sink %q is nil", sc.Name))
		}
		sinks = append(sinks, sc)
	}
	overrides := make(map[string]Level, len(config.Overrides))
	for prefix, level := range config.Overrides {
		overrides[prefix] = level
	}
	return &Logger{
		minimum:   config.MinimumLevel,
		overrides: overrides,
		enrichers: append([]Enricher(nil), config.Enrichers...),
		sinks:     sinks,
		selfLog:   selfLog,
	}
}

// ForContext returns a logger that adds the given property to every event
// that does not have it already. A string SourceContext also selects the
// minimum level override of the child.
func (l *Logger) ForContext(name string, value any) *Logger {
	child := *l
	child.enrichers = append(append([]Enricher(nil), l.enrichers...), WithProperty(name, value))
	if source, ok := value.(string); ok && name == SourceContextProperty {
		child.source = source
	}
	return &child
}

// IsEnabled reports whether an event of the given level would reach at
// least one sink
func (l *Logger) IsEnabled(level Level) bool {
	return l.enabled(level, l.source)
}

func (l *Logger) enabled(level Level, source string) bool {
	if level < l.minimumFor(source) {
		return false
	}
	for _, sc := range l.sinks {
		if level >= sc.MinimumLevel {
			return true
		}
	}
	return false
}

func (l *Logger) minimumFor(source string) Level {
	minimum, matched := l.minimum, -1
	for prefix, level := range l.overrides {
		if len(prefix) > matched && sourceMatches(source, prefix) {
			minimum, matched = level, len(prefix)
		}
	}
	return minimum
}

func sourceMatches(source, prefix string) bool {
	if !strings.HasPrefix(source, prefix) {
		return false
	}
	return len(source) == len(prefix) || source[len(prefix)] == '.' || source[len(prefix)] == '/'
}

// Write enriches the event and delivers it to every sink that accepts its
// level. Failures of enrichers and sinks are reported to the self-log and
// never returned.
func (l *Logger) Write(ev *Event) {
	// with overrides the SourceContext of the enriched event decides
	if len(l.overrides) == 0 && !l.enabled(ev.Level, l.source) {
		return
	}
	for _, enrich := range l.enrichers {
		if err := isolate(func() error { enrich(ev); return nil }); err != nil {
			l.selfLog.Warn("Failed to enrich log event", zap.Error(err))
		}
	}

	source := l.source
	if s, ok := ev.Property(SourceContextProperty); ok {
		if s, ok := s.(string); ok {
			source = s
		}
	}
	if !l.enabled(ev.Level, source) {
		return
	}
	for _, sc := range l.sinks {
		if ev.Level < sc.MinimumLevel {
			continue
		}
		if err := isolate(func() error { return sc.Sink.Emit(ev) }); err != nil {
			l.selfLog.Warn("Failed to emit log event", zap.String("sink", sc.Name), zap.Error(err))
		}
	}
}

// isolate runs f, turning a panic into an error
func isolate(f func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return f()
}
