package eventlog

import (
	"os"
)

// Enricher adds properties to an event before it reaches the sinks.
//
// Enrichers should not overwrite existing properties.
type Enricher func(ev *Event)

// WithProperty adds a fixed property
func WithProperty(name string, value any) Enricher {
	return func(ev *Event) {
		ev.AddPropertyIfAbsent(name, value)
	}
}

// WithEnvironmentName adds EnvironmentName, the deployment environment
// ("Development", "Production", ...)
func WithEnvironmentName(name string) Enricher {
	return WithProperty("EnvironmentName", name)
}

// WithProcessID adds ThreadId carrying the process ID.
//
// Goroutines have no stable identity, so the process is the finest
// execution unit that can be reported.
func WithProcessID() Enricher {
	return WithProperty("ThreadId", os.Getpid())
}

// WithMachineName adds MachineName
func WithMachineName() Enricher {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return WithProperty("MachineName", host)
}
