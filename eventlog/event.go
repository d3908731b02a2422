package eventlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ridge/must/v2"
)

// Property is a named value attached to an event
type Property struct {
	Name  string
	Value any
}

// Event is a single structured log record
type Event struct {
	Timestamp  time.Time
	Level      Level
	Err        error // optional
	Template   *Template
	Properties []Property
}

// Property returns the value of the named property. If the name occurs more
// than once, the last occurrence wins.
func (ev *Event) Property(name string) (any, bool) {
	for i := len(ev.Properties) - 1; i >= 0; i-- {
		if ev.Properties[i].Name == name {
			return ev.Properties[i].Value, true
		}
	}
	return nil, false
}

// HasProperty reports whether the named property is present
func (ev *Event) HasProperty(name string) bool {
	_, ok := ev.Property(name)
	return ok
}

// AddPropertyIfAbsent appends a property unless one with the same name exists
func (ev *Event) AddPropertyIfAbsent(name string, value any) {
	if !ev.HasProperty(name) {
		ev.Properties = append(ev.Properties, Property{Name: name, Value: value})
	}
}

// PropertyMap returns the properties as a map, later occurrences winning
func (ev *Event) PropertyMap() map[string]any {
	m := make(map[string]any, len(ev.Properties))
	for _, p := range ev.Properties {
		m[p.Name] = p.Value
	}
	return m
}

// RenderMessage renders the message template with the event's properties
func (ev *Event) RenderMessage() string {
	if ev.Template == nil {
		return ""
	}
	return ev.Template.Render(ev.Property)
}

// Exception returns the text of the attached error, or an empty string
func (ev *Event) Exception() string {
	if ev.Err == nil {
		return ""
	}
	return ev.Err.Error()
}

type jsonEvent struct {
	Timestamp       string                     `json:"Timestamp"`
	Level           Level                      `json:"Level"`
	MessageTemplate string                     `json:"MessageTemplate,omitempty"`
	RenderedMessage string                     `json:"RenderedMessage"`
	Exception       string                     `json:"Exception,omitempty"`
	Properties      map[string]json.RawMessage `json:"Properties"`
}

// MarshalJSON encodes the event for machine consumption (Kafka, live tail)
func (ev *Event) MarshalJSON() ([]byte, error) {
	je := jsonEvent{
		Timestamp:       ev.Timestamp.Format(time.RFC3339Nano),
		Level:           ev.Level,
		RenderedMessage: ev.RenderMessage(),
		Exception:       ev.Exception(),
		Properties:      ev.JSONProperties(),
	}
	if ev.Template != nil {
		je.MessageTemplate = ev.Template.Text()
	}
	return json.Marshal(je)
}

// JSONProperties encodes every property value separately, later occurrences
// winning. Errors are encoded as their message. A value JSON cannot represent
// (NaN, a channel, a failing json.Marshaler) is encoded as its fmt.Sprint
// text, so one bad property never costs the whole event.
func (ev *Event) JSONProperties() map[string]json.RawMessage {
	m := make(map[string]json.RawMessage, len(ev.Properties))
	for _, p := range ev.Properties {
		m[p.Name] = encodeValue(p.Value)
	}
	return m
}

func encodeValue(v any) (data json.RawMessage) {
	defer func() {
		// Error and MarshalJSON may panic, e.g. on a nil receiver
		if recover() != nil {
			data = fallbackValue(v)
		}
	}()
	if err, ok := v.(error); ok {
		v = err.Error()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fallbackValue(v)
	}
	return data
}

func fallbackValue(v any) json.RawMessage {
	return must.OK1(json.Marshal(fmt.Sprint(v)))
}
