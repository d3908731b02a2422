package console

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ridge/parallel"
	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/tlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var ts = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func requestEvent(level eventlog.Level, err error) *eventlog.Event {
	return &eventlog.Event{
		Timestamp: ts,
		Level:     level,
		Err:       err,
		Template:  eventlog.ParseTemplate("HTTP {RequestMethod} {RequestPath} responded {StatusCode}"),
		Properties: []eventlog.Property{
			{Name: "RequestMethod", Value: "GET"},
			{Name: "RequestPath", Value: "/products"},
			{Name: "StatusCode", Value: 200},
		},
	}
}

func TestEmit(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, New(zap.New(core)).Emit(requestEvent(eventlog.Information, nil)))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "HTTP GET /products responded 200", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, ts, entries[0].Time)
	assert.Equal(t, map[string]any{
		"RequestMethod": "GET",
		"RequestPath":   "/products",
		"StatusCode":    int64(200),
	}, entries[0].ContextMap())
}

func TestEmitBelowCoreLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	require.NoError(t, NewCore(core).Emit(requestEvent(eventlog.Information, nil)))
	require.Zero(t, logs.Len())
}

func TestEmitFatalDoesNotExit(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, NewCore(core).Emit(requestEvent(eventlog.Fatal, errors.New("out of memory"))))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.FatalLevel, entries[0].Level)
	assert.Equal(t, "out of memory", entries[0].ContextMap()["error"])
}

func TestEmitPanicStack(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	fault := parallel.ErrPanic{Value: "boom", Stack: []byte("goroutine 1 [running]:")}
	require.NoError(t, NewCore(core).Emit(requestEvent(eventlog.Error, fault)))

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, fault.Error(), fields["error"])
	assert.Equal(t, "goroutine 1 [running]:", fields["stack"])
}

func TestEmitVerboseJSON(t *testing.T) {
	var buf bytes.Buffer
	level := tlog.VerboseLevel
	sink := NewCore(tlog.NewWriterCore(tlog.Config{Format: tlog.FormatJSON, Level: &level}, &buf))
	require.NoError(t, sink.Emit(requestEvent(eventlog.Verbose, nil)))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "verbose", line["level"])
	assert.Equal(t, "HTTP GET /products responded 200", line["msg"])
	assert.Equal(t, "/products", line["RequestPath"])
}
