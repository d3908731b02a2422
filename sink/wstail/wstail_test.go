package wstail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ridge/parallel"
	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/test"
	"github.com/ridge/reqlog/thttp"
	"github.com/ridge/reqlog/tnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent(status int) *eventlog.Event {
	return &eventlog.Event{
		Timestamp:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:      eventlog.Information,
		Template:   eventlog.ParseTemplate("responded {StatusCode}"),
		Properties: []eventlog.Property{{Name: "StatusCode", Value: status}},
	}
}

// withServer serves b on a random port while client runs
func withServer(t *testing.T, b *Broadcaster, client func(ctx context.Context, url string) error) error {
	l := tnet.ListenOnRandomPort()
	return parallel.Run(test.Context(t), func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("server", parallel.Fail, thttp.NewServer(l, b).Run)
		spawn("client", parallel.Exit, func(ctx context.Context) error {
			return client(ctx, "ws://"+l.Addr().String())
		})
		return nil
	})
}

func TestNoSubscribers(t *testing.T) {
	b := NewBroadcaster(Config{})
	require.NoError(t, b.Emit(newEvent(200)))
	require.Zero(t, b.Dropped())
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := NewBroadcaster(Config{Buffer: 1})
	events, unsubscribe := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	require.NoError(t, b.Emit(newEvent(200)))
	require.NoError(t, b.Emit(newEvent(404)))
	require.EqualValues(t, 1, b.Dropped())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(<-events, &decoded))
	assert.Equal(t, "responded 200", decoded["RenderedMessage"])

	unsubscribe()
	unsubscribe()
	require.Zero(t, b.Subscribers())
}

func TestConfigDefaults(t *testing.T) {
	b := NewBroadcaster(Config{PingInterval: time.Second})
	assert.Equal(t, time.Second, b.config.PingInterval)
	assert.Equal(t, DefaultConfig.Buffer, b.config.Buffer)
	assert.Equal(t, DefaultConfig.WriteTimeout, b.config.WriteTimeout)
	assert.NotNil(t, b.config.CheckOrigin)
}

func TestLiveTail(t *testing.T) {
	b := NewBroadcaster(Config{})

	err := withServer(t, b, func(ctx context.Context, url string) error {
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return err
		}
		defer ws.Close()

		if !assert.Eventually(t, func() bool {
			return b.Subscribers() == 1
		}, 3*time.Second, 10*time.Millisecond) {
			return errors.New("not subscribed")
		}
		if err := b.Emit(newEvent(201)); err != nil {
			return err
		}

		if err := ws.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
			return err
		}
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		assert.Equal(t, websocket.TextMessage, mt)
		var decoded map[string]any
		assert.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "responded 201", decoded["RenderedMessage"])
		assert.Equal(t, map[string]any{"StatusCode": float64(201)}, decoded["Properties"])

		return ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return b.Subscribers() == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestCrossOriginRejected(t *testing.T) {
	b := NewBroadcaster(Config{})

	err := withServer(t, b, func(ctx context.Context, url string) error {
		_, resp, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{"Origin": {"http://elsewhere.example"}})
		if assert.ErrorIs(t, err, websocket.ErrBadHandshake) && assert.NotNil(t, resp) {
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		}
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, b.Subscribers())
}
