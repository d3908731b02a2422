// Package wstail streams log events to WebSocket clients as they are written
package wstail

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/thttp"
	"github.com/ridge/reqlog/tlog"
	"go.uber.org/zap"
)

// Config configures a Broadcaster. Zero fields take the DefaultConfig value.
type Config struct {
	// Buffer is the number of events a subscriber may lag behind before
	// events are dropped for it
	Buffer int

	// HandshakeTimeout limits the WebSocket protocol upgrade
	HandshakeTimeout time.Duration

	// TCPTimeout disconnects a client that does not acknowledge sent data for
	// this long (Linux only)
	TCPTimeout time.Duration

	// PingInterval is the period of pings. Proxies close idle connections
	// despite TCP keep-alive.
	PingInterval time.Duration

	// WriteTimeout limits sending a single message
	WriteTimeout time.Duration

	// CheckOrigin accepts or rejects the Origin of the upgrade request
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig is the default Config value
var DefaultConfig = Config{
	Buffer:           256,
	HandshakeTimeout: 5 * time.Second,
	TCPTimeout:       30 * time.Second,
	PingInterval:     30 * time.Second,
	WriteTimeout:     10 * time.Second,
	CheckOrigin:      thttp.SameOrigin,
}

// Broadcaster is an eventlog.Sink that forwards every event to all connected
// subscribers. It never blocks: a subscriber that does not keep up loses
// events.
type Broadcaster struct {
	config   Config
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[chan []byte]struct{}
	dropped     atomic.Int64
}

// NewBroadcaster creates a Broadcaster
func NewBroadcaster(config Config) *Broadcaster {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig.Buffer
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultConfig.HandshakeTimeout
	}
	if config.TCPTimeout == 0 {
		config.TCPTimeout = DefaultConfig.TCPTimeout
	}
	if config.PingInterval == 0 {
		config.PingInterval = DefaultConfig.PingInterval
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultConfig.WriteTimeout
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = DefaultConfig.CheckOrigin
	}
	return &Broadcaster{
		config: config,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: config.HandshakeTimeout,
			CheckOrigin:      config.CheckOrigin,
		},
		subscribers: map[chan []byte]struct{}{},
	}
}

// Emit implements eventlog.Sink
func (b *Broadcaster) Emit(ev *eventlog.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subscribers) == 0 {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode log event: %w", err)
	}
	for ch := range b.subscribers {
		select {
		case ch <- data:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a subscriber. The returned function unsubscribes; the
// channel is never closed.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, b.config.Buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, ch)
		})
	}
}

// Subscribers returns the number of current subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Dropped returns the number of events lost by slow subscribers
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// ServeHTTP upgrades the connection to WebSocket and streams events as JSON
// text messages until the client disconnects
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := tlog.Get(ctx)

	// the response header carries X-Request-ID set by thttp.RequestID
	ws, err := b.upgrader.Upgrade(w, r, w.Header().Clone())
	if err != nil {
		// the upgrader has already answered the client
		logger.Info("Failed to start live tail", zap.Error(err))
		return
	}
	if err := setUserTimeout(ws.UnderlyingConn(), b.config.TCPTimeout); err != nil {
		logger.Warn("Failed to tune live tail connection", zap.Error(err))
	}

	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	logger.Info("Live tail connected")
	err = b.stream(ctx, ws, events)
	logger.Info("Live tail disconnected", zap.Error(err))
}
