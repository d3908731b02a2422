// Package kafkasink publishes log events to a Kafka topic as JSON
package kafkasink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/retry"
	"github.com/ridge/reqlog/tlog"
	"github.com/ridge/reqlog/tnet"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const writeTimeout = time.Minute

// KeyProperty is the event property used as the message key
const KeyProperty = "RequestId"

// DefaultRetry is the retry configuration used when Config.Retry is nil
var DefaultRetry = retry.ExpConfig{Min: 100 * time.Millisecond, Max: 10 * time.Second, Scale: 2, MaxAttempts: 6}

// This is the subset of kafka.Writer that we use, defined as mockable API
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures the Kafka sink
type Config struct {
	Brokers []string
	Topic   string
	TLS     bool         // connect to the brokers over TLS
	Retry   retry.Config // optional
}

// Sink writes batches of events to Kafka
type Sink struct {
	topic  string
	writer messageWriter
	retry  retry.Config
}

// New creates a Kafka sink
func New(config Config) (*Sink, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("no Kafka brokers")
	}
	if config.Topic == "" {
		return nil, errors.New("no Kafka topic")
	}
	transport := &kafka.Transport{}
	if config.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Transport:    transport,
	}
	return newSink(config, w), nil
}

func newSink(config Config, w messageWriter) *Sink {
	rc := config.Retry
	if rc == nil {
		rc = DefaultRetry
	}
	return &Sink{
		topic:  config.Topic,
		writer: w,
		retry:  rc,
	}
}

// EmitBatch implements sink.BatchSink
func (s *Sink) EmitBatch(ctx context.Context, events []*eventlog.Event) error {
	if len(events) == 0 {
		return nil
	}

	ctx = tlog.With(ctx, zap.String("topic", s.topic))
	logger := tlog.Get(ctx)
	batch := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			// the rest of the batch is still worth sending
			logger.Error("Dropping log event that cannot be encoded", zap.Error(err), zap.String("message", ev.RenderMessage()))
			continue
		}
		msg := kafka.Message{Value: value}
		if key, ok := ev.Property(KeyProperty); ok {
			msg.Key = []byte(fmt.Sprint(key))
		}
		batch = append(batch, msg)
	}
	if len(batch) == 0 {
		return nil
	}

	return retry.Do(ctx, s.retry, func() error {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()

		if err := s.writer.WriteMessages(writeCtx, batch...); err != nil {
			if shouldRetry(err) {
				return retry.Retriable(fmt.Errorf("failed to write Kafka messages: %w", err))
			}
			return fmt.Errorf("failed to write Kafka messages: %w", err)
		}
		return nil
	})
}

// Close flushes and closes the underlying writer
func (s *Sink) Close() error {
	return s.writer.Close()
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, kafka.Unknown) {
		return true
	}
	var werr kafka.WriteErrors
	if errors.As(err, &werr) {
		for _, e := range werr {
			if e != nil && shouldRetry(e) {
				return true
			}
		}
		return false
	}
	var kerr kafka.Error
	if !errors.As(err, &kerr) {
		var r retry.ErrRetriable
		return errors.As(tnet.MaybeRetriableError(err), &r)
	}
	return kerr.Timeout() || kerr.Temporary()
}
