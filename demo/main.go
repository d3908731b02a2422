// Command demo is a small product catalog whose every request is logged to
// the console, an SQLite table, a WebSocket live tail and optionally Kafka.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ridge/parallel"
	"github.com/ridge/reqlog"
	"github.com/ridge/reqlog/demo/products"
	"github.com/ridge/reqlog/diag"
	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/run"
	"github.com/ridge/reqlog/sink"
	"github.com/ridge/reqlog/sink/console"
	"github.com/ridge/reqlog/sink/kafkasink"
	"github.com/ridge/reqlog/sink/sqltable"
	"github.com/ridge/reqlog/sink/wstail"
	"github.com/ridge/reqlog/tcontext"
	"github.com/ridge/reqlog/thttp"
	"github.com/ridge/reqlog/tlog"
	"github.com/ridge/reqlog/tnet"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type config struct {
	listen       string
	environment  string
	logDB        string
	logSchema    string
	logTable     string
	minLevel     eventlog.Level
	overrides    map[string]eventlog.Level
	includeQuery bool
	corsOrigins  []string

	kafkaBrokers []string
	kafkaTopic   string
	kafkaTLS     bool
}

func main() {
	var cfg config
	var minLevel string
	var overrides map[string]string
	pflag.StringVar(&cfg.listen, "listen", "localhost:8080", "Address to serve HTTP on")
	pflag.StringVar(&cfg.environment, "environment", "Development", "Value of the EnvironmentName property")
	pflag.StringVar(&cfg.logDB, "log-db", "logs.db", "SQLite database for the log table")
	pflag.StringVar(&cfg.logSchema, "log-schema", "Logs", "Schema of the log table")
	pflag.StringVar(&cfg.logTable, "log-table", "LogEvents", "Name of the log table")
	pflag.StringVar(&minLevel, "log-min-level", "Information", "Minimum level of request events")
	pflag.StringToStringVar(&overrides, "log-override", nil, "Minimum level by SourceContext prefix, e.g. github.com/ridge/reqlog=Warning")
	pflag.BoolVar(&cfg.includeQuery, "include-query", false, "Include the query string in RequestPath")
	pflag.StringSliceVar(&cfg.corsOrigins, "cors-origin", []string{"*"}, "Origins allowed to make cross-origin requests")
	pflag.StringSliceVar(&cfg.kafkaBrokers, "kafka-brokers", nil, "Kafka brokers to publish request events to (disabled if empty)")
	pflag.StringVar(&cfg.kafkaTopic, "kafka-topic", "request-logs", "Kafka topic for request events")
	pflag.BoolVar(&cfg.kafkaTLS, "kafka-tls", false, "Connect to Kafka over TLS")
	pflag.Parse()

	level, err := eventlog.ParseLevel(minLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.minLevel = level
	cfg.overrides = map[string]eventlog.Level{}
	for prefix, name := range overrides {
		level, err := eventlog.ParseLevel(name)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg.overrides[prefix] = level
	}

	run.Server(func(ctx context.Context) error {
		return serve(ctx, cfg)
	})
}

func serve(ctx context.Context, cfg config) error {
	db, err := sqltable.Open(cfg.logDB)
	if err != nil {
		return err
	}
	defer db.Close()

	table, err := sqltable.New(db, sqltable.Options{
		SchemaName:        cfg.logSchema,
		TableName:         cfg.logTable,
		AutoCreateTable:   true,
		AdditionalColumns: sqltable.DefaultColumns(),
	})
	if err != nil {
		return err
	}
	tableBatcher := sink.NewBatcher(table, sink.BatchConfig{Name: "table"})
	tail := wstail.NewBroadcaster(wstail.Config{})

	consoleConfig := run.LogConfig()
	consoleConfig.Level = ptr(eventlog.VerboseZapLevel)
	sinks := []eventlog.SinkConfig{
		{Name: "console", Sink: console.NewCore(tlog.NewWriterCore(consoleConfig, os.Stdout))},
		{Name: "table", Sink: tableBatcher},
		{Name: "tail", Sink: tail},
	}

	batchers := []*sink.Batcher{tableBatcher}
	if len(cfg.kafkaBrokers) > 0 {
		ks, err := kafkasink.New(kafkasink.Config{
			Brokers: cfg.kafkaBrokers,
			Topic:   cfg.kafkaTopic,
			TLS:     cfg.kafkaTLS,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := ks.Close(); err != nil {
				tlog.Get(ctx).Warn("Failed to close Kafka writer", zap.Error(err))
			}
		}()
		kafkaBatcher := sink.NewBatcher(ks, sink.BatchConfig{Name: "kafka"})
		batchers = append(batchers, kafkaBatcher)
		sinks = append(sinks, eventlog.SinkConfig{Name: "kafka", Sink: kafkaBatcher})
	}

	logger := eventlog.NewLogger(eventlog.Config{
		MinimumLevel: cfg.minLevel,
		Overrides:    cfg.overrides,
		Enrichers: []eventlog.Enricher{
			eventlog.WithEnvironmentName(cfg.environment),
			eventlog.WithProcessID(),
			eventlog.WithMachineName(),
		},
		Sinks:   sinks,
		SelfLog: tlog.Get(ctx).Named("eventlog"),
	})

	options := reqlog.DefaultOptions(logger)
	options.EnrichDiagnosticContext = enrich
	options.IncludeQueryInRequestPath = cfg.includeQuery
	requestLog, err := reqlog.New(options)
	if err != nil {
		return err
	}

	listener, err := tnet.Listen(cfg.listen)
	if err != nil {
		return err
	}
	a := app{
		products:   products.NewStore(),
		logs:       table,
		tail:       tail,
		requestLog: requestLog,
		cors:       thttp.NewCORS(cfg.corsOrigins),
	}
	server := thttp.NewServer(listener, a.handler())
	tlog.Get(ctx).Info("Serving", zap.Stringer("address", server.ListenAddr()), zap.String("table", table.Table()))

	return runServing(ctx, server.Run, batchers...)
}

// runServing runs serve along with the batchers. The batchers are stopped
// only after serve returns, so requests finished during graceful shutdown are
// still written.
func runServing(ctx context.Context, serve parallel.Task, batchers ...*sink.Batcher) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		sinksCtx, stopSinks := context.WithCancel(tcontext.Reopen(ctx))
		for _, b := range batchers {
			b := b
			spawn(b.Name(), parallel.Fail, func(context.Context) error {
				return b.Run(sinksCtx)
			})
		}
		spawn("http", parallel.Fail, func(ctx context.Context) error {
			defer stopSinks()
			return serve(ctx)
		})
		return nil
	})
}

// enrich records the response content type
func enrich(c *diag.Collector, x reqlog.Exchange) {
	if ct := x.Header.Get("Content-Type"); ct != "" {
		c.Set("ContentType", ct)
	}
}

func ptr[T any](v T) *T {
	return &v
}
