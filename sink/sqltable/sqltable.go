// Package sqltable stores log events as rows of a relational table.
//
// Every event becomes one row with the standard columns Id, Message, Level,
// TimeStamp and Exception, optionally Properties (the properties as JSON),
// followed by the configured additional columns. The sink writes batches and
// is meant to be wrapped in sink.Batcher.
package sqltable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ridge/must/v2"
	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/tlog"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

var standardColumns = []string{"Id", "Message", "Level", "TimeStamp", "Exception", "Properties"}

// Options configures the table
type Options struct {
	SchemaName        string // optional
	TableName         string
	AutoCreateTable   bool
	AdditionalColumns []Column
	StoreProperties   bool // add the Properties column
}

// Row is a stored event as read back by Recent
type Row struct {
	ID         int64
	Message    string
	Level      string
	TimeStamp  time.Time
	Exception  string
	Properties string // empty unless Options.StoreProperties is set
	Columns    map[string]any
}

// Sink writes batches of events to a table
type Sink struct {
	db      *sql.DB
	options Options
	table   string

	mu          sync.Mutex
	provisioned bool
}

// Open opens an SQLite database at the given path, creating it if necessary
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode on %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout on %s: %w", path, err)
	}
	return db, nil
}

// New creates a table sink. The table is not touched until the first batch.
//
// SQLite has no schemas, so a schema name becomes a prefix of the table name:
// schema "Logs" and table "LogEvents" give the table Logs_LogEvents.
func New(db *sql.DB, options Options) (*Sink, error) {
	if options.TableName == "" {
		return nil, errors.New("table name is empty")
	}
	seen := map[string]bool{}
	for _, name := range standardColumns {
		seen[strings.ToLower(name)] = true
	}
	for _, c := range options.AdditionalColumns {
		if err := c.validate(); err != nil {
			return nil, err
		}
		if seen[strings.ToLower(c.Name)] {
			return nil, fmt.Errorf("duplicate column %s", c.Name)
		}
		seen[strings.ToLower(c.Name)] = true
	}

	table := options.TableName
	if options.SchemaName != "" {
		table = options.SchemaName + "_" + table
	}
	return &Sink{
		db:      db,
		options: options,
		table:   table,
	}, nil
}

// Table returns the name of the underlying table
func (s *Sink) Table() string {
	return s.table
}

// EmitBatch implements sink.BatchSink. The batch is written in a single
// transaction.
func (s *Sink) EmitBatch(ctx context.Context, events []*eventlog.Event) error {
	if err := s.provision(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, s.insertStatement())
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", s.table, err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, s.row(ev)...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", s.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit to %s: %w", s.table, err)
	}
	return nil
}

// Recent returns up to limit most recently stored rows, newest first. The
// table is created first if AutoCreateTable is set.
func (s *Sink) Recent(ctx context.Context, limit int) ([]Row, error) {
	if err := s.provision(ctx); err != nil {
		return nil, err
	}

	names := []string{"Id", "Message", "Level", "TimeStamp", "Exception"}
	if s.options.StoreProperties {
		names = append(names, "Properties")
	}
	for _, c := range s.options.AdditionalColumns {
		names = append(names, c.Name)
	}
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		quoted = append(quoted, quote(name))
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC LIMIT ?",
		strings.Join(quoted, ", "), quote(s.table), quote("Id"))
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	defer rows.Close()

	var res []Row
	for rows.Next() {
		var row Row
		var exception, properties sql.NullString
		extra := make([]any, len(s.options.AdditionalColumns))
		dest := []any{&row.ID, &row.Message, &row.Level, &row.TimeStamp, &exception}
		if s.options.StoreProperties {
			dest = append(dest, &properties)
		}
		for i := range extra {
			dest = append(dest, &extra[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", s.table, err)
		}

		row.Exception = exception.String
		row.Properties = properties.String
		row.Columns = make(map[string]any, len(extra))
		for i, c := range s.options.AdditionalColumns {
			if b, ok := extra[i].([]byte); ok {
				extra[i] = string(b)
			}
			row.Columns[c.Name] = extra[i]
		}
		res = append(res, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.table, err)
	}
	return res, nil
}

func (s *Sink) provision(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provisioned || !s.options.AutoCreateTable {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.createStatement()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	tlog.Get(ctx).Info("Log table ready", zap.String("table", s.table))
	s.provisioned = true
	return nil
}

func (s *Sink) createStatement() string {
	defs := []string{
		quote("Id") + " INTEGER PRIMARY KEY AUTOINCREMENT",
		quote("Message") + " TEXT",
		quote("Level") + " VARCHAR(16)",
		quote("TimeStamp") + " DATETIME NOT NULL",
		quote("Exception") + " TEXT",
	}
	if s.options.StoreProperties {
		defs = append(defs, quote("Properties")+" TEXT")
	}
	for _, c := range s.options.AdditionalColumns {
		defs = append(defs, c.definition())
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(s.table), strings.Join(defs, ",\n\t"))
}

func (s *Sink) insertStatement() string {
	names := []string{quote("Message"), quote("Level"), quote("TimeStamp"), quote("Exception")}
	if s.options.StoreProperties {
		names = append(names, quote("Properties"))
	}
	for _, c := range s.options.AdditionalColumns {
		names = append(names, quote(c.Name))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(s.table), strings.Join(names, ", "), placeholders)
}

func (s *Sink) row(ev *eventlog.Event) []any {
	var exception any
	if ev.Err != nil {
		exception = ev.Err.Error()
	}
	args := []any{ev.RenderMessage(), ev.Level.String(), ev.Timestamp.UTC(), exception}

	if s.options.StoreProperties {
		// property values that JSON cannot represent arrive here as text
		args = append(args, string(must.OK1(json.Marshal(ev.JSONProperties()))))
	}
	for _, c := range s.options.AdditionalColumns {
		args = append(args, c.value(ev))
	}
	return args
}
