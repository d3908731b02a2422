package sqltable

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ridge/reqlog/eventlog"
)

// ColumnType is the SQL type of an additional column
type ColumnType int

// ColumnType values
const (
	VarChar ColumnType = iota
	NVarChar
	Int
	BigInt
	Float
	Bit
	DateTime
)

var columnTypeNames = [...]string{
	VarChar:  "VARCHAR",
	NVarChar: "NVARCHAR",
	Int:      "INTEGER",
	BigInt:   "BIGINT",
	Float:    "REAL",
	Bit:      "BOOLEAN",
	DateTime: "DATETIME",
}

func (ct ColumnType) String() string {
	if ct < VarChar || ct > DateTime {
		return fmt.Sprintf("ColumnType(%d)", ct)
	}
	return columnTypeNames[ct]
}

// DefaultLength is the length of string columns that do not specify one
const DefaultLength = 4000

// Unlimited is the Length of string columns without a length limit
const Unlimited = -1

// Column is an additional table column filled from an event property
type Column struct {
	Name         string
	Type         ColumnType
	Length       int    // string columns only: 0 means DefaultLength, Unlimited means no limit
	PropertyName string // defaults to Name
	AllowNull    bool   // when false, a missing property is stored as the zero value
}

// DefaultColumns is the column set used by the demo service
func DefaultColumns() []Column {
	return []Column{
		{Name: "EnvironmentName", Type: VarChar, Length: 64, AllowNull: true},
		{Name: "ProductName", Type: NVarChar, Length: 32, AllowNull: true},
		{Name: "ThreadId", Type: Int, AllowNull: true},
		{Name: "Body", Type: NVarChar, Length: Unlimited, AllowNull: true},
	}
}

func (c Column) property() string {
	if c.PropertyName != "" {
		return c.PropertyName
	}
	return c.Name
}

func (c Column) isString() bool {
	return c.Type == VarChar || c.Type == NVarChar
}

func (c Column) length() int {
	if c.Length == 0 {
		return DefaultLength
	}
	return c.Length
}

func (c Column) definition() string {
	var typ string
	switch {
	case c.isString() && c.length() == Unlimited:
		typ = "TEXT"
	case c.isString():
		typ = fmt.Sprintf("%s(%d)", c.Type, c.length())
	default:
		typ = c.Type.String()
	}
	def := quote(c.Name) + " " + typ
	if !c.AllowNull {
		def += " NOT NULL"
	}
	return def
}

func (c Column) validate() error {
	if c.Name == "" {
		return errors.New("column name is empty")
	}
	if c.Type < VarChar || c.Type > DateTime {
		return fmt.Errorf("column %s: unknown type %d", c.Name, c.Type)
	}
	if c.Length < Unlimited {
		return fmt.Errorf("column %s: invalid length %d", c.Name, c.Length)
	}
	return nil
}

// value converts the event property into a value for the column. Missing and
// unconvertible properties become NULL or the zero value.
func (c Column) value(ev *eventlog.Event) any {
	if raw, ok := ev.Property(c.property()); ok && raw != nil {
		if v, ok := c.convert(raw); ok {
			return v
		}
	}
	if c.AllowNull {
		return nil
	}
	switch c.Type {
	case VarChar, NVarChar:
		return ""
	case Int, BigInt:
		return int64(0)
	case Float:
		return float64(0)
	case Bit:
		return false
	default:
		return time.Time{}
	}
}

func (c Column) convert(raw any) (any, bool) {
	switch c.Type {
	case VarChar, NVarChar:
		return truncate(toString(raw), c.length()), true
	case Int, BigInt:
		return toInt64(raw)
	case Float:
		f, ok := toFloat64(raw)
		// SQLite stores NaN as NULL
		return f, ok && !math.IsNaN(f) && !math.IsInf(f, 0)
	case Bit:
		return toBool(raw)
	default:
		return toTime(raw)
	}
}

func toString(v any) string {
	switch v := v.(type) {
	case error:
		return v.Error()
	case []byte:
		return string(v)
	default:
		return eventlog.FormatValue(v, "")
	}
}

func truncate(s string, length int) string {
	if length == Unlimited || utf8.RuneCountInString(s) <= length {
		return s
	}
	runes := 0
	for i := range s {
		if runes == length {
			return s[:i]
		}
		runes++
	}
	return s
}

func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case time.Duration:
		return float64(v) / float64(time.Millisecond), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		n, ok := toInt64(v)
		return float64(n), ok
	}
}

func toBool(v any) (bool, bool) {
	switch v := v.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		n, ok := toInt64(v)
		return n != 0, ok
	}
}

func toTime(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t.UTC(), err == nil
	default:
		return time.Time{}, false
	}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
