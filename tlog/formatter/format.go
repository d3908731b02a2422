// Package formatter turns JSON log lines produced by zap into human-readable
// console lines
package formatter

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap/buffer"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Formatting never fails on a malformed value: it misformats it with a marker
// but always prints all the data that was present in the original line.

// statusFields hold HTTP status codes and are colored by status class
var statusFields = map[string]bool{"StatusCode": true, "status": true}

var bufferPool = buffer.NewPool()

var errNotOurs = errors.New("JSON log line in a foreign format")

// takeString removes the key from fields and returns its value. A non-string
// value is converted with a marker.
func takeString(fields map[string]any, key string) (string, bool) {
	val, ok := fields[key]
	if !ok {
		return "", false
	}

	delete(fields, key)
	s, ok := val.(string)
	if !ok {
		return fmt.Sprintf("<MALFORMED %v OF TYPE %T>", val, val), true
	}
	return s, true
}

func mustTakeString(fields map[string]any, key string) string {
	s, ok := takeString(fields, key)
	if !ok {
		return "<MISSING " + key + ">"
	}
	return s
}

// Line formats a single JSON log line.
//
// prevTimestamp is the timestamp of the previous line: the parts of the
// current timestamp that have not changed since are deemphasized.
func Line(line []byte, prevTimestamp string, color bool) (out *buffer.Buffer, timestamp string, err error) {
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, "", err
	}
	if _, ok := fields["ts"]; !ok {
		return nil, "", errNotOurs
	}

	level := mustTakeString(fields, "level")
	ts := mustTakeString(fields, "ts")
	msg := mustTakeString(fields, "msg")
	logger, _ := takeString(fields, "logger")
	caller, _ := takeString(fields, "caller")
	errStr, haveError := takeString(fields, "error")
	multilineError := haveError && strings.Contains(errStr, "\n")

	buf := bufferPool.Get()
	style := consoleStyles[color]

	if dateTimeRx.MatchString(ts) {
		formatTimestamp(buf, ts, style, prevTimestamp)
	} else {
		formatString(buf, ts)
	}
	buf.AppendByte(' ')
	formatLevel(buf, level, style)
	buf.AppendByte(' ')
	style(buf, messageColor, msg)

	keys := maps.Keys(fields)
	slices.Sort(keys)

	var multiline []string
	for _, key := range keys {
		if v, ok := fields[key].(string); ok && strings.Contains(v, "\n") {
			multiline = append(multiline, key)
			continue
		}

		buf.AppendByte(' ')
		style(buf, fieldColor, key+"=")
		if statusFields[key] {
			formatStatus(buf, fields[key], style)
		} else {
			formatValue(buf, fields[key], style)
		}
	}

	// a one-line error goes last
	if haveError && !multilineError {
		buf.AppendByte(' ')
		style(buf, errorColor, "error=")
		formatString(buf, errStr)
	}

	if logger != "" {
		buf.AppendString(" [")
		buf.AppendString(logger)
		buf.AppendString("]")
	}
	if caller != "" {
		buf.AppendString(" (")
		style(buf, callerColor, caller)
		buf.AppendString(")")
	}
	buf.AppendByte('\n')

	if multilineError {
		formatMultilineString(buf, "error", errStr, style, errorColor)
	}
	for _, key := range multiline {
		formatMultilineString(buf, key, fields[key].(string), style, fieldColor)
	}
	if multilineError || len(multiline) > 0 {
		style(buf, fieldColor, "----------")
		buf.AppendByte('\n')
	}

	return buf, ts, nil
}

func formatLevel(buf *buffer.Buffer, level string, style styleFn) {
	switch level {
	case "verbose":
		style(buf, verboseColor, "VRB")
	case "debug":
		style(buf, debugColor, "DBG")
	case "info":
		style(buf, infoColor, "INF")
	case "warn":
		style(buf, warnColor, "WRN")
	case "error":
		style(buf, errorColor, "ERR")
	case "fatal":
		style(buf, errorColor, "FTL")
	case "":
		style(buf, errorColor, "???")
	default:
		upper := strings.ToUpper(level)
		if len(upper) > 3 {
			upper = upper[:3]
		}
		style(buf, errorColor, upper)
	}
}

func formatStatus(buf *buffer.Buffer, value any, style styleFn) {
	code, ok := value.(float64)
	if !ok {
		formatValue(buf, value, style)
		return
	}
	var c color
	switch {
	case code >= 500:
		c = serverErrorColor
	case code >= 400:
		c = clientErrorColor
	case code >= 300:
		c = redirectColor
	default:
		c = successColor
	}
	style(buf, c, fmt.Sprintf("%.22g", code))
}

func formatValue(buf *buffer.Buffer, value any, style styleFn) {
	switch v := value.(type) {
	case float64:
		fmt.Fprintf(buf, "%.22g", v) // integers print as integers
	case bool:
		fmt.Fprintf(buf, "%#v", v)
	case nil:
		buf.AppendString("null")
	case string:
		formatTimestampOrString(buf, v, style)
	case map[string]any:
		formatMap(buf, v, style)
	case []any:
		formatArray(buf, v, style)
	default:
		panic("unreachable")
	}
}

func formatMap(buf *buffer.Buffer, value map[string]any, style styleFn) {
	style(buf, objectPunctuationColor, "{")
	keys := maps.Keys(value)
	slices.Sort(keys)
	for i, key := range keys {
		if i > 0 {
			style(buf, objectPunctuationColor, ", ")
		}
		style(buf, subFieldColor, key)
		style(buf, objectPunctuationColor, ":")
		buf.AppendByte(' ')
		formatValue(buf, value[key], style)
	}
	style(buf, objectPunctuationColor, "}")
}

func formatArray(buf *buffer.Buffer, value []any, style styleFn) {
	style(buf, arrayPunctuationColor, "[")
	for i, val := range value {
		if i > 0 {
			style(buf, arrayPunctuationColor, ", ")
		}
		formatValue(buf, val, style)
	}
	style(buf, arrayPunctuationColor, "]")
}

var dateTimeRx = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})T(\d{2}:\d{2}:\d{2}(?:.\d+)?)(Z|[+-]\d{2}:\d{2})$`)

func commonPrefixLength(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func formatTimestamp(buf *buffer.Buffer, ts string, style styleFn, previousTS string) {
	m := dateTimeRx.FindStringSubmatch(ts)
	cpl := commonPrefixLength(ts, previousTS)

	common, unique := splitAt(m[1], cpl)
	style(buf, commonDatePartColor, common)
	buf.AppendString(unique)

	style(buf, deemphasizedDatePartColor, "T")

	common, unique = splitAt(m[2], cpl-len(m[1])-1)
	style(buf, commonDatePartColor, common)
	buf.AppendString(unique)

	// only UTC is expected, other zones stand out
	if m[3] == "Z" {
		style(buf, deemphasizedDatePartColor, "Z")
	} else {
		buf.AppendString(m[3])
	}
}

func splitAt(s string, pos int) (before, after string) {
	if pos <= 0 {
		return "", s
	}
	if pos >= len(s) {
		return s, ""
	}
	return s[:pos], s[pos:]
}

func formatTimestampOrString(buf *buffer.Buffer, s string, style styleFn) {
	if dateTimeRx.MatchString(s) {
		formatTimestamp(buf, s, style, "")
	} else {
		formatString(buf, s)
	}
}

func formatString(buf *buffer.Buffer, s string) {
	if strings.Contains(s, `"`) || strings.Contains(s, `\`) {
		fmt.Fprintf(buf, "%#q", s)
		return
	}
	fmt.Fprintf(buf, "%q", s)
}

func formatMultilineString(buf *buffer.Buffer, field string, value string, style styleFn, color color) {
	style(buf, color, "----- "+field+" -----")
	buf.AppendByte('\n')
	buf.AppendString(value)
	if !strings.HasSuffix(value, "\n") {
		buf.AppendByte('\n')
	}
}
