package eventlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Template is a parsed message template: literal text interleaved with named
// property placeholders such as {StatusCode} or {Elapsed:0.0000}.
//
// Parsing never fails. Malformed placeholders are kept as literal text, and
// doubled braces ({{ and }}) stand for single ones.
type Template struct {
	text   string
	tokens []token
}

type token struct {
	text     string // literal text, or the raw placeholder for properties
	property string // empty for literal text
	format   string
}

// ParseTemplate parses a message template
func ParseTemplate(text string) *Template {
	t := &Template{text: text}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.tokens = append(t.tokens, token{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				lit.WriteString(text[i:])
				i = len(text)
				continue
			}
			raw := text[i : i+end+2]
			name, format, ok := parsePlaceholder(raw[1 : len(raw)-1])
			if !ok {
				lit.WriteString(raw)
			} else {
				flush()
				t.tokens = append(t.tokens, token{text: raw, property: name, format: format})
			}
			i += end + 1
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t
}

func parsePlaceholder(s string) (name, format string, ok bool) {
	name, format, _ = strings.Cut(s, ":")
	name = strings.TrimLeft(name, "@$")
	if name == "" {
		return "", "", false
	}
	for _, r := range name {
		if r != '_' && !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z') && !('0' <= r && r <= '9') {
			return "", "", false
		}
	}
	return name, format, true
}

// Text returns the template as it was written
func (t *Template) Text() string {
	return t.text
}

// PropertyNames returns the names of the placeholders in order of appearance
func (t *Template) PropertyNames() []string {
	var names []string
	for _, tok := range t.tokens {
		if tok.property != "" {
			names = append(names, tok.property)
		}
	}
	return names
}

// Render substitutes property values into the template. Placeholders without
// a matching property are rendered as written.
func (t *Template) Render(lookup func(name string) (any, bool)) string {
	var sb strings.Builder
	for _, tok := range t.tokens {
		if tok.property == "" {
			sb.WriteString(tok.text)
			continue
		}
		v, ok := lookup(tok.property)
		if !ok {
			sb.WriteString(tok.text)
			continue
		}
		sb.WriteString(FormatValue(v, tok.format))
	}
	return sb.String()
}

// FormatValue renders a property value as text, honoring a numeric format.
//
// Numeric formats follow the usual template conventions: "0.0000" gives four
// decimal places, "F2" or "N2" two. Other formats are ignored.
func FormatValue(v any, format string) string {
	if prec, ok := precision(format); ok {
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', prec, 64)
		}
	}

	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func precision(format string) (int, bool) {
	if format == "" {
		return 0, false
	}
	if format[0] == 'F' || format[0] == 'f' || format[0] == 'N' || format[0] == 'n' {
		if len(format) == 1 {
			return 2, true
		}
		n, err := strconv.Atoi(format[1:])
		return n, err == nil && n >= 0
	}
	whole, frac, _ := strings.Cut(format, ".")
	if strings.Trim(whole, "0#,") != "" || strings.Trim(frac, "0#") != "" {
		return 0, false
	}
	return len(frac), true
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case time.Duration:
		return float64(v) / float64(time.Millisecond), true
	}
	return 0, false
}
