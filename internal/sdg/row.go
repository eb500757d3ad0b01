package sdg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// dataFields are written as their own columns, never as extras.
var dataFields = map[string]bool{
	"value":           true,
	"timePeriodStart": true,
	"Reporting Type":  true,
}

// dataPoint converts one observation. The series code gets "_<value>"
// appended for each include dimension present; missing ones are returned so
// the caller can warn.
func dataPoint(iso, seriesCode string, obs observation, includeDims []string) (p DataPoint, missing []string) {
	code := seriesCode
	for _, dim := range includeDims {
		v, ok := obs.get(dim)
		if !ok {
			missing = append(missing, dim)
			continue
		}
		code += "_" + strings.TrimSpace(plainText(v))
	}

	var period, value string
	if v, ok := obs.get("timePeriodStart"); ok {
		period = plainText(v)
	}
	if v, ok := obs.get("value"); ok {
		value = plainText(v)
	}

	var extras strings.Builder
	extras.WriteByte('[')
	n := 0
	for _, f := range obs {
		if dataFields[f.Key] {
			continue
		}
		if n > 0 {
			extras.WriteString(", ")
		}
		extras.WriteByte('(')
		extras.WriteString(quoteText(f.Key))
		extras.WriteString(", ")
		extras.WriteString(literal(f.Value))
		extras.WriteByte(')')
		n++
	}
	extras.WriteByte(']')

	return DataPoint{
		CountryISO: iso,
		SeriesCode: code,
		TimePeriod: period,
		Value:      value,
		ExtraDims:  extras.String(),
	}, missing
}

// Row renders the point as
// "iso\tcode\ttimePeriodStart\tvalue\t[('k', 'v'), ...]\n".
func (p DataPoint) Row() string {
	return p.CountryISO + "\t" + p.SeriesCode + "\t" + p.TimePeriod + "\t" + p.Value + "\t" + p.ExtraDims + "\n"
}

// ParseRow is the inverse of Row.
func ParseRow(line string) (DataPoint, error) {
	cols := strings.SplitN(strings.TrimRight(line, "\r\n"), "\t", 5)
	if len(cols) != 5 {
		return DataPoint{}, fmt.Errorf("data row has %d columns, want 5", len(cols))
	}
	return DataPoint{
		CountryISO: cols[0],
		SeriesCode: cols[1],
		TimePeriod: cols[2],
		Value:      cols[3],
		ExtraDims:  cols[4],
	}, nil
}

// plainText renders a JSON value the way it reads in a column: strings
// without quotes, everything else (null included) as a literal.
func plainText(raw json.RawMessage) string {
	if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '"' {
		return literal(raw)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return literal(raw)
}

// literal renders a JSON value as a tuple-list literal: quoted strings,
// None/True/False, numbers as sent, lists and objects recursively.
func literal(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "None"
	}
	switch raw[0] {
	case 'n':
		return "None"
	case 't':
		return "True"
	case 'f':
		return "False"
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw)
		}
		return quoteText(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return string(raw)
		}
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = literal(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case '{':
		var obj observation
		if err := json.Unmarshal(raw, &obj); err != nil {
			return string(raw)
		}
		parts := make([]string, len(obj))
		for i, f := range obj {
			parts[i] = quoteText(f.Key) + ": " + literal(f.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return string(raw)
	}
}

// quoteText quotes s with single quotes, or double quotes when s contains a
// single quote but no double quote.
func quoteText(s string) string {
	quote := '\''
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var b strings.Builder
	b.WriteRune(quote)
	for _, r := range s {
		switch {
		case r == quote || r == '\\':
			b.WriteRune('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case !unicode.IsPrint(r) && r != ' ':
			if r <= 0xffff {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				fmt.Fprintf(&b, `\U%08x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune(quote)
	return b.String()
}
