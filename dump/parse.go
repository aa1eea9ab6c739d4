package dump

import (
	"bytes"
	"fmt"
)

// FormatError reports a line whose separator count is wrong. One bad line
// invalidates the whole dump.
type FormatError struct {
	Line       int
	Separators int
	Near       string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("dump line %d has %d separators, want %d (near %q)", e.Line, e.Separators, NumFields, e.Near)
}

func isSep(c byte) bool {
	return c == FieldSep || c == AltSep
}

// Validate checks that every line has exactly NumFields separators and that
// the data ends with a newline. A single newline is a valid empty dump
// (packages that export nothing).
func Validate(data []byte) error {
	if len(data) == 0 || (len(data) == 1 && data[0] == '\n') {
		return nil
	}
	line, n := 1, 0
	for i, c := range data {
		switch {
		case isSep(c):
			n++
		case c == '\n':
			if n != NumFields {
				return &FormatError{Line: line, Separators: n, Near: near(data, i)}
			}
			n = 0
			line++
		}
	}
	if data[len(data)-1] != '\n' {
		return &FormatError{Line: line, Separators: n, Near: near(data, len(data))}
	}
	return nil
}

func near(data []byte, i int) string {
	start := max(0, i-16)
	return string(data[start:i])
}

// Count returns the number of records in a validated dump.
func Count(data []byte) int {
	if len(data) <= 2 {
		return 0
	}
	return bytes.Count(data, []byte{'\n'})
}

// Parse validates data and splits it into records, applying the quote
// escaping: literal quotes become QuoteEsc and QuoteMark becomes a quote.
func Parse(data []byte) ([]Record, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	records := make([]Record, 0, Count(data))
	for len(data) > 0 {
		nl := bytes.IndexByte(data, '\n')
		line := data[:nl]
		data = data[nl+1:]
		if len(line) == 0 {
			continue
		}
		records = append(records, parseLine(line))
	}
	return records, nil
}

func parseLine(line []byte) Record {
	var f [NumFields]string
	i := 0
	start := 0
	for j, c := range line {
		if isSep(c) {
			f[i] = escape(line[start:j])
			i++
			start = j + 1
		}
	}
	return Record{
		Name:        f[0],
		Type:        f[1],
		Menu:        f[2],
		Origin:      f[3],
		Usage:       f[4],
		Title:       f[5],
		Description: f[6],
	}
}

func escape(b []byte) string {
	if bytes.IndexByte(b, '\'') < 0 && bytes.IndexByte(b, QuoteMark) < 0 {
		return string(b)
	}
	out := make([]byte, len(b))
	for i, c := range b {
		switch c {
		case '\'':
			out[i] = QuoteEsc
		case QuoteMark:
			out[i] = '\''
		default:
			out[i] = c
		}
	}
	return string(out)
}
