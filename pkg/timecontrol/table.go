// Package timecontrol maps the free-text time controls of index pages to
// canonical time classes and PGN TimeControl values.
package timecontrol

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Class is a canonical time class.
type Class string

const (
	Standard Class = "Standard"
	Rapid    Class = "Rapid"
	Blitz    Class = "Blitz"
	Unknown  Class = "Unknown"
)

// Entry is one row of the mapping table.
type Entry struct {
	Text       string
	Class      Class
	PGN        string
	WhiteClock string
	BlackClock string
}

var ErrMissingColumn = errors.New("timecontrol: missing column")

// Table is keyed by the exact, trimmed time-control text. It is read-only
// once loaded and safe to share between goroutines.
type Table struct {
	entries map[string]Entry
}

// NewTable builds a table from entries. Later entries replace earlier ones
// with the same text.
func NewTable(entries ...Entry) *Table {
	t := &Table{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		e.Text = strings.TrimSpace(e.Text)
		t.entries[e.Text] = e
	}
	return t
}

// LoadCSV reads a table with the header twic,time_class,pgn,white_clock,black_clock.
// Only twic and time_class are required.
func LoadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, required := range []string{"twic", "time_class"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	get := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	t := NewTable()
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		text := get(rec, "twic")
		if text == "" {
			continue
		}
		t.entries[text] = Entry{
			Text:       text,
			Class:      Class(get(rec, "time_class")),
			PGN:        get(rec, "pgn"),
			WhiteClock: get(rec, "white_clock"),
			BlackClock: get(rec, "black_clock"),
		}
	}
	return t, nil
}

// LoadFile reads a CSV table from path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open time control table: %w", err)
	}
	defer f.Close()
	t, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Lookup returns the entry for text, ignoring surrounding whitespace.
func (t *Table) Lookup(text string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	e, ok := t.entries[strings.TrimSpace(text)]
	return e, ok
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
