// Package pgn reads game records out of bulk archive text.
package pgn

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ErrMalformedHeader is returned when a record does not open with an Event tag.
var ErrMalformedHeader = errors.New("pgn: record does not start with [Event header")

const maxLineSize = 4 << 20

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// resultTokens terminate a record when they end a movetext line.
var resultTokens = []string{"1-0", "0-1", "1/2-1/2", "*"}

// GameRecord is one game's raw text plus the header fields used for alignment.
type GameRecord struct {
	Text  string
	Event string
	Site  string
}

// NewGameRecord derives the Event and Site fields from text.
func NewGameRecord(text string) GameRecord {
	return GameRecord{
		Text:  text,
		Event: TagValue(text, "Event"),
		Site:  TagValue(text, "Site"),
	}
}

// Reader yields game records from an archive stream. It is single pass.
type Reader struct {
	scanner  *bufio.Scanner
	archive  int
	decoder  *Decoder
	logger   *zap.Logger
	line     int
	warnings int
	err      error
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger sets the logger used for decode warnings.
func WithLogger(l *zap.Logger) ReaderOption {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDecoder replaces the default line decoder.
func WithDecoder(d *Decoder) ReaderOption {
	return func(r *Reader) {
		if d != nil {
			r.decoder = d
		}
	}
}

// NewReader wraps r. archive is only used to label log output.
func NewReader(r io.Reader, archive int, opts ...ReaderOption) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	sc.Split(scanLines)
	rd := &Reader{
		scanner: sc,
		archive: archive,
		decoder: NewDecoder(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// DecodeWarnings returns how many lines needed a fallback decoding so far.
func (r *Reader) DecodeWarnings() int { return r.warnings }

// Next returns the next record, io.EOF when the stream is exhausted, or a
// wrapped ErrMalformedHeader. Errors are sticky.
func (r *Reader) Next() (GameRecord, error) {
	if r.err != nil {
		return GameRecord{}, r.err
	}

	var first string
	for {
		line, err := r.readLine()
		if err != nil {
			r.err = err
			return GameRecord{}, err
		}
		first = strings.TrimLeft(line, " \t\r\n")
		if first != "" {
			break
		}
	}

	if !strings.HasPrefix(first, "[Event") {
		r.err = fmt.Errorf("%w: line %d: %q", ErrMalformedHeader, r.line, strings.TrimSpace(first))
		return GameRecord{}, r.err
	}

	var sb strings.Builder
	sb.WriteString(first)
	foundMoves := false
	for {
		line, err := r.readLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			r.err = err
			return GameRecord{}, err
		}
		if isBlank(line) {
			if foundMoves {
				break
			}
			foundMoves = true
			sb.WriteString(line)
			continue
		}
		sb.WriteString(line)
		if (foundMoves || !isTagLine(line)) && endsWithResult(line) {
			break
		}
	}
	return NewGameRecord(sb.String()), nil
}

// ReadAll reads every record. On a fatal error the records read so far are
// returned alongside it.
func ReadAll(r io.Reader, archive int, opts ...ReaderOption) ([]GameRecord, int, error) {
	rd := NewReader(r, archive, opts...)
	var games []GameRecord
	for {
		g, err := rd.Next()
		if err == io.EOF {
			return games, rd.DecodeWarnings(), nil
		}
		if err != nil {
			return games, rd.DecodeWarnings(), err
		}
		games = append(games, g)
	}
}

func (r *Reader) readLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", fmt.Errorf("pgn: read line %d: %w", r.line+1, err)
		}
		return "", io.EOF
	}
	r.line++
	raw := r.scanner.Bytes()
	if r.line == 1 {
		raw = bytes.TrimPrefix(raw, utf8BOM)
	}
	text, fb := r.decoder.Decode(raw)
	if fb != FallbackNone {
		r.warnings++
		r.logger.Warn("failed to decode line with windows-1251, used fallback",
			zap.Int("archive", r.archive),
			zap.Int("line", r.line),
			zap.Stringer("decoding", fb))
	}
	return text, nil
}

// scanLines splits on \n, \r\n and bare \r, keeping the terminator so record
// text preserves the original bytes.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i+1], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i+2], nil
			}
			return i + 1, data[:i+1], nil
		}
		if !atEOF {
			return 0, nil, nil
		}
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isTagLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "[")
}

func endsWithResult(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, tok := range resultTokens {
		if strings.HasSuffix(trimmed, tok) {
			return true
		}
	}
	return false
}
