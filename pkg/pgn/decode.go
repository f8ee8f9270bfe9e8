package pgn

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// Fallback reports which decoding path produced a line.
type Fallback int

const (
	// FallbackNone means the primary code page decoded the line.
	FallbackNone Fallback = iota
	// FallbackUTF8 means the line was not valid Windows-1251 but was valid UTF-8.
	FallbackUTF8
	// FallbackDetected means the charset detector picked the encoding.
	FallbackDetected
	// FallbackReplaced means nothing decoded cleanly and invalid bytes were replaced.
	FallbackReplaced
)

func (f Fallback) String() string {
	switch f {
	case FallbackNone:
		return "windows-1251"
	case FallbackUTF8:
		return "utf-8"
	case FallbackDetected:
		return "detected"
	case FallbackReplaced:
		return "utf-8-replaced"
	default:
		return "unknown"
	}
}

var replacementChar = []byte(string(utf8.RuneError))

// charsetDetector guesses the encoding of a byte string.
type charsetDetector interface {
	DetectBest(b []byte) (*chardet.Result, error)
}

// Decoder converts raw archive lines to text. Archives are published in
// Windows-1251, but individual lines are regularly UTF-8.
type Decoder struct {
	primary  *charmap.Charmap
	detector charsetDetector
}

// NewDecoder returns a Decoder using Windows-1251 as the primary code page.
func NewDecoder() *Decoder {
	return &Decoder{
		primary:  charmap.Windows1251,
		detector: chardet.NewTextDetector(),
	}
}

// Decode returns the decoded line and the path that produced it. It never fails.
func (d *Decoder) Decode(line []byte) (string, Fallback) {
	if s, ok := d.decodePrimary(line); ok {
		return s, FallbackNone
	}
	if utf8.Valid(line) {
		return string(line), FallbackUTF8
	}
	if s, ok := d.decodeDetected(line); ok {
		return s, FallbackDetected
	}
	return strings.ToValidUTF8(string(line), string(utf8.RuneError)), FallbackReplaced
}

// decodePrimary is strict: a byte the code page leaves undefined (0x98 in
// Windows-1251) fails the whole line.
func (d *Decoder) decodePrimary(line []byte) (string, bool) {
	var sb strings.Builder
	sb.Grow(len(line))
	for _, b := range line {
		if b < utf8.RuneSelf {
			sb.WriteByte(b)
			continue
		}
		r := d.primary.DecodeByte(b)
		if r == utf8.RuneError {
			return "", false
		}
		sb.WriteRune(r)
	}
	return sb.String(), true
}

// decodeDetected decodes line in the detector's best guess. Output with
// replacement characters the input did not already contain is rejected.
func (d *Decoder) decodeDetected(line []byte) (string, bool) {
	res, err := d.detector.DetectBest(line)
	if err != nil || res == nil {
		return "", false
	}
	return decodeCharset(line, res.Charset)
}

func decodeCharset(line []byte, name string) (string, bool) {
	name = strings.ToLower(name)
	if name == "utf-8" || name == "windows-1251" {
		return "", false
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(line)
	if err != nil || !utf8.Valid(out) {
		return "", false
	}
	if bytes.Contains(out, replacementChar) && !bytes.Contains(line, replacementChar) {
		return "", false
	}
	return string(out), true
}
