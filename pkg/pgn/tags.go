package pgn

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoTags is returned when a record carries no tag pairs at all.
var ErrNoTags = errors.New("pgn: record has no tag pairs")

// Unknown is the value used for a header that is absent.
const Unknown = "?"

var tagPairRe = regexp.MustCompile(`(?:^|[\r\n])[\r\n \t]*\[([A-Za-z0-9_]+)[ \t]+"((?:[^"\\]|\\.)*)"[ \t]*\]`)

// Tag is a single header tag pair.
type Tag struct {
	Name  string
	Value string
}

// TagValue returns the first value of the named tag, or "?" if absent.
func TagValue(text, name string) string {
	for _, m := range tagPairRe.FindAllStringSubmatch(text, -1) {
		if m[1] == name {
			return unescape(m[2])
		}
	}
	return Unknown
}

// SetTag replaces the value of name in tags or appends it.
func SetTag(tags []Tag, name, value string) []Tag {
	for i := range tags {
		if tags[i].Name == name {
			tags[i].Value = value
			return tags
		}
	}
	return append(tags, Tag{Name: name, Value: value})
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(s)
}
