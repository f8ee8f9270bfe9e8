// Package align assigns archive games to the events and sections listed on
// the archive's index page.
package align

import (
	"strings"

	"github.com/japaniel/twicsync/pkg/twic"
)

// Matches reports whether a game's site text belongs to section s: the site
// equals the section's derived site, or contains its place or nation. An
// empty place or nation is a substring of every site and so always matches.
// UNKNOWN fields never match.
func Matches(gameSite string, s twic.SectionDescriptor) bool {
	if s.Site != twic.UnknownField && gameSite == s.Site {
		return true
	}
	if s.Place != twic.UnknownField && strings.Contains(gameSite, s.Place) {
		return true
	}
	return s.Nation != twic.UnknownField && strings.Contains(gameSite, s.Nation)
}

// MatchesEvent reports whether any section of ev matches gameSite.
func MatchesEvent(gameSite string, ev twic.EventDescriptor) bool {
	for _, s := range ev.Sections {
		if Matches(gameSite, s) {
			return true
		}
	}
	return false
}

// MatchingSection picks the section of ev that gameSite belongs to. When
// several match, the one whose event name equals gameEvent wins, otherwise
// the first in document order.
func MatchingSection(gameSite, gameEvent string, ev twic.EventDescriptor) (int, bool) {
	first := -1
	for i, s := range ev.Sections {
		if !Matches(gameSite, s) {
			continue
		}
		if s.EventName == gameEvent {
			return i, true
		}
		if first < 0 {
			first = i
		}
	}
	return first, first >= 0
}
