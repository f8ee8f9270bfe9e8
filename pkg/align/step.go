package align

import (
	"fmt"

	"github.com/japaniel/twicsync/pkg/pgn"
	"github.com/japaniel/twicsync/pkg/twic"
)

// Cursor is the scanning state of one archive pass. The zero value is the
// start of a pass.
type Cursor struct {
	EventIndex int
	// Consumed counts games assigned to the current event since the cursor
	// arrived there.
	Consumed int
	PrevSite string
	Started  bool
}

// Path records which rule produced an assignment.
type Path int

const (
	ZeroSections Path = iota
	Current
	Forward
	RecheckCurrent
	Backward
	Fallback
	Exhausted
)

func (p Path) String() string {
	switch p {
	case ZeroSections:
		return "zero-sections"
	case Current:
		return "current"
	case Forward:
		return "forward"
	case RecheckCurrent:
		return "recheck-current"
	case Backward:
		return "backward"
	case Fallback:
		return "fallback"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("path(%d)", int(p))
	}
}

// Matched reports whether the game was placed by a site match or a
// section-less event rather than as a fallback or drop.
func (p Path) Matched() bool {
	switch p {
	case ZeroSections, Current, Forward, RecheckCurrent, Backward:
		return true
	}
	return false
}

// Assignment places one game. EventIndex is -1 when the game is unmatched
// and SectionIndex is -1 when no single section applies.
type Assignment struct {
	EventIndex   int
	SectionIndex int
	Path         Path
}

// Level classifies a Note.
type Level int

const (
	Info Level = iota
	Warn
	// Review marks a game where the single-step matching rule would have
	// picked a different event.
	Review
)

// Note is a diagnostic produced while stepping.
type Note struct {
	Level      Level
	Message    string
	EventIndex int
	Event      string
}

// Step assigns game g given cursor c and returns the advanced cursor. It has
// no side effects; replaying the same games from a zero Cursor reproduces the
// same assignments.
func Step(c Cursor, g pgn.GameRecord, events []twic.EventDescriptor) (Assignment, Cursor, []Note) {
	siteChanged := c.Started && g.Site != c.PrevSite
	c.PrevSite = g.Site
	c.Started = true
	c = settle(c, events)

	if c.EventIndex >= len(events) {
		return Assignment{EventIndex: -1, SectionIndex: -1, Path: Exhausted}, c, []Note{{
			Level:      Warn,
			Message:    "no events left for game",
			EventIndex: c.EventIndex,
		}}
	}

	var notes []Note
	cur := events[c.EventIndex]
	simple := simpleChoice(c.EventIndex, g.Site, events)

	a, next := choose(c, g, events, siteChanged)
	switch a.Path {
	case ZeroSections:
		notes = append(notes, Note{Level: Info, Message: "event has no sections, assigning without site check", EventIndex: a.EventIndex, Event: cur.EventName})
	case Forward:
		notes = append(notes, Note{Level: Info, Message: "site matches a later event, jumping forward", EventIndex: a.EventIndex, Event: events[a.EventIndex].EventName})
	case RecheckCurrent:
		notes = append(notes, Note{Level: Info, Message: "site matches current event after site change, continuing with it", EventIndex: a.EventIndex, Event: cur.EventName})
	case Backward:
		notes = append(notes, Note{Level: Info, Message: "site matches an earlier event, assigning backward", EventIndex: a.EventIndex, Event: events[a.EventIndex].EventName})
	case Fallback:
		notes = append(notes, Note{Level: Warn, Message: "site not found for game, could indicate mismatched event", EventIndex: a.EventIndex, Event: cur.EventName})
	}
	if simple != a.EventIndex {
		notes = append(notes, Note{
			Level:      Review,
			Message:    fmt.Sprintf("single-step matching would assign event %d (%s)", simple, events[simple].EventName),
			EventIndex: a.EventIndex,
			Event:      events[a.EventIndex].EventName,
		})
	}

	if a.Path != Backward {
		next.Consumed++
		next = settle(next, events)
	}
	return a, next, notes
}

// choose applies the matching precedence to a settled cursor.
func choose(c Cursor, g pgn.GameRecord, events []twic.EventDescriptor, siteChanged bool) (Assignment, Cursor) {
	cur := events[c.EventIndex]
	if len(cur.Sections) == 0 {
		return Assignment{EventIndex: c.EventIndex, SectionIndex: -1, Path: ZeroSections}, c
	}

	if !siteChanged {
		if s, ok := MatchingSection(g.Site, g.Event, cur); ok {
			return Assignment{EventIndex: c.EventIndex, SectionIndex: s, Path: Current}, c
		}
	}

	for i := c.EventIndex + 1; i < len(events); i++ {
		if s, ok := MatchingSection(g.Site, g.Event, events[i]); ok {
			c.EventIndex = i
			c.Consumed = 0
			return Assignment{EventIndex: i, SectionIndex: s, Path: Forward}, c
		}
	}

	if siteChanged {
		if s, ok := MatchingSection(g.Site, g.Event, cur); ok {
			return Assignment{EventIndex: c.EventIndex, SectionIndex: s, Path: RecheckCurrent}, c
		}
	}

	for i := c.EventIndex - 1; i >= 0; i-- {
		if s, ok := MatchingSection(g.Site, g.Event, events[i]); ok {
			return Assignment{EventIndex: i, SectionIndex: s, Path: Backward}, c
		}
	}

	return Assignment{EventIndex: c.EventIndex, SectionIndex: -1, Path: Fallback}, c
}

// simpleChoice is the single-step rule: the current event if it matches,
// else the next event if that matches, else the current event.
func simpleChoice(idx int, site string, events []twic.EventDescriptor) int {
	cur := events[idx]
	if len(cur.Sections) == 0 || MatchesEvent(site, cur) {
		return idx
	}
	if idx+1 < len(events) && MatchesEvent(site, events[idx+1]) {
		return idx + 1
	}
	return idx
}

// settle moves the cursor past events whose expected count is used up.
func settle(c Cursor, events []twic.EventDescriptor) Cursor {
	for c.EventIndex < len(events) && c.Consumed >= events[c.EventIndex].ExpectedGameCount {
		c.EventIndex++
		c.Consumed = 0
	}
	return c
}
