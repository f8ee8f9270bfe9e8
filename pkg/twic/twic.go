// Package twic extracts event and section descriptors from a weekly
// tournament-index page.
package twic

import "errors"

const (
	// UnknownField marks a section field missing from the page.
	UnknownField = "UNKNOWN"
	// UnknownTimeControl marks a section without a time control.
	UnknownTimeControl = "Unknown"

	// DefaultEmptyEventThreshold is the number of section-less events at
	// which an archive's metadata is considered too degraded to use.
	DefaultEmptyEventThreshold = 3
)

var (
	ErrResultsTableNotFound = errors.New("twic: results table not found")
	ErrNoGameCounts         = errors.New("twic: results table has no usable game counts")
	ErrNoEvents             = errors.New("twic: no events with sections")
	ErrDegradedMetadata     = errors.New("twic: too many events without sections")
)

// SectionDescriptor is one tournament section listed under an event.
type SectionDescriptor struct {
	EventName   string
	StartDate   string
	EndDate     string
	Place       string
	Nation      string
	Site        string
	TimeControl string
}

// EventDescriptor is one top-level event heading with its expected game count.
type EventDescriptor struct {
	EventName         string
	ExpectedGameCount int
	Sections          []SectionDescriptor
}

// Metadata is everything extracted from one archive's index page.
type Metadata struct {
	Archive int
	Events  []EventDescriptor
	// EmptyEvents names counted events that listed no sections. They are
	// not part of Events.
	EmptyEvents []string
}

// TotalGames is the sum of the expected game counts of all events.
func (m *Metadata) TotalGames() int {
	total := 0
	for _, ev := range m.Events {
		total += ev.ExpectedGameCount
	}
	return total
}

// DeriveSite builds the site text a game header is expected to carry.
func DeriveSite(place, nation string) string {
	hasPlace := place != "" && place != UnknownField
	hasNation := nation != "" && nation != UnknownField
	switch {
	case hasPlace && hasNation:
		return place + " " + nation
	case hasPlace:
		return place
	case hasNation:
		return nation
	default:
		return UnknownField
	}
}
