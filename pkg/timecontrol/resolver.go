package timecontrol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/japaniel/twicsync/pkg/pgn"
	"github.com/japaniel/twicsync/pkg/twic"
	"go.uber.org/zap"
)

// TitledTuesdayPGN is the control used for Titled Tuesday events, which
// index pages rarely describe.
const TitledTuesdayPGN = "180+1"

var ErrUnresolved = errors.New("timecontrol: no time class could be resolved")

// preference orders classes when an event's sections disagree.
var preference = []Class{Standard, Rapid, Blitz}

// Resolver resolves games of one archive. It remembers which unmapped
// texts it has already reported, so it must not be shared between
// goroutines.
type Resolver struct {
	Table  *Table
	Logger *zap.Logger

	reported map[string]bool
}

func NewResolver(table *Table, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{Table: table, Logger: logger, reported: make(map[string]bool)}
}

// Resolve picks the time control of game g within ev. A nil ev, as for a
// game left unmatched, resolves from the game's event name alone.
func (r *Resolver) Resolve(archive int, g pgn.GameRecord, ev *twic.EventDescriptor) (Entry, error) {
	if ev == nil {
		return KeywordFallback(g.Event), nil
	}

	var (
		mapped  []Entry
		classes = make(map[Class]bool)
	)
	for _, text := range candidateTexts(g.Event, ev) {
		e, ok := r.Table.Lookup(text)
		if !ok {
			r.reportUnknown(archive, text)
			continue
		}
		mapped = append(mapped, e)
		classes[e.Class] = true
	}

	switch len(classes) {
	case 0:
		return KeywordFallback(g.Event), nil
	case 1:
		return mapped[0], nil
	}

	for _, class := range preference {
		if !classes[class] {
			continue
		}
		for _, e := range mapped {
			if e.Class == class {
				return e, nil
			}
		}
	}
	return Entry{}, fmt.Errorf("archive %d event %q: %w", archive, ev.EventName, ErrUnresolved)
}

// candidateTexts returns the time-control texts to consider: the single
// section named after the game's event if there is exactly one, else every
// section with a known time control.
func candidateTexts(gameEvent string, ev *twic.EventDescriptor) []string {
	var named []string
	for _, s := range ev.Sections {
		if s.EventName == gameEvent {
			named = append(named, s.TimeControl)
		}
	}
	if len(named) == 1 {
		if known(named[0]) {
			return named
		}
		return nil
	}

	var texts []string
	for _, s := range ev.Sections {
		if known(s.TimeControl) {
			texts = append(texts, s.TimeControl)
		}
	}
	return texts
}

func known(text string) bool {
	text = strings.TrimSpace(text)
	return text != "" && text != twic.UnknownTimeControl
}

func (r *Resolver) reportUnknown(archive int, text string) {
	text = strings.TrimSpace(text)
	if r.reported[text] {
		return
	}
	r.reported[text] = true
	r.Logger.Warn("unknown time control",
		zap.Int("archive", archive),
		zap.String("time_control", text))
}

// KeywordFallback classifies a game by keywords in its event name.
func KeywordFallback(eventName string) Entry {
	name := strings.ToLower(eventName)
	if strings.Contains(name, "titled tue") {
		return Entry{Class: Blitz, PGN: TitledTuesdayPGN}
	}

	class := Unknown
	switch {
	case strings.Contains(name, "classical"):
		class = Standard
	case strings.Contains(name, "rapid"), strings.Contains(name, "quick"):
		class = Rapid
	case strings.Contains(name, "blitz"), strings.Contains(name, "bullet"), strings.Contains(name, "armageddon"):
		class = Blitz
	}
	return Entry{Class: class}
}
