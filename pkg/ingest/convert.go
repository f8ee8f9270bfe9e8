package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/japaniel/twicsync/pkg/align"
	"github.com/japaniel/twicsync/pkg/db"
	"github.com/japaniel/twicsync/pkg/pgn"
	"github.com/japaniel/twicsync/pkg/timecontrol"
)

// UnknownDate replaces a missing Date tag.
const UnknownDate = "????.??.??"

// ResolvedGame is a game with its event, section and time control settled.
type ResolvedGame struct {
	ID      string
	Archive int
	Seq     int
	White   string
	Black   string
	Date    string
	Record  pgn.GameRecord
	// Event and Section name the matched event and section; both are empty
	// for a game left unmatched.
	Event       string
	Section     string
	Path        align.Path
	TimeControl timecontrol.Entry
	Headers     []pgn.Tag
	PlyCount    int
	PGN         string
}

// newGameID prefixes a random id with the game date so ids sort by date.
func newGameID(date string) string {
	return date + "_" + uuid.NewString()
}

// resolveGame rewrites rec's headers with the resolved time control and the
// archive number.
func resolveGame(archive, seq int, rec pgn.GameRecord, entry timecontrol.Entry, newID func(string) string) (ResolvedGame, error) {
	parsed, err := pgn.ParseGame(rec.Text)
	if err != nil {
		return ResolvedGame{}, fmt.Errorf("game %d: %w", seq, err)
	}
	tags := parsed.Tags()

	tags = pgn.SetTag(tags, "TimeClass", string(entry.Class))
	if entry.PGN != "" {
		tags = pgn.SetTag(tags, "TimeControl", entry.PGN)
	}
	if entry.WhiteClock != "" {
		tags = pgn.SetTag(tags, "WhiteClock", entry.WhiteClock)
	}
	if entry.BlackClock != "" {
		tags = pgn.SetTag(tags, "BlackClock", entry.BlackClock)
	}
	plies := parsed.PlyCount()
	tags = pgn.SetTag(tags, "PlyCount", strconv.Itoa(plies))
	tags = pgn.SetTag(tags, "TwicArchive", strconv.Itoa(archive))

	date := tagValue(tags, "Date")
	if date == "" {
		date = UnknownDate
	}
	return ResolvedGame{
		ID:          newID(date),
		Archive:     archive,
		Seq:         seq,
		White:       strings.ToLower(tagValue(tags, "White")),
		Black:       strings.ToLower(tagValue(tags, "Black")),
		Date:        date,
		Record:      rec,
		TimeControl: entry,
		Headers:     tags,
		PlyCount:    plies,
		PGN:         parsed.Render(tags),
	}, nil
}

func tagValue(tags []pgn.Tag, name string) string {
	for _, t := range tags {
		if t.Name == name {
			return t.Value
		}
	}
	return ""
}

// dbGame converts g to its stored form.
func dbGame(g ResolvedGame) db.Game {
	headers := make([]db.Header, len(g.Headers))
	for i, t := range g.Headers {
		headers[i] = db.Header{Name: t.Name, Value: t.Value}
	}
	return db.Game{
		ID:           g.ID,
		Archive:      g.Archive,
		Seq:          g.Seq,
		White:        g.White,
		Black:        g.Black,
		Date:         g.Date,
		Event:        g.Record.Event,
		Site:         g.Record.Site,
		MatchedEvent: g.Event,
		Section:      g.Section,
		TimeClass:    string(g.TimeControl.Class),
		TimeControl:  g.TimeControl.PGN,
		WhiteClock:   g.TimeControl.WhiteClock,
		BlackClock:   g.TimeControl.BlackClock,
		PlyCount:     g.PlyCount,
		Headers:      headers,
		PGN:          g.PGN,
	}
}
