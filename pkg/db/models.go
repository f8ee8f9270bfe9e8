package db

import "time"

// Archive status values.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Archive is the run record of one weekly archive.
type Archive struct {
	Number             int
	Title              string
	Status             string
	Games              int
	Matched            int
	Fallback           int
	Unmatched          int
	DecodeWarnings     int
	ParseFailures      int
	ResolutionFailures int
	Reviews            int
	EmptyEvents        []string
	Error              string
	UpdatedAt          time.Time
}

// Header is one PGN tag pair, kept in game order.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Game is a resolved game ready for storage.
type Game struct {
	ID           string
	Archive      int
	Seq          int
	White        string
	Black        string
	Date         string
	Event        string
	Site         string
	MatchedEvent string
	Section      string
	TimeClass    string
	TimeControl  string
	WhiteClock   string
	BlackClock   string
	PlyCount     int
	Headers      []Header
	PGN          string
	CreatedAt    time.Time
}
