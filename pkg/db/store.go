package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

var ErrDuplicateGame = errors.New("db: duplicate game")

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// UpsertArchive inserts or replaces the run record of a.Number.
func UpsertArchive(db DBExecutor, a Archive) error {
	if a.Number <= 0 {
		return fmt.Errorf("archive number must be positive, got %d", a.Number)
	}
	if a.Status == "" {
		return fmt.Errorf("archive %d: status must be non-empty", a.Number)
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}

	_, err := db.Exec(`INSERT INTO archives (number, title, status, games, matched, fallback, unmatched,
	    decode_warnings, parse_failures, resolution_failures, reviews, empty_events, error, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(number) DO UPDATE SET
	  title = COALESCE(NULLIF(excluded.title, ''), archives.title),
	  status = excluded.status,
	  games = excluded.games,
	  matched = excluded.matched,
	  fallback = excluded.fallback,
	  unmatched = excluded.unmatched,
	  decode_warnings = excluded.decode_warnings,
	  parse_failures = excluded.parse_failures,
	  resolution_failures = excluded.resolution_failures,
	  reviews = excluded.reviews,
	  empty_events = excluded.empty_events,
	  error = excluded.error,
	  updated_at = excluded.updated_at`,
		a.Number, a.Title, a.Status, a.Games, a.Matched, a.Fallback, a.Unmatched,
		a.DecodeWarnings, a.ParseFailures, a.ResolutionFailures, a.Reviews,
		strings.Join(a.EmptyEvents, "\n"), a.Error, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert archive %d: %w", a.Number, err)
	}
	return nil
}

// GetArchive returns the run record of number, or sql.ErrNoRows.
func GetArchive(db DBExecutor, number int) (Archive, error) {
	var (
		a            Archive
		title, empty sql.NullString
		errText      sql.NullString
	)
	err := db.QueryRow(`SELECT number, title, status, games, matched, fallback, unmatched,
	    decode_warnings, parse_failures, resolution_failures, reviews, empty_events, error, updated_at
	FROM archives WHERE number = ?`, number).Scan(
		&a.Number, &title, &a.Status, &a.Games, &a.Matched, &a.Fallback, &a.Unmatched,
		&a.DecodeWarnings, &a.ParseFailures, &a.ResolutionFailures, &a.Reviews, &empty, &errText, &a.UpdatedAt)
	if err != nil {
		return Archive{}, err
	}
	a.Title = title.String
	a.Error = errText.String
	if empty.String != "" {
		a.EmptyEvents = strings.Split(empty.String, "\n")
	}
	return a, nil
}

// ArchiveDone reports whether number finished with status done.
func ArchiveDone(db DBExecutor, number int) (bool, error) {
	var status string
	err := db.QueryRow(`SELECT status FROM archives WHERE number = ?`, number).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status == StatusDone, nil
}

// DeleteArchiveGames removes every stored game of archive so a rerun does
// not leave stale rows behind.
func DeleteArchiveGames(db DBExecutor, archive int) (int64, error) {
	res, err := db.Exec(`DELETE FROM games WHERE archive = ?`, archive)
	if err != nil {
		return 0, fmt.Errorf("delete games of archive %d: %w", archive, err)
	}
	return res.RowsAffected()
}

// InsertGame stores g. The archive row must already exist.
func InsertGame(db DBExecutor, g Game) error {
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("game id must be non-empty")
	}
	headers, err := json.Marshal(g.Headers)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	_, err = db.Exec(`INSERT INTO games (id, archive, seq, white, black, date, event, site, matched_event, section,
	    time_class, time_control, white_clock, black_clock, ply_count, headers, pgn, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Archive, g.Seq, g.White, g.Black, g.Date, g.Event, g.Site, g.MatchedEvent, g.Section,
		g.TimeClass, g.TimeControl, g.WhiteClock, g.BlackClock, g.PlyCount, string(headers), g.PGN, g.CreatedAt)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("insert game %s (archive %d seq %d): %w", g.ID, g.Archive, g.Seq, ErrDuplicateGame)
		}
		return fmt.Errorf("insert game %s: %w", g.ID, err)
	}
	return nil
}

// GamesByArchive returns the stored games of archive in archive order.
func GamesByArchive(db DBExecutor, archive int) ([]Game, error) {
	rows, err := db.Query(`SELECT id, archive, seq, white, black, date, event, site, matched_event, section,
	    time_class, time_control, white_clock, black_clock, ply_count, headers, pgn, created_at
	FROM games WHERE archive = ? ORDER BY seq`, archive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Game
	for rows.Next() {
		var g Game
		var event, site, matched, section sql.NullString
		var tc, wc, bc sql.NullString
		var headers string
		if err := rows.Scan(&g.ID, &g.Archive, &g.Seq, &g.White, &g.Black, &g.Date, &event, &site, &matched, &section,
			&g.TimeClass, &tc, &wc, &bc, &g.PlyCount, &headers, &g.PGN, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.Event = event.String
		g.Site = site.String
		g.MatchedEvent = matched.String
		g.Section = section.String
		g.TimeControl = tc.String
		g.WhiteClock = wc.String
		g.BlackClock = bc.String
		if err := json.Unmarshal([]byte(headers), &g.Headers); err != nil {
			return nil, fmt.Errorf("decode headers of game %s: %w", g.ID, err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountGames returns the number of stored games, per time class.
func CountGames(db DBExecutor) (map[string]int, error) {
	rows, err := db.Query(`SELECT time_class, COUNT(*) FROM games GROUP BY time_class`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, err
		}
		out[class] = n
	}
	return out, rows.Err()
}
