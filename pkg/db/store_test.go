package db

import (
	"database/sql"
	"errors"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func sampleGame(id string, seq int) Game {
	return Game{
		ID:           id,
		Archive:      1500,
		Seq:          seq,
		White:        "carlsen,m",
		Black:        "nakamura,hi",
		Date:         "2023.06.01",
		Event:        "Norway Chess 2023",
		Site:         "Stavanger NOR",
		MatchedEvent: "Norway Chess 2023",
		Section:      "Norway Chess 2023",
		TimeClass:    "Standard",
		TimeControl:  "40/7200:600",
		PlyCount:     2,
		Headers: []Header{
			{Name: "Event", Value: "Norway Chess 2023"},
			{Name: "TimeClass", Value: "Standard"},
		},
		PGN: "[Event \"Norway Chess 2023\"]\n\n1. e4 e5 1-0\n",
	}
}

func TestUpsertAndGetArchive(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := UpsertArchive(db, Archive{Number: 1500, Title: "TWIC 1500", Status: StatusRunning}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	done, err := ArchiveDone(db, 1500)
	if err != nil || done {
		t.Fatalf("expected running archive, got done=%v err=%v", done, err)
	}

	a := Archive{Number: 1500, Status: StatusDone, Games: 10, Matched: 8, Fallback: 1, Unmatched: 1, EmptyEvents: []string{"A", "B"}}
	if err := UpsertArchive(db, a); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := GetArchive(db, 1500)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "TWIC 1500" {
		t.Fatalf("title should survive an update without one, got %q", got.Title)
	}
	if got.Games != 10 || got.Matched != 8 || got.Fallback != 1 || got.Unmatched != 1 {
		t.Fatalf("unexpected counters: %+v", got)
	}
	if !reflect.DeepEqual(got.EmptyEvents, []string{"A", "B"}) {
		t.Fatalf("empty events: %v", got.EmptyEvents)
	}
	done, err = ArchiveDone(db, 1500)
	if err != nil || !done {
		t.Fatalf("expected done archive, got done=%v err=%v", done, err)
	}
}

func TestArchiveDoneMissing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	done, err := ArchiveDone(db, 42)
	if err != nil || done {
		t.Fatalf("expected not done, got %v %v", done, err)
	}
	if _, err := GetArchive(db, 42); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestUpsertArchiveValidation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	if err := UpsertArchive(db, Archive{Number: 0, Status: StatusDone}); err == nil {
		t.Fatal("expected error for archive 0")
	}
	if err := UpsertArchive(db, Archive{Number: 1}); err == nil {
		t.Fatal("expected error for empty status")
	}
}

func TestInsertAndQueryGames(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	if err := UpsertArchive(db, Archive{Number: 1500, Status: StatusRunning}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	for i, id := range []string{"2023.06.01_b", "2023.06.01_a"} {
		if err := InsertGame(db, sampleGame(id, i)); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	err := InsertGame(db, sampleGame("2023.06.01_c", 0))
	if !errors.Is(err, ErrDuplicateGame) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	games, err := GamesByArchive(db, 1500)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(games))
	}
	if games[0].ID != "2023.06.01_b" || games[1].Seq != 1 {
		t.Fatalf("games not in archive order: %+v", games)
	}
	if !reflect.DeepEqual(games[0].Headers, sampleGame("", 0).Headers) {
		t.Fatalf("headers did not round trip: %v", games[0].Headers)
	}
	if games[0].CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}

	counts, err := CountGames(db)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["Standard"] != 2 {
		t.Fatalf("expected 2 standard games, got %v", counts)
	}

	n, err := DeleteArchiveGames(db, 1500)
	if err != nil || n != 2 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
}

func TestInsertGameRequiresID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	if err := InsertGame(db, sampleGame(" ", 0)); err == nil {
		t.Fatal("expected error for blank id")
	}
}
