package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func tableColumns(t *testing.T, conn *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := conn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("pragmas: %v", err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk); err != nil {
			t.Fatalf("scan col: %v", err)
		}
		cols[colName] = true
	}
	return cols
}

// TestInitDBCreatesSchema verifies a fresh database gets both tables and
// that migrating twice is harmless.
func TestInitDBCreatesSchema(t *testing.T) {
	dbConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(1)

	for i := 0; i < 2; i++ {
		if err := InitDB(dbConn); err != nil {
			t.Fatalf("InitDB run %d failed: %v", i+1, err)
		}
	}

	archives := tableColumns(t, dbConn, "archives")
	for _, c := range []string{"number", "status", "matched", "fallback", "empty_events"} {
		if !archives[c] {
			t.Fatalf("archives missing column %s, got %v", c, archives)
		}
	}
	games := tableColumns(t, dbConn, "games")
	for _, c := range []string{"id", "archive", "seq", "time_class", "headers", "pgn"} {
		if !games[c] {
			t.Fatalf("games missing column %s, got %v", c, games)
		}
	}
}
