package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/japaniel/twicsync/pkg/pgn"
	"github.com/japaniel/twicsync/pkg/timecontrol"
)

const fixtureArchive = 1600

func readFixture(t testing.TB, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func loadTable(t testing.TB) *timecontrol.Table {
	t.Helper()
	table, err := timecontrol.LoadFile(filepath.Join("testdata", "time_controls.csv"))
	if err != nil {
		t.Fatalf("load time controls: %v", err)
	}
	return table
}

func zipArchive(t testing.TB, archive int, games []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(pgn.EntryName(archive))
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write(games); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// fakeFetcher serves every archive it knows from memory.
type fakeFetcher struct {
	mu      sync.Mutex
	index   map[int][]byte
	zips    map[int][]byte
	fetched map[int]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		index:   make(map[int][]byte),
		zips:    make(map[int][]byte),
		fetched: make(map[int]int),
	}
}

func (f *fakeFetcher) add(archive int, index, zip []byte) {
	f.index[archive] = index
	f.zips[archive] = zip
}

func (f *fakeFetcher) FetchIndex(ctx context.Context, archive int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched[archive]++
	data, ok := f.index[archive]
	if !ok {
		return nil, fmt.Errorf("index %d: not found", archive)
	}
	return data, nil
}

func (f *fakeFetcher) FetchArchive(ctx context.Context, archive int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.zips[archive]
	if !ok {
		return nil, fmt.Errorf("archive %d: not found", archive)
	}
	return data, nil
}

func (f *fakeFetcher) count(archive int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched[archive]
}

func fixtureFetcher(t testing.TB) *fakeFetcher {
	f := newFakeFetcher()
	f.add(fixtureArchive, readFixture(t, "twic1600.html"), zipArchive(t, fixtureArchive, readFixture(t, "twic1600.pgn")))
	return f
}

func sequentialIDs() func(string) string {
	var n int
	return func(date string) string {
		n++
		return fmt.Sprintf("%s_%03d", date, n)
	}
}
