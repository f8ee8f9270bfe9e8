package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/twicsync/pkg/db"
)

// Sink receives resolved games and archive reports. Implementations must be
// safe for concurrent use by different archives.
type Sink interface {
	// Done reports whether archive was already stored completely.
	Done(ctx context.Context, archive int) (bool, error)
	// Begin discards any games previously stored for archive and returns a
	// writer for its new games.
	Begin(ctx context.Context, archive int, title string) (ArchiveWriter, error)
	// Record stores the final report of an archive run.
	Record(ctx context.Context, report *ArchiveReport) error
}

// ArchiveWriter stores the games of one archive, in order.
type ArchiveWriter interface {
	Write(ctx context.Context, g ResolvedGame) error
	// Close flushes pending games and returns how many were stored.
	Close() (int, error)
}

// StoreSink writes to the SQLite store through a BatchWriter per archive.
type StoreSink struct {
	DB            *sql.DB
	BatchSize     int
	FlushInterval time.Duration
	Logger        *zap.Logger
}

func NewStoreSink(conn *sql.DB, batchSize int, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{DB: conn, BatchSize: batchSize, FlushInterval: 100 * time.Millisecond, Logger: logger}
}

func (s *StoreSink) Done(ctx context.Context, archive int) (bool, error) {
	return db.ArchiveDone(s.DB, archive)
}

func (s *StoreSink) Begin(ctx context.Context, archive int, title string) (ArchiveWriter, error) {
	if err := db.UpsertArchive(s.DB, db.Archive{Number: archive, Title: title, Status: db.StatusRunning}); err != nil {
		return nil, err
	}
	removed, err := db.DeleteArchiveGames(s.DB, archive)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		s.Logger.Info("replacing stored games", zap.Int("archive", archive), zap.Int64("removed", removed))
	}

	bw := NewBatchWriter(s.DB, s.BatchSize, s.FlushInterval)
	bw.Logger = s.Logger.With(zap.Int("archive", archive))
	return &storeWriter{bw: bw}, nil
}

func (s *StoreSink) Record(ctx context.Context, report *ArchiveReport) error {
	return db.UpsertArchive(s.DB, report.record())
}

type storeWriter struct {
	bw *BatchWriter
}

func (w *storeWriter) Write(ctx context.Context, g ResolvedGame) error {
	return w.bw.Add(ctx, dbGame(g))
}

func (w *storeWriter) Close() (int, error) {
	err := w.bw.Close()
	n := int(w.bw.Committed())
	if err != nil {
		return n, fmt.Errorf("flush games: %w", err)
	}
	return n, nil
}

// MemorySink keeps everything in memory. It backs dry runs and tests.
type MemorySink struct {
	mu      sync.Mutex
	games   map[int][]ResolvedGame
	reports map[int]*ArchiveReport
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		games:   make(map[int][]ResolvedGame),
		reports: make(map[int]*ArchiveReport),
	}
}

func (m *MemorySink) Done(ctx context.Context, archive int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[archive]
	return ok && r.Status == db.StatusDone, nil
}

func (m *MemorySink) Begin(ctx context.Context, archive int, title string) (ArchiveWriter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, archive)
	return &memoryWriter{sink: m, archive: archive}, nil
}

func (m *MemorySink) Record(ctx context.Context, report *ArchiveReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.Archive] = report
	return nil
}

// Games returns the games stored for archive.
func (m *MemorySink) Games(archive int) []ResolvedGame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ResolvedGame(nil), m.games[archive]...)
}

// Report returns the recorded report of archive, or nil.
func (m *MemorySink) Report(archive int) *ArchiveReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports[archive]
}

type memoryWriter struct {
	sink    *MemorySink
	archive int
	n       int
}

func (w *memoryWriter) Write(ctx context.Context, g ResolvedGame) error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.games[w.archive] = append(w.sink.games[w.archive], g)
	w.n++
	return nil
}

func (w *memoryWriter) Close() (int, error) { return w.n, nil }
