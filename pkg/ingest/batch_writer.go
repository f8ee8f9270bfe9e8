package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/twicsync/pkg/db"
)

var (
	ErrBatchWriterClosed = errors.New("batch writer closed")
	// ErrBatchDropped marks games discarded before reaching the database.
	ErrBatchDropped = errors.New("batch dropped")
)

// BatchWriter stores game rows in transactions of up to size rows, in the
// order they were added. A batch whose insert fails is rolled back as a
// whole; later batches are still attempted.
type BatchWriter struct {
	conn *sql.DB
	size int
	// insert stores one row inside a batch transaction.
	insert func(db.DBExecutor, db.Game) error

	// OnError receives every rolled back or dropped batch. When nil the
	// error is logged.
	OnError func(error)
	Logger  *zap.Logger

	mu      sync.Mutex
	pending []db.Game
	closed  bool

	batches chan []db.Game
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup

	committed atomic.Int64

	errMu    sync.Mutex
	firstErr error
}

// NewBatchWriter starts a writer on conn. A non-zero interval also flushes
// partial batches on that period.
func NewBatchWriter(conn *sql.DB, size int, interval time.Duration) *BatchWriter {
	if size <= 0 {
		size = 10
	}
	bw := &BatchWriter{
		conn:    conn,
		size:    size,
		insert:  db.InsertGame,
		Logger:  zap.NewNop(),
		pending: make([]db.Game, 0, size),
		batches: make(chan []db.Game, 2),
		stop:    make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.commitLoop()

	if interval > 0 {
		bw.ticker = time.NewTicker(interval)
		bw.wg.Add(1)
		go bw.tickLoop()
	}
	return bw
}

// Add queues g. If ctx is already done, g and the rows queued with it are
// dropped and the context error is returned.
func (bw *BatchWriter) Add(ctx context.Context, g db.Game) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.pending = append(bw.pending, g)
	if err := ctx.Err(); err != nil {
		bw.dropLocked(err)
		return err
	}
	if len(bw.pending) >= bw.size {
		bw.flushLocked()
	}
	return nil
}

// Committed returns the number of rows whose batch committed.
func (bw *BatchWriter) Committed() int64 {
	return bw.committed.Load()
}

// Close flushes queued rows, waits for them to commit and returns the first
// batch error seen.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.ticker != nil {
		bw.ticker.Stop()
	}
	bw.flushLocked()
	bw.mu.Unlock()

	close(bw.stop)
	close(bw.batches)
	bw.wg.Wait()

	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}

// flushLocked hands the pending rows to the committer. Blocks while two
// batches are already waiting. bw.mu must be held.
func (bw *BatchWriter) flushLocked() {
	if len(bw.pending) == 0 {
		return
	}
	batch := bw.pending
	bw.pending = make([]db.Game, 0, bw.size)
	bw.batches <- batch
}

func (bw *BatchWriter) dropLocked(cause error) {
	n := len(bw.pending)
	bw.pending = make([]db.Game, 0, bw.size)
	bw.report(fmt.Errorf("%w: %d games: %v", ErrBatchDropped, n, cause))
}

func (bw *BatchWriter) commitLoop() {
	defer bw.wg.Done()
	for batch := range bw.batches {
		if err := bw.commit(batch); err != nil {
			bw.report(err)
			continue
		}
		bw.committed.Add(int64(len(batch)))
	}
}

func (bw *BatchWriter) tickLoop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.stop:
			return
		case <-bw.ticker.C:
			bw.mu.Lock()
			if !bw.closed {
				bw.flushLocked()
			}
			bw.mu.Unlock()
		}
	}
}

// commit runs on a background context so rows queued before Close still
// land when the caller's context is gone.
func (bw *BatchWriter) commit(batch []db.Game) error {
	tx, err := bw.conn.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, g := range batch {
		if err := bw.insert(tx, g); err != nil {
			return fmt.Errorf("batch of %d rolled back: %w", len(batch), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(batch), err)
	}
	return nil
}

// report keeps the first error for Close and hands err to OnError.
func (bw *BatchWriter) report(err error) {
	bw.errMu.Lock()
	if bw.firstErr == nil {
		bw.firstErr = err
	}
	bw.errMu.Unlock()
	if bw.OnError != nil {
		bw.OnError(err)
		return
	}
	bw.Logger.Error("batch write failed", zap.Error(err))
}
