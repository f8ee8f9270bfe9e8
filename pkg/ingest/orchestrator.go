// Package ingest drives archives through reading, alignment and time-control
// resolution and hands the results to a Sink.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/japaniel/twicsync/pkg/align"
	"github.com/japaniel/twicsync/pkg/db"
	"github.com/japaniel/twicsync/pkg/doctree"
	"github.com/japaniel/twicsync/pkg/pgn"
	"github.com/japaniel/twicsync/pkg/timecontrol"
	"github.com/japaniel/twicsync/pkg/twic"
)

// Fetcher retrieves the raw content of an archive.
type Fetcher interface {
	FetchIndex(ctx context.Context, archive int) ([]byte, error)
	FetchArchive(ctx context.Context, archive int) ([]byte, error)
}

// Orchestrator processes archives end to end. Archives share only the
// read-only time-control table and count overrides.
type Orchestrator struct {
	Fetcher   Fetcher
	Sink      Sink
	Table     *timecontrol.Table
	Overrides twic.CountOverrides
	Logger    *zap.Logger

	// Workers is the number of archives processed concurrently.
	Workers             int
	EmptyEventThreshold int
	// Force reprocesses archives the sink already has.
	Force bool
	// SalvagePartial keeps the games read before a malformed record
	// instead of failing the archive.
	SalvagePartial bool

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface

	newID func(date string) string
}

// NewOrchestrator creates an Orchestrator with default settings.
func NewOrchestrator(f Fetcher, sink Sink, table *timecontrol.Table, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Fetcher:             f,
		Sink:                sink,
		Table:               table,
		Overrides:           twic.DefaultOverrides(),
		Logger:              logger,
		Workers:             4,
		EmptyEventThreshold: twic.DefaultEmptyEventThreshold,
		newID:               newGameID,
	}
}

// Run processes archives concurrently and returns one report per archive in
// input order. A failed archive never stops the others; the returned error
// is only set when the batch itself could not be run.
func (o *Orchestrator) Run(ctx context.Context, archives []int) ([]*ArchiveReport, error) {
	workers := o.Workers
	if workers <= 0 {
		workers = 1
	}
	var wp WorkerPoolInterface
	if o.PoolFactory != nil {
		wp = o.PoolFactory(workers, workers*2)
	} else {
		pool := NewWorkerPool(workers, workers*2)
		pool.Logger = o.Logger
		wp = pool
	}

	reports := make([]*ArchiveReport, len(archives))
	wp.Start(ctx)

	var submitErr error
	for i, n := range archives {
		i, n := i, n
		job := func(ctx context.Context) error {
			reports[i] = o.runArchive(ctx, n)
			return reports[i].Err
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			submitErr = fmt.Errorf("submit archive %d: %w", n, err)
			break
		}
	}
	wp.Close()

	for i, r := range reports {
		if r == nil {
			reports[i] = &ArchiveReport{Archive: archives[i], Status: StatusSkipped, Err: context.Cause(ctx)}
		}
	}
	return reports, submitErr
}

// runArchive processes one archive and records its report with the sink.
func (o *Orchestrator) runArchive(ctx context.Context, archive int) *ArchiveReport {
	if !o.Force {
		done, err := o.Sink.Done(ctx, archive)
		if err != nil {
			o.Logger.Warn("could not check archive state", zap.Int("archive", archive), zap.Error(err))
		}
		if done {
			o.Logger.Info("archive already stored, skipping", zap.Int("archive", archive))
			return &ArchiveReport{Archive: archive, Status: StatusSkipped}
		}
	}

	report := o.ProcessArchive(ctx, archive)
	if err := o.Sink.Record(ctx, report); err != nil {
		o.Logger.Error("could not record archive report", zap.Int("archive", archive), zap.Error(err))
		if report.Err == nil {
			report.fail(err)
		}
	}

	if report.Err != nil {
		o.Logger.Error("archive failed", report.fields()...)
	} else {
		o.Logger.Info("archive processed", report.fields()...)
	}
	return report
}

// ProcessArchive fetches archive and processes it.
func (o *Orchestrator) ProcessArchive(ctx context.Context, archive int) *ArchiveReport {
	report := &ArchiveReport{Archive: archive}

	var index, zip []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		index, err = o.Fetcher.FetchIndex(gctx, archive)
		return err
	})
	g.Go(func() error {
		var err error
		zip, err = o.Fetcher.FetchArchive(gctx, archive)
		return err
	})
	if err := g.Wait(); err != nil {
		return report.fail(fmt.Errorf("fetch archive %d: %w", archive, err))
	}

	meta, title, err := o.Metadata(archive, index)
	report.Title = title
	if meta != nil {
		report.EmptyEvents = meta.EmptyEvents
	}
	if err != nil {
		return report.fail(err)
	}

	games, err := pgn.OpenArchive(zip, archive)
	if err != nil {
		return report.fail(err)
	}
	defer games.Close()

	return o.Process(ctx, report, meta, games)
}

// Metadata parses and validates an index page. The returned Metadata may be
// non-nil alongside an error so callers can report its empty events.
func (o *Orchestrator) Metadata(archive int, index []byte) (*twic.Metadata, string, error) {
	title, err := doctree.Title(bytes.NewReader(index), "")
	if err != nil {
		o.Logger.Debug("no title on index page", zap.Int("archive", archive), zap.Error(err))
	}

	root, err := doctree.Parse(bytes.NewReader(index))
	if err != nil {
		return nil, title, fmt.Errorf("archive %d: %w", archive, err)
	}
	meta, err := twic.NewExtractor(o.Overrides, o.Logger).Extract(root, archive)
	if err != nil {
		return meta, title, err
	}
	if err := twic.Validate(meta, o.EmptyEventThreshold); err != nil {
		return meta, title, err
	}
	return meta, title, nil
}

// Process reads, aligns and resolves the games of one archive and writes
// them to the sink, filling in report.
func (o *Orchestrator) Process(ctx context.Context, report *ArchiveReport, meta *twic.Metadata, games io.Reader) *ArchiveReport {
	archive := report.Archive
	if meta == nil {
		return report.fail(fmt.Errorf("archive %d: no metadata", archive))
	}
	log := o.Logger.With(zap.Int("archive", archive))
	report.EmptyEvents = meta.EmptyEvents
	report.Expected = meta.TotalGames()

	records, warnings, readErr := pgn.ReadAll(games, archive, pgn.WithLogger(o.Logger))
	report.Games = len(records)
	report.DecodeWarnings = warnings
	if readErr == nil && report.Games != report.Expected {
		log.Warn("archive game count differs from index",
			zap.Int("expected", report.Expected), zap.Int("games", report.Games))
	}
	if readErr != nil {
		if !o.SalvagePartial {
			return report.fail(fmt.Errorf("read archive %d: %w", archive, readErr))
		}
		log.Warn("keeping games read before the archive broke",
			zap.Int("games", len(records)), zap.Error(readErr))
	}

	res := align.NewEngine(o.Logger).Align(archive, records, meta.Events)
	report.Matched = res.Matched
	report.Fallback = res.Fallback
	report.Unmatched = res.Dropped
	report.Reviews = res.Reviews
	report.PerEvent = res.PerEvent(meta.Events)

	w, err := o.Sink.Begin(ctx, archive, report.Title)
	if err != nil {
		return report.fail(fmt.Errorf("begin archive %d: %w", archive, err))
	}

	newID := o.newID
	if newID == nil {
		newID = newGameID
	}
	resolver := timecontrol.NewResolver(o.Table, o.Logger)
	var writeErr error
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			writeErr = err
			break
		}

		a := res.Assignments[i]
		var ev *twic.EventDescriptor
		if a.EventIndex >= 0 {
			ev = &meta.Events[a.EventIndex]
		}

		entry, err := resolver.Resolve(archive, rec, ev)
		if err != nil {
			report.ResolutionFailures++
			log.Error("time control resolution failed",
				zap.Int("game", i), zap.String("site", rec.Site), zap.String("event", rec.Event), zap.Error(err))
			continue
		}

		game, err := resolveGame(archive, i, rec, entry, newID)
		if err != nil {
			report.ParseFailures++
			log.Error("failed game", zap.Int("game", i), zap.String("pgn", rec.Text), zap.Error(err))
			continue
		}
		game.Path = a.Path
		if ev != nil {
			game.Event = ev.EventName
			if a.SectionIndex >= 0 {
				game.Section = ev.Sections[a.SectionIndex].EventName
			}
		}

		if err := w.Write(ctx, game); err != nil {
			writeErr = err
			break
		}
	}

	stored, closeErr := w.Close()
	report.Stored = stored
	switch {
	case writeErr != nil:
		return report.fail(fmt.Errorf("store archive %d: %w", archive, writeErr))
	case closeErr != nil:
		return report.fail(fmt.Errorf("store archive %d: %w", archive, closeErr))
	case readErr != nil:
		report.Status = db.StatusPartial
		report.Err = readErr
	default:
		report.Status = db.StatusDone
	}
	return report
}
