package ingest

import (
	"go.uber.org/zap"

	"github.com/japaniel/twicsync/pkg/db"
)

// StatusSkipped marks an archive that was already stored or never ran.
const StatusSkipped = "skipped"

// ArchiveReport summarizes one archive run.
type ArchiveReport struct {
	Archive int
	Title   string
	Status  string
	// Expected is the game total announced by the index, Games the number
	// of records read from the archive, Stored the number handed to the sink.
	Expected           int
	Games              int
	Stored             int
	Matched            int
	Fallback           int
	Unmatched          int
	DecodeWarnings     int
	ParseFailures      int
	ResolutionFailures int
	Reviews            int
	EmptyEvents        []string
	PerEvent           map[string]int
	Err                error
}

func (r *ArchiveReport) fail(err error) *ArchiveReport {
	r.Status = db.StatusFailed
	r.Err = err
	return r
}

// record converts the report to its stored form.
func (r *ArchiveReport) record() db.Archive {
	a := db.Archive{
		Number:             r.Archive,
		Title:              r.Title,
		Status:             r.Status,
		Games:              r.Stored,
		Matched:            r.Matched,
		Fallback:           r.Fallback,
		Unmatched:          r.Unmatched,
		DecodeWarnings:     r.DecodeWarnings,
		ParseFailures:      r.ParseFailures,
		ResolutionFailures: r.ResolutionFailures,
		Reviews:            r.Reviews,
		EmptyEvents:        r.EmptyEvents,
	}
	if r.Err != nil {
		a.Error = r.Err.Error()
	}
	return a
}

func (r *ArchiveReport) fields() []zap.Field {
	fields := []zap.Field{
		zap.Int("archive", r.Archive),
		zap.String("status", r.Status),
		zap.Int("expected", r.Expected),
		zap.Int("games", r.Games),
		zap.Int("stored", r.Stored),
		zap.Int("matched", r.Matched),
		zap.Int("fallback", r.Fallback),
		zap.Int("unmatched", r.Unmatched),
		zap.Int("decode_warnings", r.DecodeWarnings),
		zap.Int("parse_failures", r.ParseFailures),
		zap.Int("resolution_failures", r.ResolutionFailures),
		zap.Int("reviews", r.Reviews),
	}
	if len(r.EmptyEvents) > 0 {
		fields = append(fields, zap.Strings("empty_events", r.EmptyEvents))
	}
	if len(r.PerEvent) > 0 {
		fields = append(fields, zap.Any("per_event", r.PerEvent))
	}
	if r.Err != nil {
		fields = append(fields, zap.Error(r.Err))
	}
	return fields
}
