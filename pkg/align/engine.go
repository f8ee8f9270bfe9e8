package align

import (
	"github.com/japaniel/twicsync/pkg/pgn"
	"github.com/japaniel/twicsync/pkg/twic"
	"go.uber.org/zap"
)

// Engine aligns the games of one archive with its events.
type Engine struct {
	Logger *zap.Logger
}

// NewEngine returns an Engine logging to logger, or discarding logs when nil.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Logger: logger}
}

// Result is the outcome of one alignment pass. Assignments is parallel to
// the input games.
type Result struct {
	Assignments []Assignment
	Matched     int
	Fallback    int
	Dropped     int
	Reviews     int
	Final       Cursor
}

// Align assigns every game in order. Games left over once the events are
// exhausted are reported as dropped, not failed.
func (e *Engine) Align(archive int, games []pgn.GameRecord, events []twic.EventDescriptor) Result {
	res := Result{Assignments: make([]Assignment, 0, len(games))}

	var c Cursor
	for i, g := range games {
		pos := c.EventIndex
		a, next, notes := Step(c, g, events)
		for _, n := range notes {
			e.log(archive, i, pos, g, n)
		}

		switch {
		case a.Path == Exhausted:
			res.Dropped++
		case a.Path == Fallback:
			res.Fallback++
		default:
			res.Matched++
		}
		for _, n := range notes {
			if n.Level == Review {
				res.Reviews++
			}
		}
		res.Assignments = append(res.Assignments, a)
		c = next
	}
	res.Final = c

	if res.Dropped > 0 {
		e.Logger.Warn("games left after all events were consumed",
			zap.Int("archive", archive),
			zap.Int("dropped", res.Dropped),
			zap.Int("events", len(events)))
	}
	return res
}

func (e *Engine) log(archive, game, cursor int, g pgn.GameRecord, n Note) {
	fields := []zap.Field{
		zap.Int("archive", archive),
		zap.Int("game", game),
		zap.String("site", g.Site),
		zap.String("game_event", g.Event),
		zap.Int("cursor", cursor),
		zap.Int("event_index", n.EventIndex),
		zap.String("event", n.Event),
	}
	switch n.Level {
	case Warn:
		e.Logger.Warn(n.Message, fields...)
	case Review:
		e.Logger.Info("alignment needs review: "+n.Message, append(fields, zap.Bool("review", true))...)
	default:
		e.Logger.Info(n.Message, fields...)
	}
}

// PerEvent counts assigned games per event name. Unmatched games are not
// counted.
func (r Result) PerEvent(events []twic.EventDescriptor) map[string]int {
	out := make(map[string]int)
	for _, a := range r.Assignments {
		if a.EventIndex >= 0 && a.EventIndex < len(events) {
			out[events[a.EventIndex].EventName]++
		}
	}
	return out
}
