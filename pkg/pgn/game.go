package pgn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// ErrUnparseable is returned when a record's moves cannot be replayed.
var ErrUnparseable = errors.New("pgn: unparseable game")

// Game is a record whose headers and moves have been fully decoded.
type Game struct {
	load func(*chess.Game)
	game *chess.Game
}

// ParseGame decodes the record text. Illegal or unreadable moves yield
// ErrUnparseable, a record without headers ErrNoTags.
func ParseGame(text string) (*Game, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	load, err := chess.PGN(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	g := chess.NewGame(load)
	if len(g.TagPairs()) == 0 {
		return nil, ErrNoTags
	}
	return &Game{load: load, game: g}, nil
}

// Tags returns the header tag pairs in record order.
func (g *Game) Tags() []Tag {
	pairs := g.game.TagPairs()
	tags := make([]Tag, 0, len(pairs))
	for _, p := range pairs {
		tags = append(tags, Tag{Name: p.Key, Value: p.Value})
	}
	return tags
}

// PlyCount is the number of half-moves in the main line.
func (g *Game) PlyCount() int { return len(g.game.Moves()) }

// Render writes the game in PGN with tags as its headers.
func (g *Game) Render(tags []Tag) string {
	pairs := make([]*chess.TagPair, 0, len(tags))
	for _, t := range tags {
		pairs = append(pairs, &chess.TagPair{Key: t.Name, Value: t.Value})
	}
	return chess.NewGame(g.load, chess.TagPairs(pairs)).String()
}
