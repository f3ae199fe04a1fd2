package duel

import (
	"fmt"

	"github.com/dmkv/sweepduel/internal/board"
	"github.com/dmkv/sweepduel/internal/bot"
	"github.com/dmkv/sweepduel/internal/strategy"
)

// Seat adapts one side of a game to the engine's Host interface.
type Seat struct {
	game *Game
	idx  int
}

func (g *Game) Seat(idx int) *Seat {
	return &Seat{game: g, idx: idx}
}

func (s *Seat) Index() int { return s.idx }

var _ bot.Host = (*Seat)(nil)

func (s *Seat) Snapshot() (*board.Snapshot, error) {
	return s.game.SnapshotFor(s.idx)
}

func (s *Seat) Competitive() strategy.Competitive {
	return s.game.Competitive(s.idx)
}

func (s *Seat) Apply(a bot.Action) (bot.Outcome, error) {
	switch a.Kind {
	case bot.ActionReveal:
		opened, hitMine, err := s.game.Reveal(s.idx, a.Pos)
		return bot.Outcome{Revealed: opened, HitMine: hitMine}, err
	case bot.ActionFlag:
		return bot.Outcome{}, s.game.Flag(s.idx, a.Pos, true)
	case bot.ActionUnflag:
		return bot.Outcome{}, s.game.Flag(s.idx, a.Pos, false)
	case bot.ActionUseAbility:
		disclosed, err := s.game.UseAbility(s.idx, a.Ability)
		if err != nil {
			return bot.Outcome{}, err
		}
		out := bot.Outcome{}
		for _, d := range disclosed {
			out.Disclosed = append(out.Disclosed, bot.DisclosedCell{Pos: d.Pos, Mine: d.Mine})
		}
		return out, nil
	default:
		return bot.Outcome{}, fmt.Errorf("%w: action kind %d", ErrNotAllowed, a.Kind)
	}
}

// Status is the wire-friendly view of a match, sent to spectators and
// players. Grid uses the board notation: "." hidden, "*" flagged, digits
// open.
type Status struct {
	Grid      string `json:"grid"`
	Scores    [2]int `json:"scores"`
	Remaining int64  `json:"remaining_ms"`
	Over      bool   `json:"over"`
	Winner    int    `json:"winner"`
}

func (g *Game) Status() Status {
	snap, err := g.SnapshotFor(0)
	grid := ""
	if err == nil {
		grid = snap.String()
	}
	state := g.Competitive(0)
	return Status{
		Grid:      grid,
		Scores:    [2]int{state.MyScore, state.OpponentScore},
		Remaining: state.TimeRemaining.Milliseconds(),
		Over:      g.Over(),
		Winner:    g.Winner(),
	}
}
