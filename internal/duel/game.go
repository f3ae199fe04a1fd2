// Package duel is the host side of a SweepDuel match: one shared solvable
// board, two competing players racing to open safe cells, a match clock
// and the three spendable powers. The decision engine only ever sees this
// package through the bot.Host interface, so every bit of information it
// hands out is something a human player could see too.
package duel

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmkv/sweepduel/internal/board"
	"github.com/dmkv/sweepduel/internal/strategy"
)

var Log = logrus.New()

var (
	ErrOutOfBounds = errors.New("cell out of bounds")
	ErrFrozen      = errors.New("player is frozen")
	ErrGameOver    = errors.New("game is over")
	ErrNotAllowed  = errors.New("move not allowed")
)

const (
	minePenalty    = 5
	freezeDuration = 5 * time.Second
	radarRadius    = 1
)

type Params struct {
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	MineCount int           `json:"mine_count"`
	Duration  time.Duration `json:"duration"`

	Abilities map[strategy.Ability]strategy.AbilityConfig `json:"abilities,omitempty"`
}

func (p Params) Validate() error {
	if p.Width < 4 || p.Height < 4 {
		return fmt.Errorf("board %dx%d too small", p.Width, p.Height)
	}
	// The start area around the center must stay clear of mines.
	if p.MineCount < 1 || p.MineCount > p.Width*p.Height-9 {
		return fmt.Errorf("cannot place %d mines on a %dx%d board", p.MineCount, p.Width, p.Height)
	}
	if p.Duration <= 0 {
		return errors.New("match duration must be positive")
	}
	return nil
}

type cell struct {
	mine     bool
	revealed bool
	flagged  bool
	number   int
}

// Game is the live match. All methods are safe for concurrent use; the
// two players act through Seat adapters.
type Game struct {
	mu     sync.Mutex
	params Params
	cells  []cell

	scores      [2]int
	shields     [2]int
	frozenUntil [2]time.Time

	startedAt time.Time
	safeLeft  int
	finished  bool
}

// NewGame builds a match with the mines placed away from the 3x3 start
// area around the board center, which is opened before either player
// moves so both start from the same information.
func NewGame(params Params, r *rand.Rand) (*Game, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Abilities == nil {
		params.Abilities = strategy.DefaultConfig().Abilities
	}

	var (
		w, h   = params.Width, params.Height
		startX = w / 2
		startY = h / 2
		cells  = make([]cell, w*h)
	)

	// Candidate mine spots exclude the start area, then MineCount of them
	// are drawn with swap-removal.
	candidates := make([]int, 0, w*h)
	for y := range h {
		for x := range w {
			if absDiff(startY, y) > 1 || absDiff(startX, x) > 1 {
				candidates = append(candidates, y*w+x)
			}
		}
	}
	k := len(candidates)
	for range params.MineCount {
		i := r.IntN(k)
		cells[candidates[i]].mine = true
		k--
		candidates[i] = candidates[k]
	}

	for y := range h {
		for x := range w {
			if cells[y*w+x].mine {
				continue
			}
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx, yy := x+dx, y+dy
					if xx >= 0 && xx < w && yy >= 0 && yy < h && cells[yy*w+xx].mine {
						n++
					}
				}
			}
			cells[y*w+x].number = n
		}
	}

	g := &Game{
		params:    params,
		cells:     cells,
		startedAt: time.Now(),
		safeLeft:  w*h - params.MineCount,
	}
	g.flood(board.Position{X: startX, Y: startY})
	return g, nil
}

func (g *Game) Params() Params { return g.params }

func (g *Game) index(p board.Position) (int, error) {
	if p.X < 0 || p.X >= g.params.Width || p.Y < 0 || p.Y >= g.params.Height {
		return 0, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	return p.Y*g.params.Width + p.X, nil
}

// flood opens p and cascades through zero-numbered areas, the same
// repeated-scan approach the board is small enough to afford. Returns the
// number of newly opened cells.
func (g *Game) flood(p board.Position) int {
	i, err := g.index(p)
	if err != nil || g.cells[i].revealed || g.cells[i].mine {
		return 0
	}
	opened := 0
	todo := []int{i}
	for len(todo) > 0 {
		i := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		c := &g.cells[i]
		if c.revealed || c.mine {
			continue
		}
		c.revealed = true
		c.flagged = false
		opened++
		g.safeLeft--
		if c.number != 0 {
			continue
		}
		x, y := i%g.params.Width, i/g.params.Width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				xx, yy := x+dx, y+dy
				if xx >= 0 && xx < g.params.Width && yy >= 0 && yy < g.params.Height {
					todo = append(todo, yy*g.params.Width+xx)
				}
			}
		}
	}
	return opened
}

func (g *Game) checkTurn(seat int, now time.Time) error {
	if g.overLocked(now) {
		return ErrGameOver
	}
	if now.Before(g.frozenUntil[seat]) {
		return ErrFrozen
	}
	return nil
}

// Reveal opens a cell for seat. Opening a mine auto-flags it and costs
// points unless a shield absorbs the hit; opening safe cells scores one
// point per newly opened cell.
func (g *Game) Reveal(seat int, p board.Position) (opened int, hitMine bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if err := g.checkTurn(seat, now); err != nil {
		return 0, false, err
	}
	i, err := g.index(p)
	if err != nil {
		return 0, false, err
	}
	c := &g.cells[i]
	if c.revealed || c.flagged {
		return 0, false, fmt.Errorf("%w: %s is not hidden", ErrNotAllowed, p)
	}
	if c.mine {
		// The mine is spent either way: it becomes a visible flag.
		c.flagged = true
		if g.shields[seat] > 0 {
			g.shields[seat]--
			Log.WithFields(logrus.Fields{"seat": seat, "cell": p}).Debug("shield absorbed a mine")
		} else {
			g.scores[seat] -= minePenalty
		}
		return 0, true, nil
	}
	opened = g.flood(p)
	g.scores[seat] += opened
	return opened, false, nil
}

func (g *Game) Flag(seat int, p board.Position, flagged bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if err := g.checkTurn(seat, now); err != nil {
		return err
	}
	i, err := g.index(p)
	if err != nil {
		return err
	}
	c := &g.cells[i]
	if c.revealed {
		return fmt.Errorf("%w: %s is already open", ErrNotAllowed, p)
	}
	c.flagged = flagged
	return nil
}

// UseAbility charges the cost and applies the effect. Radar disclosures
// are returned so the caller can feed them to whoever spent the power.
func (g *Game) UseAbility(seat int, ab strategy.Ability) (disclosed []Disclosure, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if err := g.checkTurn(seat, now); err != nil {
		return nil, err
	}
	cfg, ok := g.params.Abilities[ab]
	if !ok {
		return nil, fmt.Errorf("%w: unknown ability %q", ErrNotAllowed, ab)
	}
	if g.scores[seat] < cfg.Cost {
		return nil, fmt.Errorf("%w: %d points cannot pay for %s", ErrNotAllowed, g.scores[seat], ab)
	}
	g.scores[seat] -= cfg.Cost

	switch ab {
	case strategy.AbilityRadar:
		disclosed = g.radar()
	case strategy.AbilityFreeze:
		g.frozenUntil[1-seat] = now.Add(freezeDuration)
	case strategy.AbilityShield:
		g.shields[seat]++
	default:
		return nil, fmt.Errorf("%w: unknown ability %q", ErrNotAllowed, ab)
	}
	return disclosed, nil
}

// Disclosure is a radar result: the true status of one hidden cell.
type Disclosure struct {
	Pos  board.Position
	Mine bool
}

// radar picks the first hidden frontier cell in row-major order and
// reports the 3x3 area around it.
func (g *Game) radar() []Disclosure {
	target, found := g.radarTarget()
	if !found {
		return nil
	}
	var out []Disclosure
	for dy := -radarRadius; dy <= radarRadius; dy++ {
		for dx := -radarRadius; dx <= radarRadius; dx++ {
			p := board.Position{X: target.X + dx, Y: target.Y + dy}
			i, err := g.index(p)
			if err != nil {
				continue
			}
			if c := g.cells[i]; !c.revealed && !c.flagged {
				out = append(out, Disclosure{Pos: p, Mine: c.mine})
			}
		}
	}
	return out
}

func (g *Game) radarTarget() (board.Position, bool) {
	w := g.params.Width
	for i, c := range g.cells {
		if c.revealed || c.flagged {
			continue
		}
		p := board.Position{X: i % w, Y: i / w}
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				j, err := g.index(board.Position{X: p.X + dx, Y: p.Y + dy})
				if err == nil && g.cells[j].revealed {
					return p, true
				}
			}
		}
	}
	return board.Position{}, false
}

// SnapshotFor builds the visible-state snapshot for a seat. Both seats
// currently share the same view; the seat argument keeps the door open for
// per-player fog. The snapshot carries no mine information: mines enter it
// only as flags once hit or flagged.
func (g *Game) SnapshotFor(seat int) (*board.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_ = seat
	cells := make([]board.Cell, len(g.cells))
	for i, c := range g.cells {
		if c.revealed {
			cells[i] = board.Cell{Revealed: true, Number: c.number}
		} else if c.flagged {
			cells[i] = board.Cell{Flagged: true}
		}
	}
	return board.NewSnapshot(g.params.Width, g.params.Height, g.params.MineCount, cells)
}

// Competitive reports the match state from a seat's point of view.
func (g *Game) Competitive(seat int) strategy.Competitive {
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining := g.params.Duration - time.Since(g.startedAt)
	if remaining < 0 {
		remaining = 0
	}
	return strategy.Competitive{
		MyScore:       g.scores[seat],
		OpponentScore: g.scores[1-seat],
		TimeRemaining: remaining,
		TotalDuration: g.params.Duration,
	}
}

func (g *Game) overLocked(now time.Time) bool {
	if g.finished {
		return true
	}
	if g.safeLeft <= 0 || now.Sub(g.startedAt) >= g.params.Duration {
		g.finished = true
	}
	return g.finished
}

func (g *Game) Over() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overLocked(time.Now())
}

// Winner returns the leading seat, or -1 on a draw.
func (g *Game) Winner() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.scores[0] > g.scores[1]:
		return 0
	case g.scores[1] > g.scores[0]:
		return 1
	default:
		return -1
	}
}

func (g *Game) Scores() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scores[0], g.scores[1]
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
