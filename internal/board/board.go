package board

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMalformed = errors.New("malformed board snapshot")

type Position struct {
	X, Y int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.X, p.Y)
}

// Cell is one square of the board as the opponent sees it. Number is only
// meaningful while Revealed is set. A snapshot never carries the real mine
// layout; the only way mine knowledge enters the engine is a reveal made
// through play or an explicit disclosure.
type Cell struct {
	Revealed bool
	Flagged  bool
	Number   int
}

// Snapshot is a read-only view of the visible board state, rebuilt from the
// live game once per think cycle.
type Snapshot struct {
	Width, Height int
	TotalMines    int
	cells         []Cell
}

func NewSnapshot(width, height, totalMines int, cells []Cell) (*Snapshot, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d grid", ErrMalformed, width, height)
	}
	if totalMines < 0 || totalMines >= width*height {
		return nil, fmt.Errorf("%w: %d mines on %d cells", ErrMalformed, totalMines, width*height)
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("%w: %d cells for a %dx%d grid", ErrMalformed, len(cells), width, height)
	}
	for i, c := range cells {
		if c.Revealed && (c.Number < 0 || c.Number > 8) {
			return nil, fmt.Errorf("%w: cell %d:%d has number %d", ErrMalformed, i%width, i/width, c.Number)
		}
	}
	return &Snapshot{Width: width, Height: height, TotalMines: totalMines, cells: cells}, nil
}

func (s *Snapshot) InBounds(p Position) bool {
	return p.X >= 0 && p.X < s.Width && p.Y >= 0 && p.Y < s.Height
}

func (s *Snapshot) At(p Position) Cell {
	return s.cells[p.Y*s.Width+p.X]
}

// Neighbors returns the in-bounds cells surrounding p.
func (s *Snapshot) Neighbors(p Position) []Position {
	ns := make([]Position, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := Position{p.X + dx, p.Y + dy}
			if s.InBounds(n) {
				ns = append(ns, n)
			}
		}
	}
	return ns
}

// Hidden returns every cell that is neither revealed nor flagged, in
// row-major order.
func (s *Snapshot) Hidden() []Position {
	var out []Position
	for y := range s.Height {
		for x := range s.Width {
			c := s.cells[y*s.Width+x]
			if !c.Revealed && !c.Flagged {
				out = append(out, Position{x, y})
			}
		}
	}
	return out
}

func (s *Snapshot) FlaggedCount() (n int) {
	for _, c := range s.cells {
		if c.Flagged {
			n++
		}
	}
	return n
}

func (s *Snapshot) RevealedCount() (n int) {
	for _, c := range s.cells {
		if c.Revealed {
			n++
		}
	}
	return n
}

// IsFrontier reports whether p is hidden, unflagged and adjacent to at
// least one revealed cell.
func (s *Snapshot) IsFrontier(p Position) bool {
	c := s.At(p)
	if c.Revealed || c.Flagged {
		return false
	}
	for _, n := range s.Neighbors(p) {
		if s.At(n).Revealed {
			return true
		}
	}
	return false
}

func (s *Snapshot) String() string {
	var b strings.Builder
	for y := range s.Height {
		for x := range s.Width {
			c := s.cells[y*s.Width+x]
			switch {
			case c.Flagged:
				b.WriteString("* ")
			case !c.Revealed:
				b.WriteString(". ")
			default:
				fmt.Fprintf(&b, "%d ", c.Number)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Disclosure holds cells whose mine status was handed to the engine by a
// fairness-exempt ability. The value records whether the cell is a mine.
// Entries persist across think cycles until the cell is flagged or revealed.
type Disclosure map[Position]bool

func (d Disclosure) Add(p Position, mine bool) {
	d[p] = mine
}

// Prune drops entries the board has since caught up with.
func (d Disclosure) Prune(s *Snapshot) {
	for p := range d {
		if !s.InBounds(p) {
			delete(d, p)
			continue
		}
		if c := s.At(p); c.Revealed || c.Flagged {
			delete(d, p)
		}
	}
}
