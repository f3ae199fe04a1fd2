package solver

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dmkv/sweepduel/internal/board"
)

// Constraint states that exactly Mines of the positions in Cells are mined.
// It is derived from one revealed numbered cell, with adjacent flags and
// disclosed mines already subtracted from the count.
type Constraint struct {
	Cells map[board.Position]struct{}
	Mines int
}

func (c *Constraint) Size() int { return len(c.Cells) }

func (c *Constraint) Has(p board.Position) bool {
	_, ok := c.Cells[p]
	return ok
}

// key is a canonical form used to deduplicate derived constraints.
func (c *Constraint) key() string {
	ps := make([]string, 0, len(c.Cells))
	for p := range c.Cells {
		ps = append(ps, p.String())
	}
	slices.Sort(ps)
	return fmt.Sprintf("%d|%s", c.Mines, strings.Join(ps, ","))
}

func (c *Constraint) String() string {
	return fmt.Sprintf("{%d mines in %d cells}", c.Mines, len(c.Cells))
}

// difference returns the cells of c not present in other.
func (c *Constraint) difference(other *Constraint) map[board.Position]struct{} {
	out := make(map[board.Position]struct{})
	for p := range c.Cells {
		if !other.Has(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

func (c *Constraint) intersection(other *Constraint) map[board.Position]struct{} {
	out := make(map[board.Position]struct{})
	for p := range c.Cells {
		if other.Has(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

// BuildConstraints derives one constraint per revealed numbered cell from
// its hidden, unflagged neighbors. Flagged and disclosed-mine neighbors
// reduce the count; disclosed-safe neighbors stay in the cell set. A cell
// whose adjusted count goes negative is over-flagged and is returned in
// suspicious instead of being asserted.
func BuildConstraints(
	snap *board.Snapshot, disclosed board.Disclosure,
) (constraints []*Constraint, suspicious []board.Position) {
	for y := range snap.Height {
		for x := range snap.Width {
			p := board.Position{X: x, Y: y}
			c := snap.At(p)
			if !c.Revealed {
				continue
			}
			remaining := c.Number
			cells := make(map[board.Position]struct{})
			for _, n := range snap.Neighbors(p) {
				nc := snap.At(n)
				switch {
				case nc.Revealed:
					// nothing to learn from an open neighbor
				case nc.Flagged:
					remaining--
				case disclosed[n]:
					remaining--
				default:
					cells[n] = struct{}{}
				}
			}
			if remaining < 0 {
				suspicious = append(suspicious, p)
				continue
			}
			if len(cells) > 0 {
				constraints = append(constraints, &Constraint{Cells: cells, Mines: remaining})
			}
		}
	}
	return constraints, suspicious
}
