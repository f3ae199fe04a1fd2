package solver

import (
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/dmkv/sweepduel/internal/board"
)

var Log = logrus.New()

// maxPasses bounds the deductive fixpoint loop. Every productive pass
// either classifies a cell or derives a strictly smaller constraint, so
// in practice the loop settles long before the cap.
const maxPasses = 10

// Result holds everything the deterministic layer managed to prove from
// the visible board. Safe and Mines are disjoint after reconciliation.
// Suspicious lists revealed numbered cells whose neighborhood carries more
// flags than its number allows.
type Result struct {
	Safe       map[board.Position]struct{}
	Mines      map[board.Position]struct{}
	Suspicious []board.Position
}

func (r Result) SortedSafe() []board.Position  { return sortedPositions(r.Safe) }
func (r Result) SortedMines() []board.Position { return sortedPositions(r.Mines) }

func sortedPositions(set map[board.Position]struct{}) []board.Position {
	out := make([]board.Position, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b board.Position) int {
		if a.Y != b.Y {
			return a.Y - b.Y
		}
		return a.X - b.X
	})
	return out
}

const (
	markSafe int8 = iota
	markMine
)

// deductions accumulates classified cells during a solve and resolves
// contradictions with a fixed precedence: a mine deduction beats a safe
// deduction for the same cell.
type deductions struct {
	known   map[board.Position]int8
	changed bool
}

func (d *deductions) assert(p board.Position, mark int8) {
	prev, ok := d.known[p]
	if !ok {
		d.known[p] = mark
		d.changed = true
		return
	}
	if prev == mark {
		return
	}
	// Should not happen on a well-formed board. Mine wins.
	Log.WithField("cell", p).Warn("contradictory deduction, keeping mine classification")
	if mark == markMine {
		d.known[p] = markMine
		d.changed = true
	}
}

// Solve runs the deterministic layer over one snapshot. Disclosed cells
// are treated as established facts. Every derivation traces back to
// revealed numbers, flags and disclosures only; the true layout is never
// consulted.
func Solve(snap *board.Snapshot, disclosed board.Disclosure) Result {
	res := Result{
		Safe:  make(map[board.Position]struct{}),
		Mines: make(map[board.Position]struct{}),
	}
	if snap == nil {
		return res
	}

	constraints, suspicious := BuildConstraints(snap, disclosed)
	res.Suspicious = suspicious

	d := &deductions{known: make(map[board.Position]int8)}
	for p, mine := range disclosed {
		if mine {
			d.assert(p, markMine)
		} else {
			d.assert(p, markSafe)
		}
	}

	seen := make(map[string]struct{}, len(constraints))
	for _, c := range constraints {
		seen[c.key()] = struct{}{}
	}

	for pass := 0; pass < maxPasses; pass++ {
		d.changed = false

		constraints = reduceConstraints(constraints, d)
		simpleElimination(&constraints, d)
		pairwisePatterns(constraints, d)
		subsetRule(&constraints, seen, d)
		intersectionRule(constraints, d)
		globalBudget(snap, d)

		if !d.changed {
			break
		}
	}

	for p, mark := range d.known {
		if mark == markMine {
			res.Mines[p] = struct{}{}
		} else {
			res.Safe[p] = struct{}{}
		}
	}
	return res
}

// reduceConstraints strips already-classified cells out of every
// constraint, adjusting mine counts, and drops constraints whittled down
// to nothing. A count pushed negative marks an inconsistency; the
// constraint is discarded rather than asserted.
func reduceConstraints(constraints []*Constraint, d *deductions) []*Constraint {
	out := constraints[:0]
	for _, c := range constraints {
		for p := range c.Cells {
			mark, ok := d.known[p]
			if !ok {
				continue
			}
			delete(c.Cells, p)
			if mark == markMine {
				c.Mines--
			}
		}
		if c.Mines < 0 {
			Log.WithField("constraint", c).Warn("constraint count went negative, dropping")
			continue
		}
		if c.Size() > 0 {
			out = append(out, c)
		}
	}
	return out
}

// simpleElimination applies the two trivial closures: zero mines means
// every cell is safe, a count equal to the set size means every cell is a
// mine. Resolved constraints are removed.
func simpleElimination(constraints *[]*Constraint, d *deductions) {
	out := (*constraints)[:0]
	for _, c := range *constraints {
		switch {
		case c.Mines == 0:
			for p := range c.Cells {
				d.assert(p, markSafe)
			}
		case c.Mines == c.Size():
			for p := range c.Cells {
				d.assert(p, markMine)
			}
		default:
			out = append(out, c)
		}
	}
	*constraints = out
}

// pairwisePatterns resolves the classic local shapes (adjacent 1-1, 1-2
// and the symmetric 1-2-1) without waiting for global accumulation. The
// deduction is the wing rule: if the extra mines of one constraint over
// another exactly fill its exclusive cells, those cells are all mines and
// the other side's exclusive cells are all safe.
func pairwisePatterns(constraints []*Constraint, d *deductions) {
	for i, a := range constraints {
		for _, b := range constraints[i+1:] {
			if len(a.intersection(b)) == 0 {
				continue
			}
			awing := a.difference(b)
			bwing := b.difference(a)
			if len(awing) > 0 && len(awing) == a.Mines-b.Mines {
				for p := range awing {
					d.assert(p, markMine)
				}
				for p := range bwing {
					d.assert(p, markSafe)
				}
				continue
			}
			if len(bwing) > 0 && len(bwing) == b.Mines-a.Mines {
				for p := range bwing {
					d.assert(p, markMine)
				}
				for p := range awing {
					d.assert(p, markSafe)
				}
			}
		}
	}
}

// subsetRule derives a constraint on B−A whenever A ⊆ B: the difference
// holds exactly B.Mines−A.Mines mines. Immediate closures go straight to
// the deduction set; otherwise the derived constraint joins the pool so
// later passes can chain on it.
func subsetRule(constraints *[]*Constraint, seen map[string]struct{}, d *deductions) {
	pool := *constraints
	for i, a := range pool {
		for j, b := range pool {
			if i == j || a.Size() >= b.Size() {
				continue
			}
			if len(a.difference(b)) != 0 {
				continue // not a subset
			}
			diff := b.difference(a)
			mines := b.Mines - a.Mines
			if mines < 0 || mines > len(diff) {
				Log.WithFields(logrus.Fields{
					"a": a, "b": b,
				}).Warn("inconsistent subset pair, skipping")
				continue
			}
			switch {
			case mines == 0:
				for p := range diff {
					d.assert(p, markSafe)
				}
			case mines == len(diff):
				for p := range diff {
					d.assert(p, markMine)
				}
			default:
				derived := &Constraint{Cells: diff, Mines: mines}
				if _, ok := seen[derived.key()]; !ok {
					seen[derived.key()] = struct{}{}
					*constraints = append(*constraints, derived)
					d.changed = true
				}
			}
		}
	}
}

// intersectionRule bounds the mine count shared by two overlapping
// constraints. When the bounds pin the shared count down exactly, the
// forced counts in each exclusive wing may collapse to all-safe or
// all-mine.
func intersectionRule(constraints []*Constraint, d *deductions) {
	for i, a := range constraints {
		for _, b := range constraints[i+1:] {
			inter := a.intersection(b)
			if len(inter) == 0 {
				continue
			}
			awing := a.difference(b)
			bwing := b.difference(a)
			lo := max(0, a.Mines-len(awing), b.Mines-len(bwing))
			hi := min(a.Mines, b.Mines, len(inter))
			if lo > hi {
				Log.WithFields(logrus.Fields{
					"a": a, "b": b,
				}).Warn("overlapping constraints admit no solution, skipping")
				continue
			}
			if lo != hi {
				continue
			}
			classifyWing(awing, a.Mines-lo, d)
			classifyWing(bwing, b.Mines-lo, d)
		}
	}
}

func classifyWing(wing map[board.Position]struct{}, mines int, d *deductions) {
	if len(wing) == 0 {
		return
	}
	switch {
	case mines == 0:
		for p := range wing {
			d.assert(p, markSafe)
		}
	case mines == len(wing):
		for p := range wing {
			d.assert(p, markMine)
		}
	}
}

// globalBudget brings the total mine count to bear: once the number of
// undetermined hidden cells matches the unaccounted mines they are all
// mines, and once no mines remain unaccounted they are all safe.
func globalBudget(snap *board.Snapshot, d *deductions) {
	knownMines := 0
	for _, mark := range d.known {
		if mark == markMine {
			knownMines++
		}
	}
	minesLeft := snap.TotalMines - snap.FlaggedCount() - knownMines

	var undetermined []board.Position
	for _, p := range snap.Hidden() {
		if _, ok := d.known[p]; !ok {
			undetermined = append(undetermined, p)
		}
	}
	if len(undetermined) == 0 {
		return
	}
	if minesLeft < 0 {
		Log.WithField("minesLeft", minesLeft).Warn("more flags than mines remain, skipping budget rule")
		return
	}
	switch {
	case minesLeft == 0:
		for _, p := range undetermined {
			d.assert(p, markSafe)
		}
	case minesLeft == len(undetermined):
		for _, p := range undetermined {
			d.assert(p, markMine)
		}
	}
}
