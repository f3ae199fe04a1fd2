// Package risk is the probabilistic layer: when the solver proves
// nothing, every undetermined hidden cell gets a mine-probability
// estimate and the least risky acceptable cell becomes the guess.
package risk

import (
	"math"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/dmkv/sweepduel/internal/board"
	"github.com/dmkv/sweepduel/internal/pattern"
	"github.com/dmkv/sweepduel/internal/solver"
)

var Log = logrus.New()

// Config carries the empirically tuned estimator constants. The exact
// values are defaults, not contracts; only the qualitative behavior
// (bounds, monotonicity) is load-bearing.
type Config struct {
	// MaxWeight and AvgWeight blend the most pessimistic constraint
	// estimate with the size-weighted average of all touching constraints.
	MaxWeight float64
	AvgWeight float64
	// NudgeBound limits the positional heuristic to a multiplicative
	// adjustment of at most this fraction.
	NudgeBound float64
	// BiasCap is the ceiling a learned-pattern penalty can push a
	// probability to.
	BiasCap float64
}

func DefaultConfig() Config {
	return Config{
		MaxWeight:  0.7,
		AvgWeight:  0.3,
		NudgeBound: 0.05,
		BiasCap:    0.95,
	}
}

type Estimator struct {
	cfg     Config
	advisor pattern.Advisor
}

func NewEstimator(cfg Config, advisor pattern.Advisor) *Estimator {
	if advisor == nil {
		advisor = pattern.Noop{}
	}
	return &Estimator{cfg: cfg, advisor: advisor}
}

// Estimate assigns a mine probability in [0,1] to every hidden, unflagged
// cell the solver left undetermined. Cells touched by at least one
// constraint get the blended local estimate; the rest get the global
// density prior.
func (e *Estimator) Estimate(
	snap *board.Snapshot, res solver.Result, disclosed board.Disclosure,
) map[board.Position]float64 {
	risks := make(map[board.Position]float64)
	if snap == nil {
		return risks
	}

	determined := func(p board.Position) bool {
		if _, ok := res.Safe[p]; ok {
			return true
		}
		if _, ok := res.Mines[p]; ok {
			return true
		}
		_, ok := disclosed[p]
		return ok
	}

	constraints, _ := solver.BuildConstraints(snap, disclosed)

	type acc struct {
		max       float64
		weighted  float64
		weightSum float64
	}
	local := make(map[board.Position]*acc)
	for _, c := range constraints {
		p := float64(c.Mines) / float64(c.Size())
		w := float64(c.Size())
		for pos := range c.Cells {
			a, ok := local[pos]
			if !ok {
				a = &acc{}
				local[pos] = a
			}
			a.max = math.Max(a.max, p)
			a.weighted += p * w
			a.weightSum += w
		}
	}

	hidden := snap.Hidden()
	undetermined := 0
	for _, p := range hidden {
		if !determined(p) {
			undetermined++
		}
	}
	minesLeft := snap.TotalMines - snap.FlaggedCount() - len(res.Mines) - countMines(disclosed)
	prior := 0.5
	if undetermined > 0 {
		prior = clamp(float64(minesLeft)/float64(undetermined), 0, 1)
	}

	for _, pos := range hidden {
		if determined(pos) {
			continue
		}
		var p float64
		if a, ok := local[pos]; ok {
			p = e.cfg.MaxWeight*a.max + e.cfg.AvgWeight*(a.weighted/a.weightSum)
		} else {
			p = prior
		}
		p *= e.nudge(snap, pos)
		if bias := e.advisor.BiasFor(pattern.ContextAt(snap, pos)); bias > 0 {
			p = math.Min(e.cfg.BiasCap, p+bias)
		}
		risks[pos] = clamp(p, 0, 1)
	}
	return risks
}

// nudge is the bounded positional heuristic: frontier cells next to low
// numbers and cells with lots of hidden neighbors (cascade potential) look
// slightly better. The factor never strays further than NudgeBound from 1,
// so it cannot overturn the probability ordering by more than that.
func (e *Estimator) nudge(snap *board.Snapshot, pos board.Position) float64 {
	factor := 1.0
	lowestNumber := 9
	hiddenNeighbors := 0
	for _, n := range snap.Neighbors(pos) {
		c := snap.At(n)
		if c.Revealed && c.Number < lowestNumber {
			lowestNumber = c.Number
		}
		if !c.Revealed && !c.Flagged {
			hiddenNeighbors++
		}
	}
	if lowestNumber <= 1 {
		factor -= 0.03
	}
	if hiddenNeighbors >= 5 {
		factor -= 0.02
	}
	return clamp(factor, 1-e.cfg.NudgeBound, 1+e.cfg.NudgeBound)
}

// Candidate is a guess proposal: the cell, its estimated risk and its
// strategic value used to break risk ties.
type Candidate struct {
	Pos   board.Position
	Risk  float64
	Value float64
}

// Pick selects the guess: the lowest-risk cell within tolerance, ranked by
// strategic value on ties. If nothing passes the tolerance the globally
// least risky cell is returned anyway, so a think cycle is never stuck
// while hidden cells remain.
func (e *Estimator) Pick(
	snap *board.Snapshot, risks map[board.Position]float64, tolerance float64,
) (Candidate, bool) {
	if len(risks) == 0 {
		return Candidate{}, false
	}
	all := make([]Candidate, 0, len(risks))
	for pos, r := range risks {
		all = append(all, Candidate{Pos: pos, Risk: r, Value: strategicValue(snap, pos)})
	}
	slices.SortFunc(all, func(a, b Candidate) int {
		if a.Risk != b.Risk {
			if a.Risk < b.Risk {
				return -1
			}
			return 1
		}
		if a.Value != b.Value {
			if a.Value > b.Value {
				return -1
			}
			return 1
		}
		if a.Pos.Y != b.Pos.Y {
			return a.Pos.Y - b.Pos.Y
		}
		return a.Pos.X - b.Pos.X
	})
	best := all[0]
	if best.Risk > tolerance {
		Log.WithFields(logrus.Fields{
			"cell": best.Pos, "risk": best.Risk, "tolerance": tolerance,
		}).Debug("no cell within tolerance, guessing the least risky anyway")
	}
	return best, true
}

// strategicValue rewards cells bordering already-opened area and cells
// with many hidden neighbors, and mildly penalizes distance from the board
// center (central opens tend to split the board usefully).
func strategicValue(snap *board.Snapshot, pos board.Position) float64 {
	revealed, hidden := 0, 0
	for _, n := range snap.Neighbors(pos) {
		c := snap.At(n)
		switch {
		case c.Revealed:
			revealed++
		case !c.Flagged:
			hidden++
		}
	}
	cx, cy := float64(snap.Width-1)/2, float64(snap.Height-1)/2
	dist := math.Hypot(float64(pos.X)-cx, float64(pos.Y)-cy)
	return 2*float64(revealed) + float64(hidden) - 0.1*dist
}

func countMines(d board.Disclosure) (n int) {
	for _, mine := range d {
		if mine {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
