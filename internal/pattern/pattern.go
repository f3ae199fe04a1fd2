// Package pattern is the adaptive feedback hook of the decision engine:
// when a probabilistic guess turns out to be provably wrong, the local
// neighbor configuration around the guess is remembered and biases future
// risk estimates for look-alike spots. Durable storage lives behind Store
// so the engine itself stays collaborator-agnostic.
package pattern

import (
	"context"
	"sync"
	"time"

	"github.com/dmkv/sweepduel/internal/board"
)

// Context packs the 3x3 neighborhood around a cell into a comparable key.
// Each of the eight neighbors takes four bits: 0 hidden, 1 flagged, 2
// off-board, 3..11 a revealed number plus three. The cell itself is by
// definition hidden, so it carries no bits.
type Context uint32

func ContextAt(snap *board.Snapshot, p board.Position) Context {
	var (
		ctx   Context
		shift uint
	)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			var nibble Context
			n := board.Position{X: p.X + dx, Y: p.Y + dy}
			switch {
			case !snap.InBounds(n):
				nibble = 2
			case snap.At(n).Flagged:
				nibble = 1
			case snap.At(n).Revealed:
				nibble = Context(snap.At(n).Number) + 3
			default:
				nibble = 0
			}
			ctx |= nibble << shift
			shift += 4
		}
	}
	return ctx
}

// Advisor is the in-game face of the feedback loop. RecordMistake is
// called when a guess at a cell with the given surroundings hit a mine;
// BiasFor returns the additive risk penalty earned by past mistakes in
// identical surroundings, in [0,1].
type Advisor interface {
	RecordMistake(ctx Context, severity float64)
	BiasFor(ctx Context) float64
}

// Noop ignores all feedback. Useful default for tests.
type Noop struct{}

func (Noop) RecordMistake(Context, float64) {}
func (Noop) BiasFor(Context) float64        { return 0 }

// maxBias caps how much a single remembered configuration can penalize a
// cell, so learned bias can nudge but never dominate an estimate on its own.
const maxBias = 0.3

// Memory is the in-process Advisor. It is shared across games within one
// process and can be seeded from / drained into a Store between games.
type Memory struct {
	mu   sync.Mutex
	bias map[Context]float64
}

func NewMemory() *Memory {
	return &Memory{bias: make(map[Context]float64)}
}

func (m *Memory) RecordMistake(ctx Context, severity float64) {
	if severity < 0 {
		severity = 0
	} else if severity > 1 {
		severity = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bias[ctx] + severity*0.1
	if b > maxBias {
		b = maxBias
	}
	m.bias[ctx] = b
}

func (m *Memory) BiasFor(ctx Context) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bias[ctx]
}

// Biases copies the current table, for persisting through a Store.
func (m *Memory) Biases() map[Context]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Context]float64, len(m.bias))
	for k, v := range m.bias {
		out[k] = v
	}
	return out
}

// Merge folds stored biases in, keeping the larger value per context.
func (m *Memory) Merge(biases map[Context]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range biases {
		if v > maxBias {
			v = maxBias
		}
		if v > m.bias[k] {
			m.bias[k] = v
		}
	}
}

// GameSummary is what the orchestrator hands over at the end of a game.
type GameSummary struct {
	Won           bool          `json:"won"`
	FinalMood     string        `json:"final_mood"`
	Score         int           `json:"score"`
	OpponentScore int           `json:"opponent_score"`
	Mistakes      int           `json:"mistakes"`
	Duration      time.Duration `json:"duration"`
}

// MoodRecord aggregates game outcomes per final mood, backing the
// strategist's "statistically best mood" override.
type MoodRecord struct {
	Games int
	Wins  int
}

// Store is the durable side of the feedback loop.
type Store interface {
	LoadBiases(ctx context.Context) (map[Context]float64, error)
	SaveBiases(ctx context.Context, biases map[Context]float64) error
	RecordGame(ctx context.Context, sum GameSummary) error
	MoodRecords(ctx context.Context) (map[string]MoodRecord, error)
	Close() error
}
