package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmkv/sweepduel/internal/board"
)

func TestContextAtDistinguishesNeighborhoods(t *testing.T) {
	a := board.MustParse(2, `
		1 . .
		. . .
		. . .
	`)
	b := board.MustParse(2, `
		2 . .
		. . .
		. . .
	`)
	c := board.MustParse(2, `
		* . .
		. . .
		. . .
	`)
	pos := board.Position{X: 1, Y: 1}

	assert.NotEqual(t, ContextAt(a, pos), ContextAt(b, pos))
	assert.NotEqual(t, ContextAt(a, pos), ContextAt(c, pos))
	assert.Equal(t, ContextAt(a, pos), ContextAt(a, pos))
}

func TestContextAtEncodesBoardEdge(t *testing.T) {
	snap := board.MustParse(2, `
		. . .
		. . .
		. . .
	`)
	corner := ContextAt(snap, board.Position{X: 0, Y: 0})
	center := ContextAt(snap, board.Position{X: 1, Y: 1})
	assert.NotEqual(t, corner, center)
	assert.Zero(t, center, "an all-hidden interior neighborhood is the zero context")
}

func TestMemoryAccumulatesAndCaps(t *testing.T) {
	m := NewMemory()
	ctx := Context(42)

	assert.Zero(t, m.BiasFor(ctx))

	m.RecordMistake(ctx, 0.5)
	assert.InDelta(t, 0.05, m.BiasFor(ctx), 1e-9)

	for range 20 {
		m.RecordMistake(ctx, 1)
	}
	assert.InDelta(t, 0.3, m.BiasFor(ctx), 1e-9, "bias is capped")
	assert.Zero(t, m.BiasFor(Context(7)), "other contexts unaffected")
}

func TestMemorySeverityClamped(t *testing.T) {
	m := NewMemory()
	m.RecordMistake(1, -5)
	assert.Zero(t, m.BiasFor(1))
	m.RecordMistake(2, 5)
	assert.InDelta(t, 0.1, m.BiasFor(2), 1e-9)
}

func TestMergeKeepsLargerValue(t *testing.T) {
	m := NewMemory()
	m.RecordMistake(1, 1) // 0.1

	m.Merge(map[Context]float64{
		1: 0.05, // smaller, ignored
		2: 0.2,
		3: 0.9, // over the cap
	})

	assert.InDelta(t, 0.1, m.BiasFor(1), 1e-9)
	assert.InDelta(t, 0.2, m.BiasFor(2), 1e-9)
	assert.InDelta(t, 0.3, m.BiasFor(3), 1e-9)
}

func TestBiasesCopies(t *testing.T) {
	m := NewMemory()
	m.RecordMistake(1, 1)

	out := m.Biases()
	out[1] = 99

	assert.InDelta(t, 0.1, m.BiasFor(1), 1e-9)
}
