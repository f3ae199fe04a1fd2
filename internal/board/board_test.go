package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotRejectsMalformedInput(t *testing.T) {
	_, err := NewSnapshot(0, 3, 1, nil)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = NewSnapshot(3, 3, -1, make([]Cell, 9))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = NewSnapshot(3, 3, 9, make([]Cell, 9))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = NewSnapshot(3, 3, 1, make([]Cell, 8))
	assert.ErrorIs(t, err, ErrMalformed)

	cells := make([]Cell, 9)
	cells[0] = Cell{Revealed: true, Number: 9}
	_, err = NewSnapshot(3, 3, 1, cells)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseRoundTrip(t *testing.T) {
	snap := MustParse(1, `
		* 1 .
		1 1 .
		0 0 .
	`)
	assert.Equal(t, 3, snap.Width)
	assert.Equal(t, 3, snap.Height)

	again, err := Parse(1, snap.String())
	require.NoError(t, err)
	assert.Equal(t, snap.String(), again.String())
}

func TestNeighbors(t *testing.T) {
	snap := MustParse(1, `
		. . .
		. . .
		. . .
	`)
	assert.Len(t, snap.Neighbors(Position{1, 1}), 8)
	assert.Len(t, snap.Neighbors(Position{0, 0}), 3)
	assert.Len(t, snap.Neighbors(Position{1, 0}), 5)
}

func TestCounts(t *testing.T) {
	snap := MustParse(2, `
		* 1 .
		1 1 .
		0 0 .
	`)
	assert.Equal(t, 1, snap.FlaggedCount())
	assert.Equal(t, 5, snap.RevealedCount())
	assert.Equal(t, []Position{{2, 0}, {2, 1}, {2, 2}}, snap.Hidden())
}

func TestIsFrontier(t *testing.T) {
	snap := MustParse(2, `
		1 . .
		. . .
		. . .
	`)
	assert.True(t, snap.IsFrontier(Position{1, 0}))
	assert.True(t, snap.IsFrontier(Position{1, 1}))
	assert.False(t, snap.IsFrontier(Position{2, 2}), "not adjacent to anything revealed")
	assert.False(t, snap.IsFrontier(Position{0, 0}), "revealed cells are not frontier")
}

func TestDisclosurePrune(t *testing.T) {
	snap := MustParse(2, `
		1 * .
		. . .
		. . .
	`)
	d := Disclosure{}
	d.Add(Position{1, 0}, true)  // since flagged
	d.Add(Position{0, 0}, false) // since revealed
	d.Add(Position{2, 2}, true)  // still hidden
	d.Add(Position{9, 9}, true)  // out of bounds

	d.Prune(snap)

	require.Len(t, d, 1)
	mine, ok := d[Position{2, 2}]
	assert.True(t, ok)
	assert.True(t, mine)
}
