package board

import (
	"fmt"
	"strings"
)

// Parse builds a snapshot from the same notation String produces: one line
// per row, cells separated by whitespace, "." hidden, "*" flagged, digits
// revealed. Meant for tests and debugging.
func Parse(totalMines int, text string) (*Snapshot, error) {
	var (
		cells []Cell
		width = -1
		rows  int
	)
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if width == -1 {
			width = len(fields)
		} else if len(fields) != width {
			return nil, fmt.Errorf("%w: ragged row %q", ErrMalformed, line)
		}
		rows++
		for _, f := range fields {
			switch f {
			case ".":
				cells = append(cells, Cell{})
			case "*":
				cells = append(cells, Cell{Flagged: true})
			default:
				var n int
				if _, err := fmt.Sscanf(f, "%d", &n); err != nil {
					return nil, fmt.Errorf("%w: bad cell %q", ErrMalformed, f)
				}
				cells = append(cells, Cell{Revealed: true, Number: n})
			}
		}
	}
	return NewSnapshot(width, rows, totalMines, cells)
}

// MustParse is Parse for tests with known-good input.
func MustParse(totalMines int, text string) *Snapshot {
	s, err := Parse(totalMines, text)
	if err != nil {
		panic(err)
	}
	return s
}
