package grid

import "errors"

// Color is a cell value. The zero value is an empty cell.
type Color string

const (
	Empty Color = ""
	Red   Color = "red"
	Blue  Color = "blue"
)

var ErrInvalidSize = errors.New("grid size must be positive")

// Opposite returns the other playable color; Empty stays Empty.
func (c Color) Opposite() Color {
	switch c {
	case Red:
		return Blue
	case Blue:
		return Red
	default:
		return Empty
	}
}

// Grid is a row-major board. Rows may in principle differ from columns;
// sessions always use a square board.
type Grid [][]Color

// New returns an all-empty rows×cols grid.
func New(rows, cols int) (Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrInvalidSize
	}
	g := make(Grid, rows)
	for r := range g {
		g[r] = make([]Color, cols)
	}
	return g, nil
}

func (g Grid) Rows() int { return len(g) }

func (g Grid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

func (g Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.Rows() && col >= 0 && col < len(g[row])
}

// Full reports whether no cell is empty.
func (g Grid) Full() bool {
	for _, row := range g {
		for _, c := range row {
			if c == Empty {
				return false
			}
		}
	}
	return true
}

// Filled counts occupied cells.
func (g Grid) Filled() int {
	n := 0
	for _, row := range g {
		for _, c := range row {
			if c != Empty {
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy safe to hand to other goroutines.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for r, row := range g {
		out[r] = append([]Color(nil), row...)
	}
	return out
}

// Strings renders cells for JSON payloads; empty cells become nil.
func (g Grid) Strings() [][]*string {
	out := make([][]*string, len(g))
	for r, row := range g {
		out[r] = make([]*string, len(row))
		for c, v := range row {
			if v == Empty {
				continue
			}
			s := string(v)
			out[r][c] = &s
		}
	}
	return out
}
