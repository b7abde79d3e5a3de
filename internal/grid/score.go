package grid

// Result is the winner tag of a scored board.
type Result string

const (
	FirstWins  Result = "first"
	SecondWins Result = "second"
	Draw       Result = "draw"
)

// Score holds the largest connected region per side.
type Score struct {
	First  int
	Second int
}

// Result compares the two maxima; equal maxima is a draw.
func (s Score) Result() Result {
	switch {
	case s.First > s.Second:
		return FirstWins
	case s.Second > s.First:
		return SecondWins
	default:
		return Draw
	}
}

// Evaluate scores g for the two assigned colors. Each color gets its own
// visited mask and g is only read.
func Evaluate(g Grid, first, second Color) Score {
	return Score{First: MaxRegion(g, first), Second: MaxRegion(g, second)}
}

type cell struct{ r, c int }

var neighbours = [4]cell{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// MaxRegion returns the size of the largest 4-connected region of color.
// Empty never forms a region.
func MaxRegion(g Grid, color Color) int {
	if color == Empty || len(g) == 0 {
		return 0
	}
	visited := make([][]bool, len(g))
	for r := range g {
		visited[r] = make([]bool, len(g[r]))
	}

	best := 0
	var stack []cell
	for r := range g {
		for c := range g[r] {
			if visited[r][c] || g[r][c] != color {
				continue
			}
			visited[r][c] = true
			stack = append(stack[:0], cell{r, c})
			size := 0
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				size++
				for _, d := range neighbours {
					nr, nc := cur.r+d.r, cur.c+d.c
					if !g.InBounds(nr, nc) || visited[nr][nc] || g[nr][nc] != color {
						continue
					}
					visited[nr][nc] = true
					stack = append(stack, cell{nr, nc})
				}
			}
			if size > best {
				best = size
			}
		}
	}
	return best
}
