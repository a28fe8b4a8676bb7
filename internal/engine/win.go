package engine

type Pattern string

const (
	PatternRow          Pattern = "row"
	PatternColumn       Pattern = "column"
	PatternDiagonal     Pattern = "diagonal"
	PatternAntiDiagonal Pattern = "anti_diagonal"
	PatternCorners      Pattern = "corners"
	PatternCenter       Pattern = "center"
)

type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Match describes the winning shape found on a grid. Index is the row or
// column number for line patterns and 0 otherwise.
type Match struct {
	Pattern Pattern `json:"pattern"`
	Index   int     `json:"index"`
	Cells   []Cell  `json:"cells"`
}

type shape struct {
	pattern Pattern
	index   int
	cells   [BoardSize]Cell
}

// winPatterns in evaluation order: rows, columns, main diagonal,
// anti-diagonal, four corners, center block.
var winPatterns = buildPatterns()

func buildPatterns() []shape {
	var out []shape
	for r := 0; r < BoardSize; r++ {
		s := shape{pattern: PatternRow, index: r}
		for c := 0; c < BoardSize; c++ {
			s.cells[c] = Cell{r, c}
		}
		out = append(out, s)
	}
	for c := 0; c < BoardSize; c++ {
		s := shape{pattern: PatternColumn, index: c}
		for r := 0; r < BoardSize; r++ {
			s.cells[r] = Cell{r, c}
		}
		out = append(out, s)
	}

	diag := shape{pattern: PatternDiagonal}
	anti := shape{pattern: PatternAntiDiagonal}
	for i := 0; i < BoardSize; i++ {
		diag.cells[i] = Cell{i, i}
		anti.cells[i] = Cell{i, BoardSize - 1 - i}
	}
	last := BoardSize - 1

	return append(out,
		diag,
		anti,
		shape{pattern: PatternCorners, cells: [BoardSize]Cell{{0, 0}, {0, last}, {last, 0}, {last, last}}},
		shape{pattern: PatternCenter, cells: [BoardSize]Cell{{1, 1}, {1, 2}, {2, 1}, {2, 2}}},
	)
}

// DetectWin returns the first satisfied pattern.
func DetectWin(m MarkGrid) (Match, bool) {
	for _, s := range winPatterns {
		if covers(m, s) {
			return Match{Pattern: s.pattern, Index: s.index, Cells: append([]Cell(nil), s.cells[:]...)}, true
		}
	}
	return Match{}, false
}

func HasWin(m MarkGrid) bool {
	_, ok := DetectWin(m)
	return ok
}

func covers(m MarkGrid, s shape) bool {
	for _, cell := range s.cells {
		if !m[cell.Row][cell.Col] {
			return false
		}
	}
	return true
}
