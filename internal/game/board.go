package game

import "errors"

// Board dimensions. The top HiddenRows rows are the spawn area and are
// excluded from match scanning.
const (
	BoardCols  = 6
	BoardRows  = 16
	HiddenRows = 3
)

// SpawnCol is where new pieces appear.
const SpawnCol = BoardCols / 2

// ErrBoardOverflow is returned by Place when a column has no room for the
// piece. It is a terminal game outcome for the seat, not a fault.
var ErrBoardOverflow = errors.New("board overflow")

// Board is one seat's grid. Cells[0] is the top (hidden) row; nil cells are
// empty. Every mutation happens under the owning game's lock.
type Board struct {
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Cells [][]*Block `json:"cells"`
}

// NewBoard returns an empty board with the fixed dimensions.
func NewBoard() *Board {
	cells := make([][]*Block, BoardRows)
	for r := range cells {
		cells[r] = make([]*Block, BoardCols)
	}
	return &Board{Rows: BoardRows, Cols: BoardCols, Cells: cells}
}

// Copy returns a detached deep copy. Power effects compute into a copy and
// commit it, so an aborted effect never leaves a half-mutated board.
func (b *Board) Copy() *Board {
	nb := &Board{Rows: b.Rows, Cols: b.Cols, Cells: make([][]*Block, b.Rows)}
	for r := range b.Cells {
		nb.Cells[r] = make([]*Block, b.Cols)
		for c, cell := range b.Cells[r] {
			if cell != nil {
				cp := *cell
				nb.Cells[r][c] = &cp
			}
		}
	}
	return nb
}

// ColumnHeight counts occupied cells in a column. Columns are always packed
// from the bottom outside of an in-flight collapse.
func (b *Board) ColumnHeight(col int) int {
	n := 0
	for r := 0; r < b.Rows; r++ {
		if b.Cells[r][col] != nil {
			n++
		}
	}
	return n
}

// Place drops the piece's blocks into its current column, landing on top of
// the existing stack. Fails with ErrBoardOverflow when the column cannot fit
// all three blocks.
func (b *Board) Place(p *Piece) error {
	top := b.Rows // first occupied row in the column
	for r := 0; r < b.Rows; r++ {
		if b.Cells[r][p.Col] != nil {
			top = r
			break
		}
	}
	if top < PieceSize {
		return ErrBoardOverflow
	}
	for i := 0; i < PieceSize; i++ {
		// Blocks keep their stacking order: top block highest.
		b.Cells[top-PieceSize+i][p.Col] = p.Blocks[i]
	}
	return nil
}

// MarkCells flags the given cells for removal.
func (b *Board) MarkCells(cells []Cell) {
	for _, c := range cells {
		if blk := b.Cells[c.Row][c.Col]; blk != nil {
			blk.Marked = true
		}
	}
}

// Collapse removes all marked cells and re-settles each column downward,
// preserving the relative vertical order of the survivors. Returns the
// number of removed blocks.
func (b *Board) Collapse() int {
	removed := 0
	for col := 0; col < b.Cols; col++ {
		write := b.Rows - 1
		for row := b.Rows - 1; row >= 0; row-- {
			blk := b.Cells[row][col]
			if blk == nil {
				continue
			}
			if blk.Marked {
				removed++
				continue
			}
			b.Cells[row][col] = nil
			b.Cells[write][col] = blk
			write--
		}
		for row := write; row >= 0; row-- {
			b.Cells[row][col] = nil
		}
	}
	return removed
}

// AddStoneRow pushes every column up one row and fills the bottom row with
// stone blocks. A block pushed past the top of the grid is lost; the
// overflow loss condition only applies to piece placement.
func (b *Board) AddStoneRow() {
	for row := 1; row < b.Rows; row++ {
		for col := 0; col < b.Cols; col++ {
			b.Cells[row-1][col] = b.Cells[row][col]
		}
	}
	for col := 0; col < b.Cols; col++ {
		b.Cells[b.Rows-1][col] = &Block{Kind: BlockStone, Letter: LetterStone}
	}
}

// ClearColumn marks and removes the tallest column when col is negative,
// otherwise the given column. Returns removed count.
func (b *Board) ClearColumn(col int) int {
	if col < 0 {
		best, bestH := 0, -1
		for c := 0; c < b.Cols; c++ {
			if h := b.ColumnHeight(c); h > bestH {
				best, bestH = c, h
			}
		}
		col = best
	}
	for row := 0; row < b.Rows; row++ {
		if blk := b.Cells[row][col]; blk != nil {
			blk.Marked = true
		}
	}
	return b.Collapse()
}

// ClearStones removes every stone block from the board.
func (b *Board) ClearStones() int {
	for row := 0; row < b.Rows; row++ {
		for col := 0; col < b.Cols; col++ {
			if blk := b.Cells[row][col]; blk != nil && blk.Kind == BlockStone {
				blk.Marked = true
			}
		}
	}
	return b.Collapse()
}

// ClearPowers removes every power block from the board.
func (b *Board) ClearPowers() int {
	for row := 0; row < b.Rows; row++ {
		for col := 0; col < b.Cols; col++ {
			if blk := b.Cells[row][col]; blk != nil && blk.Kind == BlockPower {
				blk.Marked = true
			}
		}
	}
	return b.Collapse()
}

// OccupiedCount is the total number of non-empty cells.
func (b *Board) OccupiedCount() int {
	n := 0
	for row := range b.Cells {
		for _, blk := range b.Cells[row] {
			if blk != nil {
				n++
			}
		}
	}
	return n
}

// Snapshot flattens the grid into a plain serializable form for the
// game-state event: one string per cell, "" for empty.
func (b *Board) Snapshot() [][]string {
	out := make([][]string, b.Rows)
	for r := range b.Cells {
		out[r] = make([]string, b.Cols)
		for c, blk := range b.Cells[r] {
			if blk != nil {
				out[r][c] = blk.Letter
			}
		}
	}
	return out
}
