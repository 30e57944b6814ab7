// internal/game/board_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plain(letter string) *Block {
	return &Block{Kind: BlockPlain, Letter: letter}
}

func pieceOf(letters ...string) *Piece {
	p := &Piece{Row: 0, Col: SpawnCol}
	for i, l := range letters {
		p.Blocks[i] = plain(l)
	}
	return p
}

func TestPlaceLandsOnStackTop(t *testing.T) {
	b := NewBoard()
	require.NoError(t, b.Place(pieceOf("A", "D", "E")))

	// Blocks keep their vertical order, resting on the floor.
	assert.Equal(t, "A", b.Cells[BoardRows-3][SpawnCol].Letter)
	assert.Equal(t, "D", b.Cells[BoardRows-2][SpawnCol].Letter)
	assert.Equal(t, "E", b.Cells[BoardRows-1][SpawnCol].Letter)

	require.NoError(t, b.Place(pieceOf("R", "S", "T")))
	assert.Equal(t, "T", b.Cells[BoardRows-4][SpawnCol].Letter)
	assert.Equal(t, 6, b.ColumnHeight(SpawnCol))
}

func TestPlaceOverflow(t *testing.T) {
	b := NewBoard()
	// Fill the column up into the hidden rows.
	for r := PieceSize - 1; r < BoardRows; r++ {
		b.Cells[r][SpawnCol] = plain("A")
	}
	err := b.Place(pieceOf("D", "E", "I"))
	assert.ErrorIs(t, err, ErrBoardOverflow)

	// Exactly enough room still fits.
	b2 := NewBoard()
	for r := PieceSize; r < BoardRows; r++ {
		b2.Cells[r][SpawnCol] = plain("A")
	}
	assert.NoError(t, b2.Place(pieceOf("D", "E", "I")))
}

func TestCollapsePreservesColumnOrder(t *testing.T) {
	b := NewBoard()
	// Column 0 bottom-up: A D E R S T; remove D and S.
	letters := []string{"A", "D", "E", "R", "S", "T"}
	for i, l := range letters {
		b.Cells[BoardRows-1-i][0] = plain(l)
	}
	b.Cells[BoardRows-2][0].Marked = true
	b.Cells[BoardRows-5][0].Marked = true

	removed := b.Collapse()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 4, b.ColumnHeight(0))

	// Survivors settle in their original relative order.
	var got []string
	for r := BoardRows - 1; r >= 0; r-- {
		if blk := b.Cells[r][0]; blk != nil {
			got = append(got, blk.Letter)
		}
	}
	assert.Equal(t, []string{"A", "E", "R", "T"}, got)
}

func TestCollapseTotalCountIndependentOfColumns(t *testing.T) {
	b := NewBoard()
	b.Cells[10][0] = plain("A")
	b.Cells[10][3] = plain("A")
	b.Cells[10][5] = plain("A")
	b.MarkCells([]Cell{{10, 0}, {10, 3}, {10, 5}})
	assert.Equal(t, 3, b.Collapse())
	assert.Equal(t, 0, b.OccupiedCount())
}

func TestAddStoneRow(t *testing.T) {
	b := NewBoard()
	b.Cells[BoardRows-1][2] = plain("W")
	b.AddStoneRow()

	assert.Equal(t, BlockStone, b.Cells[BoardRows-1][2].Kind)
	assert.Equal(t, "W", b.Cells[BoardRows-2][2].Letter)
	for col := 0; col < BoardCols; col++ {
		require.NotNil(t, b.Cells[BoardRows-1][col])
		assert.Equal(t, BlockStone, b.Cells[BoardRows-1][col].Kind)
	}
}

func TestClearColumnPicksTallest(t *testing.T) {
	b := NewBoard()
	b.Cells[BoardRows-1][1] = plain("A")
	b.Cells[BoardRows-1][4] = plain("A")
	b.Cells[BoardRows-2][4] = plain("D")

	removed := b.ClearColumn(-1)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, b.ColumnHeight(4))
	assert.Equal(t, 1, b.ColumnHeight(1))
}

func TestClearStonesAndPowers(t *testing.T) {
	b := NewBoard()
	b.Cells[BoardRows-1][0] = &Block{Kind: BlockStone, Letter: LetterStone}
	b.Cells[BoardRows-2][0] = plain("A")
	b.Cells[BoardRows-1][1] = &Block{Kind: BlockPower, Letter: LetterAttack, PowerType: PowerAttack, PowerLevel: 1}

	assert.Equal(t, 1, b.ClearStones())
	assert.Equal(t, 1, b.ClearPowers())
	assert.Equal(t, 1, b.OccupiedCount())
	assert.Equal(t, "A", b.Cells[BoardRows-1][0].Letter)
}

func TestCopyIsDetached(t *testing.T) {
	b := NewBoard()
	b.Cells[BoardRows-1][0] = plain("A")

	cp := b.Copy()
	cp.Cells[BoardRows-1][0].Marked = true
	cp.Cells[BoardRows-1][1] = plain("D")

	assert.False(t, b.Cells[BoardRows-1][0].Marked)
	assert.Nil(t, b.Cells[BoardRows-1][1])
}
