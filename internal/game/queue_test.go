// internal/game/queue_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPiecesLengthInvariant(t *testing.T) {
	q := NewNextPieces(NewGenerator(1))
	assert.Equal(t, NextPiecesLength, q.Len())

	for i := 0; i < 20; i++ {
		p := q.Dequeue()
		require.NotNil(t, p)
		assert.Equal(t, NextPiecesLength, q.Len())
	}
}

func TestNextPiecesDequeueOrder(t *testing.T) {
	q := NewNextPieces(NewGenerator(7))
	ahead := q.Peek()
	assert.Same(t, ahead[0], q.Dequeue())
	assert.Same(t, ahead[1], q.Dequeue())
	assert.Same(t, ahead[2], q.Dequeue())
}

func TestGeneratorDeterministic(t *testing.T) {
	g1 := NewGenerator(42)
	g2 := NewGenerator(42)
	for i := 0; i < 50; i++ {
		p1 := g1.NextPiece(SpawnCol)
		p2 := g2.NextPiece(SpawnCol)
		for j := 0; j < PieceSize; j++ {
			assert.Equal(t, p1.Blocks[j].Letter, p2.Blocks[j].Letter)
			assert.Equal(t, p1.Blocks[j].Kind, p2.Blocks[j].Kind)
		}
	}
}

func TestGeneratorPowerPiecesAreUniform(t *testing.T) {
	g := NewGenerator(3)
	for i := 0; i < 200; i++ {
		p := g.NextPiece(SpawnCol)
		first := p.Blocks[0]
		if first.Kind != BlockPower {
			continue
		}
		// A power piece is three identical blocks within level bounds.
		require.GreaterOrEqual(t, first.PowerLevel, 1)
		require.LessOrEqual(t, first.PowerLevel, MaxPowerLevel)
		for _, blk := range p.Blocks {
			assert.Equal(t, first.Letter, blk.Letter)
			assert.Equal(t, first.PowerType, blk.PowerType)
			assert.Equal(t, first.PowerLevel, blk.PowerLevel)
		}
	}
}

func TestPowerBarEvictsOldestAtCapacity(t *testing.T) {
	bar := NewPowerBar()
	items := make([]*Block, 0, PowerBarCapacity+1)
	for i := 0; i <= PowerBarCapacity; i++ {
		items = append(items, &Block{Kind: BlockPower, Letter: LetterAttack, PowerType: PowerAttack, PowerLevel: 1 + i%MaxPowerLevel})
	}

	for i := 0; i < PowerBarCapacity; i++ {
		assert.Nil(t, bar.Enqueue(items[i]))
	}
	assert.Equal(t, PowerBarCapacity, bar.Len())

	// Item nine evicts the oldest; the count stays at capacity.
	evicted := bar.Enqueue(items[PowerBarCapacity])
	require.Same(t, items[0], evicted)
	assert.Equal(t, PowerBarCapacity, bar.Len())
	assert.Same(t, items[1], bar.Dequeue())
}

func TestPowerBarDequeueEmpty(t *testing.T) {
	bar := NewPowerBar()
	assert.Nil(t, bar.Dequeue())
	bar.Enqueue(NewDiamond(DiamondRemoveStones))
	bar.Clear()
	assert.Zero(t, bar.Len())
	assert.Nil(t, bar.Dequeue())
}

func TestPieceCycle(t *testing.T) {
	p := pieceOf("A", "D", "E")
	p.Cycle()
	assert.Equal(t, "E", p.Blocks[0].Letter)
	assert.Equal(t, "A", p.Blocks[1].Letter)
	assert.Equal(t, "D", p.Blocks[2].Letter)

	p.Cycle()
	p.Cycle()
	assert.Equal(t, "A", p.Blocks[0].Letter)
}

func TestPieceMovesRespectBounds(t *testing.T) {
	b := NewBoard()
	p := pieceOf("A", "D", "E")
	p.Col = 0
	assert.False(t, p.MoveLeft(b))
	assert.True(t, p.MoveRight(b))
	assert.Equal(t, 1, p.Col)

	// A blocked destination column is a no-op.
	b.Cells[p.Row+1][2] = plain("S")
	assert.False(t, p.MoveRight(b))
	assert.Equal(t, 1, p.Col)
}

func TestPieceSoftDropStopsOnStack(t *testing.T) {
	b := NewBoard()
	b.Cells[BoardRows-1][SpawnCol] = plain("T")
	p := pieceOf("A", "D", "E")

	drops := 0
	for p.SoftDrop(b) {
		drops++
	}
	// The bottom block rests directly above the stack.
	assert.Equal(t, BoardRows-2, p.Row+PieceSize-1)
	assert.Greater(t, drops, 0)
}
