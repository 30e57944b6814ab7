package game

import (
	"math/rand"
	"sync"
)

// BlockKind is the tagged variant discriminator for a block.
type BlockKind string

const (
	BlockPlain   BlockKind = "plain"
	BlockPower   BlockKind = "power"
	BlockDiamond BlockKind = "diamond"
	BlockStone   BlockKind = "stone" // garbage from attacks, never matches
)

// PowerType distinguishes the two power letters.
type PowerType string

const (
	PowerAttack  PowerType = "attack"
	PowerDefense PowerType = "defense"
)

// Letters. Plain letters are common; the two power letters spawn as whole
// power pieces with fixed rarity; the diamond letter is only ever minted by
// removal thresholds, never rolled.
const (
	LetterAttack  = "X"
	LetterDefense = "O"
	LetterDiamond = "*"
	LetterStone   = "#"

	// SpecialWord in a straight line (any direction) is its own match kind.
	SpecialWord = "WIZARD"
)

// PlainLetters is the rollable alphabet.
var PlainLetters = []string{"A", "D", "E", "I", "R", "S", "T", "W", "Z"}

// PowerPieceRarity: one in N generated pieces is a power piece.
const PowerPieceRarity = 8

// MaxPowerLevel bounds power piece levels (1..MaxPowerLevel).
const MaxPowerLevel = 3

// Block is one cell's content. The zero value is never used; empty cells are
// nil in the board grid.
type Block struct {
	Kind       BlockKind `json:"kind"`
	Letter     string    `json:"letter"`
	PowerType  PowerType `json:"power_type,omitempty"`
	PowerLevel int       `json:"power_level,omitempty"`

	// Diamond holds the bonus kind for diamond blocks.
	Diamond DiamondKind `json:"diamond,omitempty"`

	// Marked flags the block for removal between the match scan and the
	// collapse pass, so clients can animate before cells disappear.
	Marked bool `json:"marked,omitempty"`
}

// Matchable reports whether the block participates in letter runs.
func (b *Block) Matchable() bool {
	return b != nil && (b.Kind == BlockPlain || b.Kind == BlockPower)
}

// PieceSize is the number of stacked blocks in a falling piece.
const PieceSize = 3

// Piece is a falling unit of three vertically stacked blocks anchored at
// (Row, Col); Blocks[0] is the top block.
type Piece struct {
	Blocks [PieceSize]*Block `json:"blocks"`
	Row    int               `json:"row"` // row of the top block
	Col    int               `json:"col"`
}

// Cycle rotates the block order within the piece: bottom moves to top.
func (p *Piece) Cycle() {
	last := p.Blocks[PieceSize-1]
	copy(p.Blocks[1:], p.Blocks[:PieceSize-1])
	p.Blocks[0] = last
}

// MoveLeft shifts the piece one column left if the target cells are in
// bounds and unoccupied. Invalid moves are no-ops.
func (p *Piece) MoveLeft(b *Board) bool {
	return p.shift(b, -1)
}

// MoveRight shifts the piece one column right under the same rules.
func (p *Piece) MoveRight(b *Board) bool {
	return p.shift(b, 1)
}

func (p *Piece) shift(b *Board, delta int) bool {
	col := p.Col + delta
	if col < 0 || col >= b.Cols {
		return false
	}
	for i := 0; i < PieceSize; i++ {
		row := p.Row + i
		if row < 0 || row >= b.Rows {
			continue
		}
		if b.Cells[row][col] != nil {
			return false
		}
	}
	p.Col = col
	return true
}

// SoftDrop advances the piece one row down if the cell below its bottom
// block is free. Returns false when the piece is resting.
func (p *Piece) SoftDrop(b *Board) bool {
	below := p.Row + PieceSize
	if below >= b.Rows {
		return false
	}
	if b.Cells[below][p.Col] != nil {
		return false
	}
	p.Row++
	return true
}

// Generator rolls weighted pieces from an injectable random source so piece
// sequences are reproducible in tests.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator seeds a generator. The same seed always yields the same
// piece sequence.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// NextPiece rolls a new piece spawning at the top hidden row.
func (g *Generator) NextPiece(spawnCol int) *Piece {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := &Piece{Row: 0, Col: spawnCol}
	if g.rng.Intn(PowerPieceRarity) == 0 {
		// Whole power piece: one letter, one level, all three blocks.
		letter, ptype := LetterAttack, PowerAttack
		if g.rng.Intn(2) == 0 {
			letter, ptype = LetterDefense, PowerDefense
		}
		level := 1 + g.rng.Intn(MaxPowerLevel)
		for i := range p.Blocks {
			p.Blocks[i] = &Block{Kind: BlockPower, Letter: letter, PowerType: ptype, PowerLevel: level}
		}
		return p
	}
	for i := range p.Blocks {
		p.Blocks[i] = &Block{Kind: BlockPlain, Letter: PlainLetters[g.rng.Intn(len(PlainLetters))]}
	}
	return p
}

// NewDiamond mints a threshold-bonus diamond block.
func NewDiamond(kind DiamondKind) *Block {
	return &Block{Kind: BlockDiamond, Letter: LetterDiamond, Diamond: kind}
}
