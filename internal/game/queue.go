package game

// NextPiecesLength is the fixed look-ahead each seat sees.
const NextPiecesLength = 3

// NextPieces feeds a seat's upcoming pieces. The queue length is invariant:
// every dequeue immediately rolls a replacement from the generator.
type NextPieces struct {
	gen    *Generator
	pieces []*Piece
}

// NewNextPieces fills the look-ahead from gen.
func NewNextPieces(gen *Generator) *NextPieces {
	q := &NextPieces{gen: gen, pieces: make([]*Piece, 0, NextPiecesLength)}
	for i := 0; i < NextPiecesLength; i++ {
		q.pieces = append(q.pieces, gen.NextPiece(SpawnCol))
	}
	return q
}

// Dequeue pops the oldest piece and refills the tail.
func (q *NextPieces) Dequeue() *Piece {
	p := q.pieces[0]
	copy(q.pieces, q.pieces[1:])
	q.pieces[len(q.pieces)-1] = q.gen.NextPiece(SpawnCol)
	return p
}

// Len is always NextPiecesLength.
func (q *NextPieces) Len() int { return len(q.pieces) }

// Peek returns the queued pieces without consuming them.
func (q *NextPieces) Peek() []*Piece {
	out := make([]*Piece, len(q.pieces))
	copy(out, q.pieces)
	return out
}

// PowerBarCapacity bounds the per-seat item bar.
const PowerBarCapacity = 8

// PowerBar is the bounded FIFO of collected power and diamond items.
// Enqueueing past capacity evicts the oldest item.
type PowerBar struct {
	items []*Block
	cap   int
}

// NewPowerBar returns an empty bar with the default capacity.
func NewPowerBar() *PowerBar {
	return &PowerBar{cap: PowerBarCapacity}
}

// Enqueue appends an item, evicting the oldest first when full. Returns the
// evicted item, if any.
func (pb *PowerBar) Enqueue(item *Block) *Block {
	var evicted *Block
	if len(pb.items) >= pb.cap {
		evicted = pb.items[0]
		pb.items = pb.items[1:]
	}
	pb.items = append(pb.items, item)
	return evicted
}

// Peek returns the oldest item without consuming it, or nil when empty.
func (pb *PowerBar) Peek() *Block {
	if len(pb.items) == 0 {
		return nil
	}
	return pb.items[0]
}

// Dequeue pops the oldest item, or nil when empty.
func (pb *PowerBar) Dequeue() *Block {
	if len(pb.items) == 0 {
		return nil
	}
	item := pb.items[0]
	pb.items = pb.items[1:]
	return item
}

// Len is the current item count.
func (pb *PowerBar) Len() int { return len(pb.items) }

// Clear drops every item (remove-powers attacks and game end).
func (pb *PowerBar) Clear() { pb.items = nil }

// Items returns a copy for snapshots.
func (pb *PowerBar) Items() []*Block {
	out := make([]*Block, len(pb.items))
	copy(out, pb.items)
	return out
}
