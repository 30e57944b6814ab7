package game

import "sort"

// Cell is a board coordinate.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// directions covers all 8 axes as 4 canonical vectors; a run found forward
// along a vector is the same run found backward along its inverse, so
// scanning 4 vectors from every cell is order-independent and complete.
var directions = [4][2]int{
	{0, 1},  // east
	{1, 0},  // south
	{1, 1},  // southeast
	{1, -1}, // southwest
}

// MinRunLength is the shortest letter run eligible for removal.
const MinRunLength = 3

// FindMatches scans the visible rows for runs of MinRunLength or more
// identical letters along any of the 8 directions, merging overlapping runs.
// The result is sorted by (row, col) and independent of scan order.
func FindMatches(b *Board) []Cell {
	hits := make(map[Cell]struct{})
	for row := HiddenRows; row < b.Rows; row++ {
		for col := 0; col < b.Cols; col++ {
			start := b.Cells[row][col]
			if !start.Matchable() {
				continue
			}
			for _, d := range directions {
				run := runLength(b, row, col, d[0], d[1], start.Letter)
				if run < MinRunLength {
					continue
				}
				for i := 0; i < run; i++ {
					hits[Cell{Row: row + i*d[0], Col: col + i*d[1]}] = struct{}{}
				}
			}
		}
	}
	return sortCells(hits)
}

// runLength counts identical matchable letters starting at (row, col) along
// (dr, dc), staying above the hidden rows.
func runLength(b *Board, row, col, dr, dc int, letter string) int {
	n := 0
	for {
		if row < HiddenRows || row >= b.Rows || col < 0 || col >= b.Cols {
			return n
		}
		blk := b.Cells[row][col]
		if !blk.Matchable() || blk.Letter != letter {
			return n
		}
		n++
		row += dr
		col += dc
	}
}

// FindSpecialWord scans for SpecialWord spelled in a straight line, forward
// or backward, along any of the 8 directions. Checked independently of
// ordinary runs and may co-occur with them.
func FindSpecialWord(b *Board) []Cell {
	hits := make(map[Cell]struct{})
	n := len(SpecialWord)
	for row := HiddenRows; row < b.Rows; row++ {
		for col := 0; col < b.Cols; col++ {
			for _, d := range directions {
				if wordAt(b, row, col, d[0], d[1], SpecialWord) || wordAt(b, row, col, d[0], d[1], reverse(SpecialWord)) {
					for i := 0; i < n; i++ {
						hits[Cell{Row: row + i*d[0], Col: col + i*d[1]}] = struct{}{}
					}
				}
			}
		}
	}
	return sortCells(hits)
}

func wordAt(b *Board, row, col, dr, dc int, word string) bool {
	for i := 0; i < len(word); i++ {
		r, c := row+i*dr, col+i*dc
		if r < HiddenRows || r >= b.Rows || c < 0 || c >= b.Cols {
			return false
		}
		blk := b.Cells[r][c]
		if !blk.Matchable() || blk.Letter != string(word[i]) {
			return false
		}
	}
	return true
}

func reverse(s string) string {
	out := []byte(s)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func sortCells(set map[Cell]struct{}) []Cell {
	cells := make([]Cell, 0, len(set))
	for c := range set {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
	return cells
}
