package board

import "strings"

// Size is the width and height of the board
const Size = 7

// Cell is the state of one board position
type Cell int

const (
	Empty Cell = iota
	Peg
	// Invalid marks positions outside the cross. They never change.
	Invalid
)

func (c Cell) String() string {
	switch c {
	case Empty:
		return "."
	case Peg:
		return "o"
	default:
		return " "
	}
}

// Coord addresses a cell by zero-based row and column
type Coord struct {
	Row int
	Col int
}

// InBounds reports whether c lies on the 7x7 grid
func (c Coord) InBounds() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

// Board is a peg solitaire grid. The zero value is all Empty; use New.
type Board struct {
	cells [Size][Size]Cell
}

// New returns the standard cross layout with every playable cell holding a peg
// except the center.
func New() *Board {
	b := &Board{}
	for i := 0; i < Size; i++ {
		for j := 0; j < Size; j++ {
			if (i >= 2 && i <= 4) || (j >= 2 && j <= 4) {
				b.cells[i][j] = Peg
			} else {
				b.cells[i][j] = Invalid
			}
		}
	}
	b.cells[3][3] = Empty
	return b
}

// Cell returns the state at c, or Invalid when c is off the grid.
func (b *Board) Cell(c Coord) Cell {
	if !c.InBounds() {
		return Invalid
	}
	return b.cells[c.Row][c.Col]
}

// Set overwrites one cell. Invalid cells are left untouched.
func (b *Board) Set(c Coord, v Cell) {
	if !c.InBounds() || b.cells[c.Row][c.Col] == Invalid || v == Invalid {
		return
	}
	b.cells[c.Row][c.Col] = v
}

// Validate reports whether from->to is a legal jump on b. It never mutates b.
func (b *Board) Validate(from, to Coord) bool {
	if !from.InBounds() || !to.InBounds() {
		return false
	}
	if b.cells[from.Row][from.Col] != Peg || b.cells[to.Row][to.Col] != Empty {
		return false
	}

	dr, dc := abs(from.Row-to.Row), abs(from.Col-to.Col)
	straight := (dr == 0 && dc == 2) || (dc == 0 && dr == 2)
	if !straight {
		return false
	}
	mid := midpoint(from, to)
	return b.cells[mid.Row][mid.Col] == Peg
}

// Apply performs the jump without checking it. Callers must Validate first;
// TryMove does both.
func (b *Board) Apply(from, to Coord) {
	mid := midpoint(from, to)
	b.cells[from.Row][from.Col] = Empty
	b.cells[to.Row][to.Col] = Peg
	b.cells[mid.Row][mid.Col] = Empty
}

// TryMove applies m if it is legal and reports whether it did.
func (b *Board) TryMove(m Move) bool {
	if !b.Validate(m.From, m.To) {
		return false
	}
	b.Apply(m.From, m.To)
	return true
}

// PegCount returns the number of pegs left
func (b *Board) PegCount() int {
	n := 0
	for i := range b.cells {
		for j := range b.cells[i] {
			if b.cells[i][j] == Peg {
				n++
			}
		}
	}
	return n
}

// Moves lists every legal jump in row-major order of the source cell.
func (b *Board) Moves() []Move {
	var moves []Move
	steps := []Coord{{-2, 0}, {2, 0}, {0, -2}, {0, 2}}
	for i := 0; i < Size; i++ {
		for j := 0; j < Size; j++ {
			from := Coord{i, j}
			for _, s := range steps {
				to := Coord{i + s.Row, j + s.Col}
				if b.Validate(from, to) {
					moves = append(moves, Move{From: from, To: to})
				}
			}
		}
	}
	return moves
}

// Solved reports whether exactly one peg remains
func (b *Board) Solved() bool { return b.PegCount() == 1 }

// Stuck reports whether no legal move is left
func (b *Board) Stuck() bool { return len(b.Moves()) == 0 }

// String renders the grid with row letters and column numbers.
func (b *Board) String() string {
	var sb strings.Builder
	sb.WriteString("  1 2 3 4 5 6 7\n")
	for i := 0; i < Size; i++ {
		sb.WriteByte(byte('A' + i))
		for j := 0; j < Size; j++ {
			sb.WriteByte(' ')
			sb.WriteString(b.cells[i][j].String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func midpoint(from, to Coord) Coord {
	return Coord{(from.Row + to.Row) / 2, (from.Col + to.Col) / 2}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
