package board

import (
	"fmt"
	"strings"
)

// Move is a jump from one cell to another two cells away.
type Move struct {
	From Coord
	To   Coord
}

// String formats m the way ParseMove reads it, e.g. "A3-A5".
func (m Move) String() string {
	return m.From.String() + "-" + m.To.String()
}

// String formats c as a row letter followed by a 1-based column digit.
func (c Coord) String() string {
	if !c.InBounds() {
		return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
	}
	return string([]byte{byte('A' + c.Row), byte('1' + c.Col)})
}

// ParseCoord decodes "A1".."G7". Anything else, including lowercase rows and
// coordinates off the board, is rejected.
func ParseCoord(s string) (Coord, bool) {
	if len(s) != 2 {
		return Coord{}, false
	}
	r, c := s[0], s[1]
	if r < 'A' || r > 'Z' || c < '1' || c > '9' {
		return Coord{}, false
	}
	coord := Coord{Row: int(r - 'A'), Col: int(c - '1')}
	if !coord.InBounds() {
		return Coord{}, false
	}
	return coord, true
}

// ParseMove decodes "<coord>-<coord>". It returns false for any malformed or
// out of range input; there are no partial results.
func ParseMove(command string) (Move, bool) {
	parts := strings.Split(command, "-")
	if len(parts) != 2 {
		return Move{}, false
	}
	from, ok := ParseCoord(parts[0])
	if !ok {
		return Move{}, false
	}
	to, ok := ParseCoord(parts[1])
	if !ok {
		return Move{}, false
	}
	return Move{From: from, To: to}, true
}
