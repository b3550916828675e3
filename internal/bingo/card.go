// Package bingo implements the 5x5 bingo card: generation from
// column-partitioned draws, cell marking, double-line win detection and
// text rendering for chat delivery.
package bingo

import (
	"encoding/json"
	"fmt"
	rand "math/rand/v2"
	"strings"
)

// Card dimensions and number pool
const (
	Size       = 5
	BandWidth  = 15
	MaxNumber  = Size * BandWidth // 75
	CenterCell = Size / 2
)

// Cell is a single card cell. Positive values are undrawn numbers;
// Free and Marked are sentinel states.
type Cell int

const (
	Marked Cell = 0
	Free   Cell = -1
)

// Filled reports whether the cell counts toward a completed line.
func (c Cell) Filled() bool {
	return c == Marked || c == Free
}

// MarshalJSON serializes sentinel cells as "FREE"/"MARKED" and numbers as
// plain integers, matching the snapshot file layout.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c {
	case Free:
		return json.Marshal("FREE")
	case Marked:
		return json.Marshal("MARKED")
	default:
		return json.Marshal(int(c))
	}
}

// UnmarshalJSON accepts either a number or one of the sentinel strings.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Cell(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid cell %q", string(data))
	}
	switch s {
	case "FREE":
		*c = Free
	case "MARKED":
		*c = Marked
	default:
		return fmt.Errorf("invalid cell %q", s)
	}
	return nil
}

// Card is a 5x5 grid in row-major order. The center cell is always Free.
type Card [Size][Size]Cell

// NewCard generates a card by drawing 5 distinct numbers per column from
// that column's 15-number band, then transposing to row-major order.
func NewCard(rng *rand.Rand) Card {
	var cols [Size][Size]Cell
	for col := 0; col < Size; col++ {
		low := col*BandWidth + 1
		for i, offset := range rng.Perm(BandWidth)[:Size] {
			cols[col][i] = Cell(low + offset)
		}
	}
	cols[CenterCell][CenterCell] = Free

	var card Card
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			card[row][col] = cols[col][row]
		}
	}
	return card
}

// Letter returns the column letter for a called number.
func Letter(n int) string {
	switch {
	case n >= 1 && n <= 15:
		return "B"
	case n <= 30:
		return "I"
	case n <= 45:
		return "N"
	case n <= 60:
		return "G"
	case n <= 75:
		return "O"
	}
	return "?"
}

// Call formats a called number in its letter-number form, e.g. "I-16".
func Call(n int) string {
	return fmt.Sprintf("%s-%d", Letter(n), n)
}

// Header is the column banner line every rendered card starts with.
const Header = "🇧 🇮 🇳 🇬 🇴"

// Rendering glyphs
const (
	markGlyph = "✅"
	freeGlyph = "🆓"
)

// Render formats the card for chat delivery. A non-zero last number adds a
// header line naming it in letter-number form.
func Render(card Card, last int) string {
	var b strings.Builder
	if last != 0 {
		fmt.Fprintf(&b, "🎯 Last number: %s\n", Call(last))
	}
	b.WriteString(Header)
	for row := 0; row < Size; row++ {
		b.WriteByte('\n')
		for col := 0; col < Size; col++ {
			if col > 0 {
				b.WriteString("  ")
			}
			switch cell := card[row][col]; cell {
			case Marked:
				b.WriteString(markGlyph)
			case Free:
				b.WriteString(freeGlyph)
			default:
				fmt.Fprintf(&b, "%2d", int(cell))
			}
		}
	}
	return b.String()
}
