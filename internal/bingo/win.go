package bingo

// winLines is the number of complete lines required for bingo. This is the
// double-line house rule: one completed row is not enough.
const winLines = 2

// lines returns the 12 cell paths that can complete: 5 rows, 5 columns and
// both diagonals. Coordinates are (row, col) pairs.
func lines() [][Size][2]int {
	paths := make([][Size][2]int, 0, 2*Size+2)
	for row := 0; row < Size; row++ {
		var p [Size][2]int
		for col := 0; col < Size; col++ {
			p[col] = [2]int{row, col}
		}
		paths = append(paths, p)
	}
	for col := 0; col < Size; col++ {
		var p [Size][2]int
		for row := 0; row < Size; row++ {
			p[row] = [2]int{row, col}
		}
		paths = append(paths, p)
	}
	var main, anti [Size][2]int
	for i := 0; i < Size; i++ {
		main[i] = [2]int{i, i}
		anti[i] = [2]int{i, Size - 1 - i}
	}
	return append(paths, main, anti)
}

// CompleteLines counts lines whose every cell is Free or Marked.
func CompleteLines(card Card) int {
	complete := 0
	for _, path := range lines() {
		done := true
		for _, pos := range path {
			if !card[pos[0]][pos[1]].Filled() {
				done = false
				break
			}
		}
		if done {
			complete++
		}
	}
	return complete
}

// HasBingo reports whether the card satisfies the double-line win rule.
func HasBingo(card Card) bool {
	return CompleteLines(card) >= winLines
}
