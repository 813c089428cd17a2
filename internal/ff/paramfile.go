package ff

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Selection names one parameter to optimize by its position in the force
// field file.
type Selection struct {
	Row           int
	Col           int
	AllowNegative bool
}

// ReadParamFile parses a parameter selection file. Each line holds
// "row col" optionally followed by "allowneg", "neg" or "negative"; '#'
// starts a comment.
func ReadParamFile(r io.Reader) ([]Selection, error) {
	var sels []Selection
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line, _, _ := strings.Cut(scanner.Text(), "#")
		cols := strings.Fields(line)
		if len(cols) == 0 {
			continue
		}
		if len(cols) < 2 {
			return nil, fmt.Errorf("line %d: expected row and column", lineNo)
		}
		row, err := strconv.Atoi(cols[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad row: %w", lineNo, err)
		}
		col, err := strconv.Atoi(cols[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad column: %w", lineNo, err)
		}
		sel := Selection{Row: row, Col: col}
		for _, arg := range cols[2:] {
			switch arg {
			case "allowneg", "neg", "negative":
				sel.AllowNegative = true
			}
		}
		sels = append(sels, sel)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}
	return sels, nil
}
