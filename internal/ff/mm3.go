package ff

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Parameter columns of an MM3* substructure line.
var mm3Columns = [3][2]int{
	{23, 33},
	{33, 43},
	{43, 53},
}

// mm3RowTypes maps the two-character row code of a substructure line to the
// parameter type of each of its three value columns. An empty entry means the
// column is not optimizable.
var mm3RowTypes = map[string][3]string{
	" 1": {PTypeBondEq, PTypeBondForce, PTypeCharge},
	" 2": {PTypeAngleEq, PTypeAngleForce, ""},
	" 3": {PTypeStretchBend, "", ""},
	" 4": {PTypeTorsion, PTypeTorsion, PTypeTorsion},
	" 5": {PTypeImproper1, PTypeImproper2, ""},
}

// MM3 is a force field backed by an MM3* file. Only the substructure marked
// OPT is parsed; every other line is carried through Export unchanged.
type MM3 struct {
	FF
	Path  string
	lines []string
}

// NewMM3 returns an empty MM3 force field bound to path.
func NewMM3(path string) *MM3 {
	return &MM3{Path: path}
}

// Import reads Path and replaces Params with the parameters found in the
// optimizable substructure. Row is the 1-based line number and Col the
// 1-based value column.
func (m *MM3) Import() error {
	f, err := os.Open(m.Path)
	if err != nil {
		return fmt.Errorf("failed to open force field: %w", err)
	}
	defer f.Close()

	var (
		lines  []string
		params []Parameter
		inSub  bool
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		row := len(lines)

		switch {
		case strings.HasPrefix(line, " C") && strings.Contains(line, "OPT"):
			inSub = true
			continue
		case inSub && strings.HasPrefix(line, " 9"):
			inSub = false
			continue
		case !inSub || len(line) < 2:
			continue
		}

		types, ok := mm3RowTypes[line[:2]]
		if !ok {
			continue
		}
		for i, ptype := range types {
			if ptype == "" {
				continue
			}
			field := mm3Field(line, i)
			if field == "" {
				continue
			}
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return fmt.Errorf("%s:%d: bad value in column %d: %w", m.Path, row, i+1, err)
			}
			params = append(params, Parameter{
				Row:   row,
				Col:   i + 1,
				PType: ptype,
				Value: value,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read force field: %w", err)
	}

	m.lines = lines
	m.Params = params
	return nil
}

// Export writes params (or m.Params when params is nil) into Path.
func (m *MM3) Export(params []Parameter) error {
	return m.ExportTo(m.Path, params)
}

// ExportTo writes the imported file to path with the values of params
// substituted into their columns. The write goes through a temp file and a
// rename so a concurrent reader never sees a partial file.
func (m *MM3) ExportTo(path string, params []Parameter) error {
	if m.lines == nil {
		return fmt.Errorf("force field %s was not imported", m.Path)
	}
	if params == nil {
		params = m.Params
	}

	lines := make([]string, len(m.lines))
	copy(lines, m.lines)
	for _, p := range params {
		if p.Row < 1 || p.Row > len(lines) || p.Col < 1 || p.Col > len(mm3Columns) {
			return fmt.Errorf("parameter %s outside of force field", p)
		}
		lines[p.Row-1] = mm3Replace(lines[p.Row-1], p.Col-1, p.Value)
	}

	tempPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tempPath, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write temp force field: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename force field: %w", err)
	}
	return nil
}

// CopyAttributes returns a new MM3 sharing this file's path and layout but
// carrying no parameters or evaluation.
func (m *MM3) CopyAttributes() *MM3 {
	lines := make([]string, len(m.lines))
	copy(lines, m.lines)
	return &MM3{Path: m.Path, lines: lines}
}

func mm3Field(line string, col int) string {
	start, end := mm3Columns[col][0], mm3Columns[col][1]
	if len(line) <= start {
		return ""
	}
	if len(line) < end {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}

func mm3Replace(line string, col int, value float64) string {
	start, end := mm3Columns[col][0], mm3Columns[col][1]
	if len(line) < end {
		line += strings.Repeat(" ", end-len(line))
	}
	return line[:start] + fmt.Sprintf("%10.4f", value) + line[end:]
}
