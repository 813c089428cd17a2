package calc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Datum is a single calculated or reference observation.
type Datum struct {
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
	Value  float64 `json:"value"`
}

// Data is an ordered set of observations.
type Data []Datum

// ParseData reads "label weight value" triples, one per line. Blank lines and
// anything after '#' are ignored.
func ParseData(r io.Reader) (Data, error) {
	var data Data
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line, _, _ := strings.Cut(scanner.Text(), "#")
		cols := strings.Fields(line)
		if len(cols) == 0 {
			continue
		}
		if len(cols) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 columns, got %d", lineNo, len(cols))
		}
		weight, err := strconv.ParseFloat(cols[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad weight: %w", lineNo, err)
		}
		value, err := strconv.ParseFloat(cols[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad value: %w", lineNo, err)
		}
		data = append(data, Datum{Label: cols[0], Weight: weight, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return data, nil
}

// Index maps labels to observations. A repeated label keeps its last value.
func (d Data) Index() map[string]Datum {
	m := make(map[string]Datum, len(d))
	for _, datum := range d {
		m[datum.Label] = datum
	}
	return m
}
