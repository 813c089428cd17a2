package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TraceEntry is one evaluated force field, stored as a JSON line in
// trace.jsonl.
type TraceEntry struct {
	// Step is the optimization step the evaluation belongs to. Evaluations
	// of the starting force field are step 0.
	Step      int       `json:"step"`
	Method    string    `json:"method"`
	X2        float64   `json:"x2"`
	Timestamp time.Time `json:"timestamp"`
}

// TraceWriter appends trace entries to a run's trace file. It is safe for
// concurrent use.
type TraceWriter struct {
	mu   sync.Mutex
	f    *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
	path string
}

// OpenTrace opens the trace of runID. With appendTo set, entries are added
// to an existing trace; otherwise the trace starts empty.
func (fs *FSStore) OpenTrace(runID string, appendTo bool) (*TraceWriter, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	dir := fs.RunDir(runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(dir, traceFile)
	mode := os.O_TRUNC
	if appendTo {
		mode = os.O_APPEND
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|mode, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace of run %s: %w", runID, err)
	}
	fs.logger.Debug("Opened trace", "run_id", runID, "append", appendTo)

	buf := bufio.NewWriter(f)
	return &TraceWriter{f: f, buf: buf, enc: json.NewEncoder(buf), path: path}, nil
}

// Write buffers entry as one JSON line; it reaches the file on Flush or Close.
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if err := tw.enc.Encode(entry); err != nil {
		return fmt.Errorf("trace entry for %q: %w", entry.Method, err)
	}
	return nil
}

// Flush writes buffered entries and syncs the file, so a crashed run keeps
// every completed step.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if err := tw.buf.Flush(); err != nil {
		return fmt.Errorf("flush trace %s: %w", tw.path, err)
	}
	return tw.f.Sync()
}

func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return errors.Join(tw.buf.Flush(), tw.f.Close())
}

func (tw *TraceWriter) Path() string { return tw.path }

// ReadTrace returns every entry of runID's trace in write order.
func (fs *FSStore) ReadTrace(runID string) ([]TraceEntry, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(fs.RunDir(runID), traceFile))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("open trace of run %s: %w", runID, err)
	}
	defer file.Close()

	return readTrace(file)
}

func readTrace(r io.Reader) ([]TraceEntry, error) {
	var out []TraceEntry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry TraceEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("trace line %d: %w", line, err)
		}
		out = append(out, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan trace: %w", err)
	}
	return out, nil
}

// BestPerStep returns the lowest x2 seen up to and including each step, in
// step order. A step without entries repeats the previous value.
func BestPerStep(entries []TraceEntry) []float64 {
	if len(entries) == 0 {
		return nil
	}
	last := 0
	for _, e := range entries {
		last = max(last, e.Step)
	}

	best := make([]float64, last+1)
	for i := range best {
		best[i] = math.Inf(1)
	}
	for _, e := range entries {
		if e.Step >= 0 {
			best[e.Step] = min(best[e.Step], e.X2)
		}
	}
	for i := 1; i < len(best); i++ {
		best[i] = min(best[i], best[i-1])
	}
	return best
}
