package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	runFile   = "run.json"
	traceFile = "trace.jsonl"
	bestFile  = "best.fld"
)

// FSStore keeps each run in its own directory, <baseDir>/runs/<runID>/,
// holding run.json, trace.jsonl and best.fld.
//
// Records are written with temp file + rename, so concurrent readers never
// see a partial record.
type FSStore struct {
	baseDir string
	logger  *slog.Logger
}

var _ Store = (*FSStore)(nil)

// NewFSStore creates baseDir if needed.
func NewFSStore(baseDir string, logger *slog.Logger) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir, logger: logger}, nil
}

func (fs *FSStore) runsDir() string {
	return filepath.Join(fs.baseDir, "runs")
}

// RunDir is the directory holding everything stored for runID.
func (fs *FSStore) RunDir(runID string) string {
	return filepath.Join(fs.runsDir(), runID)
}

// BestFFPath is where the best force field of runID is written.
func (fs *FSStore) BestFFPath(runID string) string {
	return filepath.Join(fs.RunDir(runID), bestFile)
}

func (fs *FSStore) runPath(runID string) string {
	return filepath.Join(fs.RunDir(runID), runFile)
}

func checkRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return fmt.Errorf("invalid run ID %q", runID)
	}
	return nil
}

func (fs *FSStore) SaveRun(run *Run) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if err := checkRunID(run.RunID); err != nil {
		return err
	}

	dir := fs.RunDir(run.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	finalPath := fs.runPath(run.RunID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp run file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename run file: %w", err)
	}

	fs.logger.Debug("Run saved", "run_id", run.RunID, "step", run.Step, "path", finalPath)
	return nil
}

func (fs *FSStore) LoadRun(runID string) (*Run, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}

	path := fs.runPath(runID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to deserialize run %s: %w", runID, err)
	}

	fs.logger.Debug("Run loaded", "run_id", runID, "path", path)
	return &run, nil
}

// ListRuns returns the runs ordered by timestamp, oldest first.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	entries, err := os.ReadDir(fs.runsDir())
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runID := entry.Name()
		if _, err := os.Stat(fs.runPath(runID)); os.IsNotExist(err) {
			continue
		}

		run, err := fs.LoadRun(runID)
		if err != nil {
			fs.logger.Warn("Failed to load run for listing", "run_id", runID, "error", err)
			continue
		}
		infos = append(infos, run.ToInfo())
	}

	slices.SortStableFunc(infos, func(a, b RunInfo) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	fs.logger.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

func (fs *FSStore) DeleteRun(runID string) error {
	if err := checkRunID(runID); err != nil {
		return err
	}

	dir := fs.RunDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	fs.logger.Debug("Run deleted", "run_id", runID, "path", dir)
	return nil
}
