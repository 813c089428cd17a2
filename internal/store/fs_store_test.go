package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/ffopt/internal/ff"
)

func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

func createTestRun(runID string) *Run {
	return &Run{
		RunID:      runID,
		BestMethod: ff.MethodNewton,
		BestParams: []ff.Parameter{
			{Row: 12, Col: 2, PType: ff.PTypeBondForce, Value: 4.61, Step: ff.Step{Size: 0.2}, Der1: -0.3, Der2: 0.8},
			{Row: 13, Col: 1, PType: ff.PTypeAngleEq, Value: 109.1, Step: ff.Step{Size: 1}},
		},
		BestX2:    0.0234,
		InitialX2: 0.5621,
		Step:      3,
		Timestamp: time.Now(),
		Config: RunConfig{
			FFPath:    "work/mm3.fld",
			Calculate: "./calc.sh",
			Reference: "./ref.sh",
			Method:    "central",
			PTypes:    []string{"bf", "ae"},
		},
	}
}

func TestNewFSStore(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "data")
	if _, err := NewFSStore(base, slog.Default()); err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if _, err := os.Stat(base); err != nil {
		t.Fatalf("Base directory was not created: %v", err)
	}
}

func TestSaveLoadRun(t *testing.T) {
	store, tempDir := setupTestStore(t)
	run := createTestRun(NewRunID())

	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	path := filepath.Join(tempDir, "runs", run.RunID, "run.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Run file was not created: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should have been renamed")
	}

	loaded, err := store.LoadRun(run.RunID)
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.BestX2 != run.BestX2 || loaded.InitialX2 != run.InitialX2 || loaded.Step != run.Step {
		t.Errorf("Loaded run differs: got %+v", loaded)
	}
	if len(loaded.BestParams) != 2 || loaded.BestParams[0] != run.BestParams[0] {
		t.Errorf("BestParams not preserved: %+v", loaded.BestParams)
	}
	if !loaded.Timestamp.Equal(run.Timestamp) {
		t.Errorf("Timestamp mismatch: %v vs %v", loaded.Timestamp, run.Timestamp)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("Loaded run should be valid: %v", err)
	}
}

func TestSaveRun_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)
	run := createTestRun(NewRunID())
	if err := store.SaveRun(run); err != nil {
		t.Fatal(err)
	}

	run.Step = 4
	run.BestX2 = 0.01
	if err := store.SaveRun(run); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadRun(run.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Step != 4 || loaded.BestX2 != 0.01 {
		t.Errorf("Expected overwritten run, got step %d x2 %v", loaded.Step, loaded.BestX2)
	}
}

func TestSaveRun_InvalidInput(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveRun(nil); err == nil {
		t.Error("Expected error for nil run")
	}
	for _, id := range []string{"", "..", "a/b"} {
		if err := store.SaveRun(createTestRun(id)); err == nil {
			t.Errorf("Expected error for run ID %q", id)
		}
	}
}

func TestLoadRun_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadRun("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.RunID != "missing" {
		t.Errorf("Expected NotFoundError for run 'missing', got %v", err)
	}
}

func TestLoadRun_Corrupt(t *testing.T) {
	store, tempDir := setupTestStore(t)
	dir := filepath.Join(tempDir, "runs", "broken")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.LoadRun("broken")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Expected a decode error, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	store, tempDir := setupTestStore(t)

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected no runs, got %d", len(infos))
	}

	now := time.Now()
	var ids []string
	for i := 0; i < 3; i++ {
		run := createTestRun(NewRunID())
		run.Timestamp = now.Add(-time.Duration(i) * time.Hour)
		run.Step = i
		if err := store.SaveRun(run); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, run.RunID)
	}

	// Directories without a record and stray files are skipped.
	os.MkdirAll(filepath.Join(tempDir, "runs", "empty"), 0755)
	os.WriteFile(filepath.Join(tempDir, "runs", "note.txt"), []byte("x"), 0644)

	infos, err = store.ListRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(infos))
	}
	// Oldest first.
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if infos[i].RunID != want {
			t.Errorf("infos[%d] = %s, want %s", i, infos[i].RunID, want)
		}
	}
	if infos[0].Params != 2 || infos[0].FFPath != "work/mm3.fld" {
		t.Errorf("Unexpected info: %+v", infos[0])
	}
}

func TestDeleteRun(t *testing.T) {
	store, _ := setupTestStore(t)
	run := createTestRun(NewRunID())
	if err := store.SaveRun(run); err != nil {
		t.Fatal(err)
	}
	tw, err := store.OpenTrace(run.RunID, false)
	if err != nil {
		t.Fatal(err)
	}
	tw.Write(TraceEntry{Step: 0, Method: ff.MethodInitial, X2: 1})
	tw.Close()

	if err := store.DeleteRun(run.RunID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := os.Stat(store.RunDir(run.RunID)); !os.IsNotExist(err) {
		t.Error("Run directory should be gone")
	}
	if err := store.DeleteRun(run.RunID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
	if err := store.DeleteRun(""); err == nil {
		t.Error("Expected error for empty run ID")
	}
}

func TestConcurrentSave(t *testing.T) {
	store, _ := setupTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run := createTestRun(fmt.Sprintf("run-%d", i))
			run.Step = i
			errs <- store.SaveRun(run)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent save failed: %v", err)
		}
	}
	infos, err := store.ListRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 10 {
		t.Errorf("Expected 10 runs, got %d", len(infos))
	}
}
