package store

// Store persists the outcome of optimization runs.
//
// Error handling conventions:
//   - Return ErrNotFound (matched with errors.Is) if the run doesn't exist
//   - Wrap underlying errors with fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun atomically writes the run record, replacing any earlier
	// record with the same RunID.
	SaveRun(run *Run) error

	// LoadRun returns ErrNotFound if no record exists for runID.
	LoadRun(runID string) (*Run, error)

	// ListRuns returns metadata for every readable run record. Unreadable
	// records are skipped.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the run record and its artifacts (trace, best
	// force field).
	DeleteRun(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
