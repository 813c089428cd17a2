package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/ffopt/internal/ff"
	"github.com/google/uuid"
)

// RunConfig is the part of the run configuration kept with the record. It is
// what a resumed run must agree on.
type RunConfig struct {
	FFPath    string   `json:"ffPath"`
	Calculate string   `json:"calculate"`
	Reference string   `json:"reference"`
	Method    string   `json:"method"`
	PTypes    []string `json:"ptypes,omitempty"`
	PFile     string   `json:"pfile,omitempty"`
	MaxParams int      `json:"maxParams"`
}

// Run is the persisted state of an optimization run after its latest step.
//
// Only the best parameters are kept. Derivatives and step sizes are stored
// with them, but a resumed run re-resolves steps and recomputes derivatives
// from scratch on its first step.
type Run struct {
	RunID string `json:"runId"`

	// BestMethod is the method label of the best force field, "initial"
	// when no step improved on the start.
	BestMethod string         `json:"bestMethod"`
	BestParams []ff.Parameter `json:"bestParams"`
	BestX2     float64        `json:"bestX2"`
	InitialX2  float64        `json:"initialX2"`

	// Step is the number of completed optimization steps.
	Step int `json:"step"`

	Converged bool      `json:"converged,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Config    RunConfig `json:"config"`
}

// RunInfo is the listing view of a Run.
type RunInfo struct {
	RunID      string    `json:"runId"`
	BestMethod string    `json:"bestMethod"`
	BestX2     float64   `json:"bestX2"`
	InitialX2  float64   `json:"initialX2"`
	Step       int       `json:"step"`
	Params     int       `json:"params"`
	Converged  bool      `json:"converged"`
	Timestamp  time.Time `json:"timestamp"`
	FFPath     string    `json:"ffPath"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewRun records best as the state of runID after step steps.
func NewRun(runID string, best *ff.FF, initialX2 float64, step int, config RunConfig) *Run {
	return &Run{
		RunID:      runID,
		BestMethod: best.Method,
		BestParams: ff.CloneParams(best.Params),
		BestX2:     best.X2,
		InitialX2:  initialX2,
		Step:       step,
		Timestamp:  time.Now(),
		Config:     config,
	}
}

func (r *Run) ToInfo() RunInfo {
	return RunInfo{
		RunID:      r.RunID,
		BestMethod: r.BestMethod,
		BestX2:     r.BestX2,
		InitialX2:  r.InitialX2,
		Step:       r.Step,
		Params:     len(r.BestParams),
		Converged:  r.Converged,
		Timestamp:  r.Timestamp,
		FFPath:     r.Config.FFPath,
	}
}

// Improvement returns the relative x2 reduction since the start of the run.
func (r *Run) Improvement() float64 {
	if r.InitialX2 == 0 {
		return 0
	}
	return (r.InitialX2 - r.BestX2) / r.InitialX2
}

// Validate checks that the record is complete and consistent.
func (r *Run) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if _, err := uuid.Parse(r.RunID); err != nil {
		return &ValidationError{Field: "RunID", Reason: "must be a UUID"}
	}
	if len(r.BestParams) == 0 {
		return &ValidationError{Field: "BestParams", Reason: "cannot be empty"}
	}
	for i, p := range r.BestParams {
		if err := p.CheckValue(); err != nil {
			return &ValidationError{Field: fmt.Sprintf("BestParams[%d]", i), Reason: err.Error()}
		}
	}
	if r.BestX2 < 0 {
		return &ValidationError{Field: "BestX2", Reason: "cannot be negative"}
	}
	if r.InitialX2 < 0 {
		return &ValidationError{Field: "InitialX2", Reason: "cannot be negative"}
	}
	if r.BestX2 > r.InitialX2 {
		return &ValidationError{Field: "BestX2", Reason: "cannot exceed InitialX2"}
	}
	if r.Step < 0 {
		return &ValidationError{Field: "Step", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.FFPath == "" {
		return &ValidationError{Field: "Config.FFPath", Reason: "cannot be empty"}
	}
	if r.Config.Method == "" {
		return &ValidationError{Field: "Config.Method", Reason: "cannot be empty"}
	}
	return nil
}

// ValidationError represents an invalid run record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible reports whether a run with config can continue from r.
func (r *Run) IsCompatible(config RunConfig) error {
	if r.Config.FFPath != config.FFPath {
		return &CompatibilityError{Field: "FFPath", Expected: r.Config.FFPath, Actual: config.FFPath}
	}
	if r.Config.Reference != config.Reference {
		return &CompatibilityError{Field: "Reference", Expected: r.Config.Reference, Actual: config.Reference}
	}
	if r.Config.Calculate != config.Calculate {
		return &CompatibilityError{Field: "Calculate", Expected: r.Config.Calculate, Actual: config.Calculate}
	}
	return nil
}

// CompatibilityError represents a run that cannot be resumed with the given
// configuration.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
