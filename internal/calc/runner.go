package calc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner executes a calculation and returns its data. Run blocks until the
// calculation has finished.
type Runner interface {
	Run(ctx context.Context, args []string) (Data, error)
}

// ExecRunner runs args[0] as an external program with the remaining
// arguments and parses its standard output with ParseData.
type ExecRunner struct {
	dir    string
	logger *slog.Logger
}

// NewExecRunner creates a runner that starts programs in dir.
func NewExecRunner(dir string, logger *slog.Logger) *ExecRunner {
	return &ExecRunner{dir: dir, logger: logger}
}

// Run executes the calculation described by args.
func (r *ExecRunner) Run(ctx context.Context, args []string) (Data, error) {
	if len(args) == 0 {
		return nil, errors.New("empty calculation command")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("calculation %q failed: %w: %s", args[0], err, msg)
		}
		return nil, fmt.Errorf("calculation %q failed: %w", args[0], err)
	}

	data, err := ParseData(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse output of %q: %w", args[0], err)
	}

	r.logger.Debug("Calculation finished",
		"command", strings.Join(args, " "),
		"points", len(data),
		"elapsed", time.Since(start),
	)
	return data, nil
}

// SplitCommand splits a command line on whitespace, the same way the
// calculate and reference options are written on the command line.
func SplitCommand(command string) []string {
	return strings.Fields(command)
}
