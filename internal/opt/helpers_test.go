package opt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/ffopt/internal/calc"
	"github.com/cwbudde/ffopt/internal/ff"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func mm3Line(label string, values ...float64) string {
	line := fmt.Sprintf("%-23s", label)
	for _, v := range values {
		line += fmt.Sprintf("%10.4f", v)
	}
	return line
}

// writeMM3 writes a force field whose OPT substructure holds one bond (row 3:
// be, bf, q) and one angle (row 4: ae, af).
func writeMM3(t *testing.T, bondForce float64) string {
	t.Helper()
	lines := []string{
		" MM3* optimizer test",
		" C  substructure OPT",
		mm3Line(" 1  C1  C2", 1.5, bondForce, 0.0),
		mm3Line(" 2  C1  C2  H3", 109.5, 0.45),
		" 9  end",
	}
	path := filepath.Join(t.TempDir(), "mm3.fld")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

// quadraticRunner answers the "ref" command with fixed targets and the
// "calc" command with the current values of the force field on disk, one
// datum per parameter labelled "row_col". The resulting x2 is a weighted
// quadratic in the parameter values.
type quadraticRunner struct {
	path    string
	targets map[string]calc.Datum
	calls   int
}

func (r *quadraticRunner) Run(_ context.Context, args []string) (calc.Data, error) {
	r.calls++
	switch args[0] {
	case "ref":
		var data calc.Data
		for _, d := range r.targets {
			data = append(data, d)
		}
		return data, nil
	case "calc":
		m := ff.NewMM3(r.path)
		if err := m.Import(); err != nil {
			return nil, err
		}
		var data calc.Data
		for _, p := range m.Params {
			data = append(data, calc.Datum{Label: fmt.Sprintf("%d_%d", p.Row, p.Col), Value: p.Value})
		}
		return data, nil
	}
	return nil, fmt.Errorf("unknown command %q", args[0])
}

func newTestOptimizer(t *testing.T, runner calc.Runner, method Method, maxParams int) *Optimizer {
	t.Helper()
	return New(Config{
		Calculate: []string{"calc"},
		Reference: []string{"ref"},
		Method:    method,
		MaxParams: maxParams,
		Steps: map[string]ff.Step{
			ff.PTypeBondEq:     {Size: 0.01},
			ff.PTypeBondForce:  {Size: 0.1},
			ff.PTypeCharge:     {Size: 0.1},
			ff.PTypeAngleEq:    {Size: 0.5},
			ff.PTypeAngleForce: {Size: 0.05},
		},
	}, runner, discardLogger())
}

func evaluated(method string, x2 float64) *ff.FF {
	f := ff.New(method, nil)
	f.SetX2(x2)
	return f
}
