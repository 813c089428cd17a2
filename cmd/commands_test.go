package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/ffopt/internal/ff"
	"github.com/cwbudde/ffopt/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mm3Line(label string, values ...float64) string {
	line := fmt.Sprintf("%-23s", label)
	for _, v := range values {
		line += fmt.Sprintf("%10.4f", v)
	}
	return line
}

// setupWorkspace writes a force field with one bond whose force constant
// starts at bondForce, a calculate script printing that force constant and a
// reference script asking for 5.0. The resulting x2 is (5 - bf)^2.
func setupWorkspace(t *testing.T, bondForce float64) (dir, configFile string) {
	t.Helper()
	dir = t.TempDir()

	lines := []string{
		" MM3* command test",
		" C  substructure OPT",
		mm3Line(" 1  C1  C2", 1.5, bondForce, 0.0),
		mm3Line(" 2  C1  C2  H3", 109.5, 0.45),
		" 9  end",
	}
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write("mm3.fld", strings.Join(lines, "\n")+"\n")
	write("calc.sh", "awk 'NR==3 { printf \"3_2 1 %.4f\\n\", substr($0, 34, 10) + 0 }' mm3.fld\n")
	write("ref.sh", "echo '3_2 1 5.0'\n")

	configFile = filepath.Join(dir, "ffopt.yaml")
	write("ffopt.yaml", fmt.Sprintf(`directory: %s
calculate: sh calc.sh
reference: sh ref.sh
ptypes: [bf]
data_dir: %s
`, dir, filepath.Join(dir, "data")))
	return dir, configFile
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, err, errOut.String())
	return out.String()
}

func readBondForce(t *testing.T, path string) float64 {
	t.Helper()
	m := ff.NewMM3(path)
	require.NoError(t, m.Import())
	for _, p := range m.Params {
		if p.PType == ff.PTypeBondForce {
			return p.Value
		}
	}
	t.Fatalf("no bond force constant in %s", path)
	return 0
}

func TestStepCommand(t *testing.T) {
	dir, cfg := setupWorkspace(t, 4.4)

	out := execute(t, "step", "--config", cfg)
	assert.Contains(t, out, "newton")
	assert.Contains(t, out, "kept newton")
	assert.InDelta(t, 5.0, readBondForce(t, filepath.Join(dir, "mm3.fld")), 1e-9)
}

func TestDiffCommand_RestoresForceField(t *testing.T) {
	dir, cfg := setupWorkspace(t, 4.4)
	before, err := os.ReadFile(filepath.Join(dir, "mm3.fld"))
	require.NoError(t, err)

	out := execute(t, "diff", "--config", cfg)
	assert.Contains(t, out, "central differences, 3 evaluations")
	// der1 = (0.16 - 0.64) / 2, der2 = 0.16 + 0.64 - 2*0.36
	assert.Contains(t, out, "-0.24")
	assert.Contains(t, out, "0.08")

	after, err := os.ReadFile(filepath.Join(dir, "mm3.fld"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestGeneticCommand(t *testing.T) {
	dir, cfg := setupWorkspace(t, 4.4)
	trialDir, _ := setupWorkspace(t, 4.9)
	trial := filepath.Join(trialDir, "mm3.fld")

	out := execute(t, "genetic", "--config", cfg, "--trial", trial)
	assert.Contains(t, out, "kept trial mm3.fld")
	assert.InDelta(t, 4.9, readBondForce(t, filepath.Join(dir, "mm3.fld")), 1e-9)

	// A worse trial leaves the force field alone.
	worseDir, _ := setupWorkspace(t, 3.0)
	out = execute(t, "genetic", "--config", cfg, "--trial", filepath.Join(worseDir, "mm3.fld"))
	assert.Contains(t, out, "kept initial")
	assert.InDelta(t, 4.9, readBondForce(t, filepath.Join(dir, "mm3.fld")), 1e-9)
}

func TestRunStatusAndResume(t *testing.T) {
	dir, cfg := setupWorkspace(t, 4.4)
	dataDir := filepath.Join(dir, "data")

	out := execute(t, "run", "--config", cfg)
	assert.Contains(t, out, "2 step(s)")

	st, err := store.NewFSStore(dataDir, logger)
	require.NoError(t, err)
	infos, err := st.ListRuns()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	info := infos[0]
	assert.Equal(t, 2, info.Step)
	assert.True(t, info.Converged)
	assert.InDelta(t, 0.0, info.BestX2, 1e-12)
	assert.InDelta(t, 0.36, info.InitialX2, 1e-9)
	assert.InDelta(t, 5.0, readBondForce(t, st.BestFFPath(info.RunID)), 1e-9)

	trace, err := st.ReadTrace(info.RunID)
	require.NoError(t, err)
	assert.Len(t, trace, 1+3+3)
	assert.Equal(t, []float64{0.36, 0, 0}, roundAll(store.BestPerStep(trace)))

	out = execute(t, "status", "--config", cfg, info.RunID)
	assert.Contains(t, out, "Run: "+info.RunID)
	assert.Contains(t, out, "Improvement: 100.00%")
	assert.Contains(t, out, "best x2 per step")

	out = execute(t, "status", "--config", cfg)
	assert.Contains(t, out, shortID(info.RunID))

	out = execute(t, "resume", "--config", cfg, info.RunID)
	assert.Contains(t, out, info.RunID)
	resumed, err := st.LoadRun(info.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, resumed.Step)
	assert.InDelta(t, 0.36, resumed.InitialX2, 1e-9)

	trace, err = st.ReadTrace(info.RunID)
	require.NoError(t, err)
	assert.Greater(t, len(trace), 7, "resume appends to the trace")
}

func TestRunCommand_StopsOnLastAllowedStep(t *testing.T) {
	dir, cfg := setupWorkspace(t, 4.4)
	f, err := os.OpenFile(cfg, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("max_steps: 2\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Step 1 reaches bf = 5.0, step 2 finds nothing better.
	out := execute(t, "run", "--config", cfg)
	assert.Contains(t, out, "2 step(s)")

	st, err := store.NewFSStore(filepath.Join(dir, "data"), logger)
	require.NoError(t, err)
	infos, err := st.ListRuns()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 2, infos[0].Step)
	assert.True(t, infos[0].Converged)

	out = execute(t, "status", "--config", cfg)
	assert.Contains(t, out, "CONVERGED")
	assert.Contains(t, out, "true")
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, "ffopt version "+version+"\n", execute(t, "version"))
}

func roundAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(int64(v*1e6+0.5)) / 1e6
	}
	return out
}
