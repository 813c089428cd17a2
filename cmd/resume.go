package main

import (
	"fmt"

	"github.com/cwbudde/ffopt/internal/ff"
	"github.com/cwbudde/ffopt/internal/store"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Continue a recorded run",
	Long: `Loads the best parameters of a recorded run into the force field and
continues optimizing. The calculate and reference commands and the force field
path must match the recorded run; method and trimming may change.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	addOptimizerFlags(resumeCmd)
	addRunFlags(resumeCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	st, err := store.NewFSStore(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	run, err := st.LoadRun(args[0])
	if err != nil {
		return err
	}
	if err := run.IsCompatible(runConfig(cfg)); err != nil {
		return fmt.Errorf("cannot resume run %s: %w", run.RunID, err)
	}

	o, err := newOptimizer(ctx, cfg)
	if err != nil {
		return err
	}
	restored := restoreParams(o.Init.Params, run.BestParams)
	if err := o.Init.Export(nil); err != nil {
		return err
	}
	logger.Info("Resuming run",
		"run_id", run.RunID,
		"completed_steps", run.Step,
		"best_x2", run.BestX2,
		"restored_parameters", restored,
	)

	r := &recorder{
		store:     st,
		runID:     run.RunID,
		config:    runConfig(cfg),
		offset:    run.Step,
		initialX2: run.InitialX2,
	}
	return r.optimize(cmd, cfg, o, true)
}

// restoreParams sets the value of every parameter in params that also appears
// in saved and returns how many were set.
func restoreParams(params, saved []ff.Parameter) int {
	type key struct{ row, col int }
	values := make(map[key]float64, len(saved))
	for _, p := range saved {
		values[key{p.Row, p.Col}] = p.Value
	}

	n := 0
	for i := range params {
		if v, ok := values[key{params[i].Row, params[i].Col}]; ok {
			params[i].Value = v
			n++
		}
	}
	return n
}
