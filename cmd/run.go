package main

import (
	"fmt"
	"time"

	"github.com/cwbudde/ffopt/internal/config"
	"github.com/cwbudde/ffopt/internal/ff"
	"github.com/cwbudde/ffopt/internal/opt"
	"github.com/cwbudde/ffopt/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagMaxSteps int
	flagDataDir  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Optimize until x2 stops improving",
	Long: `Repeats optimization steps, each starting from the best force field of
the previous one, until a step brings no improvement, x2 converges or
--max-steps steps have run. The run is recorded under --data-dir after every
step and can be continued with "ffopt resume".`,
	Args: cobra.NoArgs,
	RunE: runOptimization,
}

func init() {
	addOptimizerFlags(runCmd)
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagMaxSteps, "max-steps", config.DefaultMaxSteps, "Maximum number of optimization steps")
	cmd.Flags().StringVar(&flagDataDir, "data-dir", config.DefaultDataDir, "Base directory for run records")
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	st, err := store.NewFSStore(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	o, err := newOptimizer(ctx, cfg)
	if err != nil {
		return err
	}

	r := &recorder{
		store:  st,
		runID:  store.NewRunID(),
		config: runConfig(cfg),
	}
	logger.Info("Starting run", "run_id", r.runID, "parameters", len(o.Init.Params), "max_steps", cfg.MaxSteps)
	return r.optimize(cmd, cfg, o, false)
}

// recorder drives Optimizer.Loop and writes the trace, the run record and
// the best force field of every step.
type recorder struct {
	store  *store.FSStore
	runID  string
	config store.RunConfig

	// offset is the number of steps completed before this invocation.
	offset    int
	initialX2 float64
	started   time.Time
}

func (r *recorder) optimize(cmd *cobra.Command, cfg *config.Config, o *opt.Optimizer, appendTrace bool) error {
	ctx := cmd.Context()
	r.started = time.Now()

	trace, err := r.store.OpenTrace(r.runID, appendTrace)
	if err != nil {
		return err
	}
	defer trace.Close()

	current := r.offset
	o.SetObserver(func(f *ff.FF) {
		if err := trace.Write(store.TraceEntry{Step: current, Method: f.Method, X2: f.X2, Timestamp: time.Now()}); err != nil {
			logger.Warn("Failed to write trace entry", "error", err)
		}
	})

	if !o.Init.Evaluated {
		if err := o.CalcX2FF(ctx, &o.Init.FF, false); err != nil {
			return err
		}
	}
	if r.offset == 0 {
		r.initialX2 = o.Init.X2
		if err := r.save(o.Init, 0, false); err != nil {
			return err
		}
	}
	current++

	tracker := opt.NewConvergenceTracker(cfg.Convergence, logger)
	lastStep := 0
	best, reason, err := o.Loop(ctx, tracker, cfg.MaxSteps, func(step int, best *ff.MM3) error {
		lastStep = step
		current = r.offset + step + 1
		if err := trace.Flush(); err != nil {
			return err
		}
		return r.save(best, r.offset+step, false)
	})
	if err != nil {
		return err
	}

	converged := reason.Converged()
	if err := r.save(best, r.offset+lastStep, converged); err != nil {
		return err
	}

	logger.Info("Run complete",
		"run_id", r.runID,
		"steps", r.offset+lastStep,
		"converged", converged,
		"stop_reason", reason,
		"initial_x2", r.initialX2,
		"best_x2", best.X2,
		"elapsed", time.Since(r.started),
	)
	out := cmd.OutOrStdout()
	printSummary(out, r.initialX2, best.X2, best.Method)
	fmt.Fprintf(out, "run %s: %d step(s), best force field %s\n", r.runID, r.offset+lastStep, r.store.BestFFPath(r.runID))
	return nil
}

// save records best as the state after step and keeps a copy of the whole
// force field file next to the record.
func (r *recorder) save(best *ff.MM3, step int, converged bool) error {
	run := store.NewRun(r.runID, &best.FF, r.initialX2, step, r.config)
	run.Converged = converged
	if err := run.Validate(); err != nil {
		return err
	}
	if err := r.store.SaveRun(run); err != nil {
		return err
	}
	return best.ExportTo(r.store.BestFFPath(r.runID), nil)
}
