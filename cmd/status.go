package main

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cwbudde/ffopt/internal/store"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show recorded runs",
	Long: `Without a run ID, lists the recorded runs. With a run ID, shows the run's
configuration and progress and plots the best x2 after every step.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&checkpointDataDir, "data-dir", "", "Base directory for run records (default from config)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := store.NewFSStore(resolveDataDir(cmd), logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		infos, err := st.ListRuns()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintln(out, "No runs found.")
			return nil
		}
		printRunTable(out, infos, st)
		return nil
	}

	run, err := st.LoadRun(args[0])
	if err != nil {
		return err
	}
	printRun(out, run)

	trace, err := st.ReadTrace(run.RunID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	fmt.Fprintf(out, "  Evaluations: %d\n\n", len(trace))
	if plot := plotTrace(trace); plot != "" {
		fmt.Fprintln(out, plot)
	}
	return nil
}

func printRun(w io.Writer, run *store.Run) {
	fmt.Fprintf(w, "Run: %s\n", run.RunID)
	fmt.Fprintf(w, "Updated: %s\n\n", run.Timestamp.Format("2006-01-02 15:04:05"))

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Force field: %s\n", run.Config.FFPath)
	fmt.Fprintf(w, "  Calculate: %s\n", run.Config.Calculate)
	fmt.Fprintf(w, "  Reference: %s\n", run.Config.Reference)
	fmt.Fprintf(w, "  Method: %s\n", run.Config.Method)
	if run.Config.MaxParams > 0 {
		fmt.Fprintf(w, "  Max params: %d\n", run.Config.MaxParams)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Steps: %d\n", run.Step)
	fmt.Fprintf(w, "  Initial x2: %.6g\n", run.InitialX2)
	fmt.Fprintf(w, "  Best x2: %.6g (%s)\n", run.BestX2, run.BestMethod)
	fmt.Fprintf(w, "  Improvement: %.2f%%\n", run.Improvement()*100)
	fmt.Fprintf(w, "  Converged: %t\n", run.Converged)
	fmt.Fprintln(w)

	printParams(w, run.BestParams, nil)
}

// plotTrace draws the best x2 per step. It returns "" when there is nothing
// to plot.
func plotTrace(trace []store.TraceEntry) string {
	best := store.BestPerStep(trace)
	var data []float64
	for _, v := range best {
		if !math.IsInf(v, 1) {
			data = append(data, v)
		}
	}
	if len(data) < 2 {
		return ""
	}
	return asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption("best x2 per step"),
	)
}
