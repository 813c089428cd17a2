package main

import (
	"github.com/spf13/cobra"
)

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Run one optimization step",
	Long: `Differentiates x2 with respect to every selected parameter, estimates the
derivatives, builds a Newton trial from the parameters with the smallest
second derivatives and writes the best force field found back to the force
field file.`,
	Args: cobra.NoArgs,
	RunE: runStep,
}

func init() {
	addOptimizerFlags(stepCmd)
	rootCmd.AddCommand(stepCmd)
}

func runStep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	o, err := newOptimizer(ctx, cfg)
	if err != nil {
		return err
	}
	if err := o.CalcX2FF(ctx, &o.Init.FF, false); err != nil {
		return err
	}
	initialX2 := o.Init.X2

	best, err := o.Step(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printTrials(out, o.Trials)
	printSummary(out, initialX2, best.X2, best.Method)
	return nil
}
