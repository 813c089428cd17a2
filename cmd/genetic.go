package main

import (
	"fmt"
	"path/filepath"

	"github.com/cwbudde/ffopt/internal/ff"
	"github.com/cwbudde/ffopt/internal/opt"
	"github.com/spf13/cobra"
)

var trialPath string

var geneticCmd = &cobra.Command{
	Use:   "genetic",
	Short: "Compare a trial force field against the current one",
	Long: `Evaluates the force field given by --trial on the selected parameters and
keeps it when its x2 is lower than the x2 of the current force field.`,
	Args: cobra.NoArgs,
	RunE: runGenetic,
}

func init() {
	addOptimizerFlags(geneticCmd)
	geneticCmd.Flags().StringVar(&trialPath, "trial", "", "Force field file holding the trial parameters (required)")
	geneticCmd.MarkFlagRequired("trial")
	rootCmd.AddCommand(geneticCmd)
}

func runGenetic(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	o, err := newOptimizer(ctx, cfg)
	if err != nil {
		return err
	}

	source := ff.NewMM3(trialPath)
	if err := source.Import(); err != nil {
		return err
	}
	trial, err := trialFrom(o.Init.Params, source.Params, "trial "+filepath.Base(trialPath))
	if err != nil {
		return err
	}
	o.Trials = []*ff.FF{trial}

	best, err := opt.NewGenetic(o).Run(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), o.Init.X2, best.X2, best.Method)
	return nil
}

// trialFrom copies selected and takes each value from the parameter at the
// same row and column of source.
func trialFrom(selected, source []ff.Parameter, method string) (*ff.FF, error) {
	type key struct{ row, col int }
	values := make(map[key]float64, len(source))
	for _, p := range source {
		values[key{p.Row, p.Col}] = p.Value
	}

	trial := ff.New(method, selected)
	for i := range trial.Params {
		p := &trial.Params[i]
		v, ok := values[key{p.Row, p.Col}]
		if !ok {
			return nil, fmt.Errorf("trial force field has no parameter at row %d column %d", p.Row, p.Col)
		}
		p.Value = v
		if err := p.CheckValue(); err != nil {
			return nil, err
		}
	}
	return trial, nil
}
