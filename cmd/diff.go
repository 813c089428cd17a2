package main

import (
	"fmt"

	"github.com/cwbudde/ffopt/internal/opt"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Estimate derivatives without changing the force field",
	Long: `Evaluates the perturbed force fields, prints the first and second
derivative of x2 for every selected parameter and marks the parameters that
trimming would keep. The force field file is restored afterwards.`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

func init() {
	addOptimizerFlags(diffCmd)
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) (err error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	o, err := newOptimizer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if exportErr := o.Init.Export(nil); exportErr != nil && err == nil {
			err = fmt.Errorf("failed to restore force field: %w", exportErr)
		}
	}()

	if err := o.CalcX2FF(ctx, &o.Init.FF, false); err != nil {
		return err
	}
	method := o.Config().Method
	variants, err := o.ParamsDiff(o.Init.Params, method)
	if err != nil {
		return err
	}
	for _, v := range variants {
		if err := o.CalcX2FF(ctx, v, false); err != nil {
			return err
		}
	}

	switch method {
	case opt.Central:
		err = o.CentralDiffDerivs(&o.Init.FF, variants)
	case opt.Forward:
		err = o.ForwardDiffDerivs(&o.Init.FF, variants)
	}
	if err != nil {
		return err
	}

	kept := o.Init.Params
	if method == opt.Central {
		kept = o.TrimParamsOn2nd(o.Init.Params)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "x2: %.6g (%s differences, %d evaluations)\n", o.Init.X2, method, len(variants)+1)
	printParams(out, o.Init.Params, kept)
	return nil
}
