package main

import (
	"context"
	"fmt"

	"github.com/cwbudde/ffopt/internal/calc"
	"github.com/cwbudde/ffopt/internal/config"
	"github.com/cwbudde/ffopt/internal/opt"
	"github.com/cwbudde/ffopt/internal/store"
	"github.com/spf13/cobra"
)

// Flags shared by the commands that set up an optimizer. They override the
// configuration file when given.
var (
	flagDirectory string
	flagFFFile    string
	flagCalculate string
	flagReference string
	flagPTypes    []string
	flagPFile     string
	flagMethod    string
	flagMaxParams int
)

func addOptimizerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&flagDirectory, "directory", "d", "", "Directory holding the force field; calculations run here")
	f.StringVar(&flagFFFile, "ff", "", "Force field file name (default mm3.fld)")
	f.StringVar(&flagCalculate, "calculate", "", "Command printing the calculated data")
	f.StringVar(&flagReference, "reference", "", "Command printing the reference data")
	f.StringSliceVar(&flagPTypes, "ptypes", nil, "Parameter types to optimize (be, bf, ae, af, sb, df, imp1, imp2, q)")
	f.StringVar(&flagPFile, "pfile", "", "File selecting parameters by row and column")
	f.StringVar(&flagMethod, "method", "", "Differentiation method (central, forward)")
	f.IntVar(&flagMaxParams, "max-params", 0, "Parameters kept after trimming on second derivatives (0 = all)")
}

// resolveConfig loads the configuration file, applies the flags that were
// set and validates the result.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("directory") {
		cfg.Directory = flagDirectory
	}
	if f.Changed("ff") {
		cfg.FFFile = flagFFFile
	}
	if f.Changed("calculate") {
		cfg.Calculate = flagCalculate
	}
	if f.Changed("reference") {
		cfg.Reference = flagReference
	}
	if f.Changed("ptypes") {
		cfg.PTypes = flagPTypes
	}
	if f.Changed("pfile") {
		cfg.PFile = flagPFile
	}
	if f.Changed("method") {
		cfg.Method = flagMethod
	}
	if f.Changed("max-params") {
		cfg.MaxParams = flagMaxParams
	}
	if f.Lookup("max-steps") != nil && f.Changed("max-steps") {
		cfg.MaxSteps = flagMaxSteps
	}
	if f.Lookup("data-dir") != nil && f.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newOptimizer builds an optimizer for cfg, loads the force field and
// computes the reference data.
func newOptimizer(ctx context.Context, cfg *config.Config) (*opt.Optimizer, error) {
	optCfg, err := cfg.OptConfig()
	if err != nil {
		return nil, err
	}
	sel, err := cfg.Selection()
	if err != nil {
		return nil, err
	}

	o := opt.New(optCfg, calc.NewExecRunner(cfg.Directory, logger), logger)
	if err := o.Setup(ctx, cfg.FFPath(), sel); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	return o, nil
}

func runConfig(cfg *config.Config) store.RunConfig {
	return store.RunConfig{
		FFPath:    cfg.FFPath(),
		Calculate: cfg.Calculate,
		Reference: cfg.Reference,
		Method:    cfg.Method,
		PTypes:    cfg.PTypes,
		PFile:     cfg.PFile,
		MaxParams: cfg.MaxParams,
	}
}
