package opt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwbudde/ffopt/internal/calc"
	"github.com/cwbudde/ffopt/internal/compare"
	"github.com/cwbudde/ffopt/internal/ff"
)

// Driver runs one optimization pass and returns the force field to keep.
type Driver interface {
	Run(ctx context.Context) (*ff.MM3, error)
}

// Config holds what an Optimizer needs besides its collaborators.
type Config struct {
	// Calculate produces the calculated data for the force field on disk.
	Calculate []string
	// Reference produces the reference data. It is run once during Setup.
	Reference []string

	Method    Method
	MaxParams int

	// Steps are the default step sizes per parameter type.
	Steps map[string]ff.Step
}

// Selection chooses which parameters of the force field are optimized.
type Selection struct {
	PTypes []string
	Params []ff.Selection
}

// Optimizer owns the reference data and the initial force field for one run
// and provides the differentiation, derivative and trimming steps shared by
// the drivers.
type Optimizer struct {
	cfg    Config
	runner calc.Runner
	cost   compare.CostFunc
	logger *slog.Logger

	observe func(*ff.FF)

	RefData calc.Data
	Init    *ff.MM3
	Trials  []*ff.FF
}

// New creates an optimizer. Call Setup before evaluating anything.
func New(cfg Config, runner calc.Runner, logger *slog.Logger) *Optimizer {
	if cfg.Steps == nil {
		cfg.Steps = compare.DefaultSteps()
	}
	return &Optimizer{
		cfg:    cfg,
		runner: runner,
		cost:   compare.X2,
		logger: logger,
	}
}

// SetObserver registers fn to be called after every evaluation.
func (o *Optimizer) SetObserver(fn func(*ff.FF)) {
	o.observe = fn
}

// Config returns the optimizer's configuration.
func (o *Optimizer) Config() Config {
	return o.cfg
}

// Setup loads the force field at path, keeps only the selected parameters and
// computes the reference data.
func (o *Optimizer) Setup(ctx context.Context, path string, sel Selection) error {
	o.logger.Info("Setting up optimizer", "force_field", path)

	initial := ff.NewMM3(path)
	if err := initial.Import(); err != nil {
		return err
	}
	initial.Method = ff.MethodInitial
	o.logger.Info("Force field loaded", "method", initial.Method, "path", initial.Path, "parameters", len(initial.Params))

	params, err := selectParams(initial.Params, sel, o.logger)
	if err != nil {
		return err
	}
	initial.Params = params
	o.logger.Info("Parameters selected for optimization", "count", len(params))

	data, err := o.runner.Run(ctx, o.cfg.Reference)
	if err != nil {
		return fmt.Errorf("failed to calculate reference data: %w", err)
	}
	o.RefData = data
	o.Init = initial
	return nil
}

func selectParams(all []ff.Parameter, sel Selection, logger *slog.Logger) ([]ff.Parameter, error) {
	type key struct{ row, col int }
	var picked []ff.Parameter
	seen := make(map[key]int)

	add := func(p ff.Parameter) {
		k := key{p.Row, p.Col}
		if i, ok := seen[k]; ok {
			picked[i].AllowNegative = picked[i].AllowNegative || p.AllowNegative
			return
		}
		seen[k] = len(picked)
		picked = append(picked, p)
	}

	if len(sel.PTypes) > 0 {
		for _, p := range all {
			for _, ptype := range sel.PTypes {
				if p.PType == ptype {
					add(p)
					break
				}
			}
		}
	}
	for _, s := range sel.Params {
		found := false
		for _, p := range all {
			if p.Row == s.Row && p.Col == s.Col {
				if s.AllowNegative {
					p.AllowNegative = true
					logger.Debug("Negative values allowed", "row", p.Row, "col", p.Col)
				}
				add(p)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("no parameter at row %d column %d", s.Row, s.Col)
		}
	}

	var errs []error
	for _, p := range picked {
		if err := p.CheckValue(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid starting parameters: %w", errors.Join(errs...))
	}
	return picked, nil
}

// CalcX2FF writes f's parameters into the force field file, runs the
// calculation and assigns f's x2. The calculated data is kept on f when
// saveData is set.
func (o *Optimizer) CalcX2FF(ctx context.Context, f *ff.FF, saveData bool) error {
	if o.Init == nil {
		return errors.New("optimizer is not set up")
	}
	if err := o.Init.Export(f.Params); err != nil {
		return err
	}
	data, err := o.runner.Run(ctx, o.cfg.Calculate)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Method, err)
	}
	x2, err := o.cost(o.RefData, data)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Method, err)
	}
	if saveData {
		f.Data = data
	}
	f.SetX2(x2)
	o.logger.Info("Evaluated force field", "method", f.Method, "x2", x2)
	if o.observe != nil {
		o.observe(f)
	}
	return nil
}

// CommandString joins a command back into one line for logs and records.
func CommandString(args []string) string {
	return strings.Join(args, " ")
}
