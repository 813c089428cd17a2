package opt

import (
	"cmp"
	"context"
	"slices"

	"github.com/cwbudde/ffopt/internal/ff"
)

// Step runs one optimization step from the current initial force field:
// differentiate, evaluate every variant, assign derivatives, trim and build a
// Newton trial, then let the Genetic comparison choose between the best
// trial and the initial force field.
func (o *Optimizer) Step(ctx context.Context) (*ff.MM3, error) {
	if !o.Init.Evaluated {
		if err := o.CalcX2FF(ctx, &o.Init.FF, false); err != nil {
			return nil, err
		}
	}

	variants, err := o.ParamsDiff(o.Init.Params, o.cfg.Method)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		if err := o.CalcX2FF(ctx, v, false); err != nil {
			return nil, err
		}
	}

	trials := slices.Clone(variants)
	switch o.cfg.Method {
	case Central:
		if err := o.CentralDiffDerivs(&o.Init.FF, variants); err != nil {
			return nil, err
		}
		kept := o.TrimParamsOn2nd(o.Init.Params)
		if newton := o.NewtonTrial(o.Init.Params, kept); newton != nil {
			if err := o.CalcX2FF(ctx, newton, false); err != nil {
				return nil, err
			}
			trials = append(trials, newton)
		}
	case Forward:
		if err := o.ForwardDiffDerivs(&o.Init.FF, variants); err != nil {
			return nil, err
		}
	}

	slices.SortStableFunc(trials, func(a, b *ff.FF) int {
		return cmp.Compare(a.X2, b.X2)
	})
	o.Trials = trials
	return NewGenetic(o).Run(ctx)
}

// NewtonTrial builds a force field from base where every parameter that is
// also in kept and has a positive second derivative is moved by
// -Der1/Der2 steps. It returns nil when nothing moves or a moved parameter
// breaks its constraint.
func (o *Optimizer) NewtonTrial(base, kept []ff.Parameter) *ff.FF {
	type key struct{ row, col int }
	selected := make(map[key]bool, len(kept))
	for _, p := range kept {
		selected[key{p.Row, p.Col}] = true
	}

	trial := ff.New(ff.MethodNewton, base)
	moved := 0
	for i := range trial.Params {
		p := &trial.Params[i]
		if !selected[key{p.Row, p.Col}] || p.Der2 <= 0 {
			continue
		}
		p.Value -= p.Der1 / p.Der2 * p.Step.Size
		if err := p.CheckValue(); err != nil {
			o.logger.Warn("Skipping Newton trial", "error", err)
			return nil
		}
		moved++
	}
	if moved == 0 {
		return nil
	}
	return trial
}

// StopReason tells why Loop returned.
type StopReason int

const (
	// StopMaxSteps means the step budget ran out while x2 was still
	// improving.
	StopMaxSteps StopReason = iota
	// StopNoImprovement means a step kept the force field it started from.
	StopNoImprovement
	// StopConverged means the convergence tracker saw too many steps without
	// a relevant improvement.
	StopConverged
)

func (r StopReason) String() string {
	switch r {
	case StopNoImprovement:
		return "no improvement"
	case StopConverged:
		return "converged"
	}
	return "max steps"
}

// Converged reports whether the loop stopped on its own rather than on the
// step budget.
func (r StopReason) Converged() bool {
	return r == StopNoImprovement || r == StopConverged
}

// Loop repeats Step, each time starting from the force field the previous
// step kept, until the tracker reports convergence, a step brings no
// improvement or maxSteps steps have run. onStep, when set, is called after
// every step. The returned reason is only meaningful when err is nil.
func (o *Optimizer) Loop(ctx context.Context, tracker *ConvergenceTracker, maxSteps int, onStep func(step int, best *ff.MM3) error) (*ff.MM3, StopReason, error) {
	if !o.Init.Evaluated {
		if err := o.CalcX2FF(ctx, &o.Init.FF, false); err != nil {
			return nil, StopMaxSteps, err
		}
	}
	tracker.Update(o.Init.X2)

	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return o.Init, StopMaxSteps, err
		}
		o.logger.Info("Starting step", "step", step, "x2", o.Init.X2)

		prev := o.Init
		best, err := o.Step(ctx)
		if err != nil {
			return prev, StopMaxSteps, err
		}
		o.Init = best

		if onStep != nil {
			if err := onStep(step, best); err != nil {
				return best, StopMaxSteps, err
			}
		}
		if best == prev {
			o.logger.Info("Step brought no improvement, stopping", "step", step, "x2", best.X2)
			return best, StopNoImprovement, nil
		}
		if tracker.Update(best.X2) {
			return best, StopConverged, nil
		}
	}
	return o.Init, StopMaxSteps, nil
}
