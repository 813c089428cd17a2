package opt

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/ffopt/internal/compare"
	"github.com/cwbudde/ffopt/internal/ff"
)

// Method selects the finite difference scheme.
type Method int

const (
	// Forward perturbs each parameter once, upwards.
	Forward Method = iota
	// Central perturbs each parameter upwards and downwards.
	Central
)

func (m Method) String() string {
	switch m {
	case Forward:
		return "forward"
	case Central:
		return "central"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod parses "forward" or "central".
func ParseMethod(s string) (Method, error) {
	switch s {
	case "forward":
		return Forward, nil
	case "central":
		return Central, nil
	}
	return 0, fmt.Errorf("unknown differentiation method %q", s)
}

// shrinkFactor scales a parameter's value into its new step after a
// perturbation broke the parameter's constraint.
const shrinkFactor = 0.05

// ParamsDiff builds the differentiation variants of params. For every
// parameter, in order, it emits a forward variant and, for Central, a
// backward one, so variant 2i (2i+1) perturbs params[i] up (down). Steps are
// resolved in place first. When a perturbation violates a constraint the
// parameter's step in params is shrunk to 5% of its value and the parameter
// is perturbed again; there is no retry limit.
func (o *Optimizer) ParamsDiff(params []ff.Parameter, method Method) ([]*ff.FF, error) {
	o.logger.Info("Differentiating parameters", "method", method, "parameters", len(params))

	if err := compare.ImportSteps(params, o.cfg.Steps); err != nil {
		return nil, err
	}
	for _, p := range params {
		if err := p.CheckValue(); err != nil {
			return nil, fmt.Errorf("cannot differentiate from an invalid parameter: %w", err)
		}
	}

	perVariant := 1
	if method == Central {
		perVariant = 2
	}
	variants := make([]*ff.FF, 0, perVariant*len(params))

	for i := range params {
		for {
			fwd, bwd, err := perturb(params, i, method)
			var neg *ff.UnallowedNegativeError
			if errors.As(err, &neg) {
				step := params[i].Value * shrinkFactor
				o.logger.Warn(neg.Error())
				o.logger.Warn("Changing step size",
					"param", params[i].String(),
					"from", params[i].Step.Size,
					"to", step,
				)
				params[i].Step = ff.Step{Size: step}
				continue
			}
			if err != nil {
				return nil, err
			}

			if roundsToZero(params[i].Step.Size) {
				o.logger.Warn("Step vanishes in the force field file, derivatives will be zero",
					"param", params[i].String(),
					"step", params[i].Step.Size,
				)
			}
			fwd.LogParams(o.logger)
			variants = append(variants, fwd)
			if bwd != nil {
				bwd.LogParams(o.logger)
				variants = append(variants, bwd)
			}
			break
		}
	}

	o.logger.Info("Generated force fields for differentiation", "count", len(variants), "method", method)
	return variants, nil
}

// roundsToZero reports whether a step is lost when values are written with
// four decimals.
func roundsToZero(step float64) bool {
	return math.Abs(step) < 0.5e-4
}

// perturb returns the forward and, for Central, backward variants of params
// with parameter i moved by its step.
func perturb(params []ff.Parameter, i int, method Method) (*ff.FF, *ff.FF, error) {
	p := params[i]

	fwd := ff.New(fmt.Sprintf("forward %d %d", p.Row, p.Col), params)
	fwd.Params[i].Value += fwd.Params[i].Step.Size
	if err := fwd.Params[i].CheckValue(); err != nil {
		return nil, nil, err
	}
	if method != Central {
		return fwd, nil, nil
	}

	bwd := ff.New(fmt.Sprintf("backward %d %d", p.Row, p.Col), params)
	bwd.Params[i].Value -= bwd.Params[i].Step.Size
	if err := bwd.Params[i].CheckValue(); err != nil {
		return nil, nil, err
	}
	return fwd, bwd, nil
}
